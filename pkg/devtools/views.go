package devtools

import (
	"github.com/vango-dev/waypoint/pkg/router"
)

// RouteView is the JSON form of a compiled route.
type RouteView struct {
	Path    string         `json:"path"`
	Name    string         `json:"name,omitempty"`
	Parent  string         `json:"parent,omitempty"`
	Params  []string       `json:"params,omitempty"`
	Matcher string         `json:"matcher"`
	Guard   bool           `json:"guard"`
	Loader  bool           `json:"loader"`
	View    bool           `json:"view"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// NewRouteView converts a compiled route.
func NewRouteView(cr *router.CompiledRoute) RouteView {
	return RouteView{
		Path:    cr.Path,
		Name:    cr.Def.Name,
		Parent:  cr.Parent,
		Params:  cr.ParamNames,
		Matcher: cr.MatcherKind(),
		Guard:   cr.Def.Guard != nil,
		Loader:  cr.Def.Loader != nil,
		View:    cr.Def.View != nil,
		Meta:    cr.Def.Meta,
	}
}

// MatchView is the JSON form of a route match.
type MatchView struct {
	Route  string              `json:"route"`
	Path   string              `json:"path"`
	Params map[string]string   `json:"params"`
	Query  map[string][]string `json:"query,omitempty"`
	Hash   string              `json:"hash,omitempty"`
	Data   any                 `json:"data,omitempty"`
	View   any                 `json:"view,omitempty"`
}

// NewMatchView converts a match. It returns nil for nil.
func NewMatchView(m *router.RouteMatch) *MatchView {
	if m == nil {
		return nil
	}
	return &MatchView{
		Route:  m.Route.Path,
		Path:   m.Path,
		Params: m.Params,
		Query:  m.Query,
		Hash:   m.Hash,
		Data:   m.Data,
		View:   m.View,
	}
}

// OutcomeView is the JSON form of a navigation outcome.
type OutcomeView struct {
	ID        string     `json:"id"`
	URL       string     `json:"url"`
	Phase     string     `json:"phase"`
	Match     *MatchView `json:"match,omitempty"`
	Kind      string     `json:"kind,omitempty"`
	Error     string     `json:"error,omitempty"`
	Redirects []string   `json:"redirects,omitempty"`
}

// NewOutcomeView converts a navigation outcome.
func NewOutcomeView(out *router.Outcome) OutcomeView {
	v := OutcomeView{
		ID:        out.ID,
		URL:       out.URL,
		Phase:     string(out.Phase),
		Match:     NewMatchView(out.Match),
		Redirects: out.Redirects,
	}
	if out.Err != nil {
		v.Kind = string(router.KindOf(out.Err))
		v.Error = out.Err.Error()
	}
	return v
}

// CacheView is the JSON form of the router's cache counters.
type CacheView struct {
	Policy router.CachePolicy `json:"policy"`
	Match  router.CacheStats  `json:"match"`
	Data   router.CacheStats  `json:"data"`
}
