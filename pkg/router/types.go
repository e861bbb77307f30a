package router

import (
	"context"
	"net/url"
)

// ViewLoader loads the view for a matched route. The returned value is
// opaque to the router (a component, a template name, a render tree).
type ViewLoader func(ctx context.Context, nav *NavigationContext) (any, error)

// DataLoader loads the data a route needs before it can be shown.
// ctx is the navigation's cancellation token: it is cancelled as soon as a
// newer navigation supersedes this one.
type DataLoader func(ctx context.Context, nav *NavigationContext) (any, error)

// Guard decides whether a matched route may be entered.
// Returning an error is treated as an unexpected failure, not a denial.
type Guard func(ctx context.Context, nav *NavigationContext) (GuardResult, error)

// Route is a route definition as registered by the application.
type Route struct {
	// Path is the pattern relative to the parent route
	// (e.g., "/users/:id" or ":id" under "/users").
	Path string

	// Name is an optional human-readable identifier.
	Name string

	// View loads the component for the route.
	View ViewLoader

	// Loader loads the route's data. Optional.
	Loader DataLoader

	// Guard gates access to the route. Optional.
	Guard Guard

	// Children are nested routes, resolved relative to Path.
	Children []Route

	// Cache overrides the data cache policy for this route and its
	// descendants. Optional.
	Cache *CachePolicy

	// Meta is free-form metadata.
	Meta map[string]any
}

// CompiledRoute is a route with its full path resolved and its matcher built.
type CompiledRoute struct {
	// Path is the full pattern (e.g., "/users/:userId/posts/:postId").
	Path string

	// Parent is the full pattern of the parent route ("" for top-level routes).
	Parent string

	// ParamNames are the parameter names in the order the matcher emits them.
	ParamNames []string

	// Static indicates the route has no parameters.
	Static bool

	// Def is the route definition. Children is always nil here; the
	// children are compiled as routes of their own.
	Def *Route

	cache   *CachePolicy
	matcher pathMatcher
}

// Name returns the route's name, or its path when unnamed.
func (r *CompiledRoute) Name() string {
	if r.Def.Name != "" {
		return r.Def.Name
	}
	return r.Path
}

// MatcherKind reports which matcher variant was compiled for the route:
// "static", "segment" or "regexp".
func (r *CompiledRoute) MatcherKind() string {
	if r.Static {
		return "static"
	}
	return r.matcher.kind()
}

// NavigationContext is what guards and loaders receive. It is built fresh
// for every navigation attempt and must be treated as read-only.
type NavigationContext struct {
	// ID identifies the navigation attempt.
	ID string

	// Path is the matched pathname.
	Path string

	// Route is the matched route.
	Route *CompiledRoute

	// Params are the extracted route parameters.
	Params map[string]string

	// Query is the query string as read from the location.
	Query url.Values

	// Hash is the fragment as read from the location.
	Hash string

	// GuardData is the value an allowing guard attached with AllowWith.
	// It is nil inside the guard itself.
	GuardData any
}

// RouteMatch is a committed (or resolved) navigation result.
// A RouteMatch is never mutated once published.
type RouteMatch struct {
	Route  *CompiledRoute
	Params map[string]string
	Query  url.Values
	Hash   string
	Path   string

	// Data is what the route's Loader returned.
	Data any

	// View is what the route's View loader returned.
	View any
}

// Param returns a route parameter, or "" when absent.
func (m *RouteMatch) Param(name string) string {
	if m == nil {
		return ""
	}
	return m.Params[name]
}
