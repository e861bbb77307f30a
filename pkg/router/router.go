package router

import (
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/waypoint/pkg/routepath"
)

// Router compiles a route tree once and runs navigations against it.
//
// A Router is safe for concurrent use. Starting a navigation supersedes
// the one in flight; only the most recently started navigation can commit.
type Router struct {
	opts       options
	middleware []Middleware // each wrapped by settle
	table      *routeTable
	policy     CachePolicy
	matches    *lruCache[matchEntry] // nil when the strategy is CacheNone
	data       map[*CompiledRoute]*dataCache
	location   Location
	history    History
	logger     *slog.Logger
	bus        *bus

	// mu guards live and closed.
	mu     sync.Mutex
	live   *Navigation
	closed bool

	// commitMu serializes commit and notify so listeners observe commits
	// in order.
	commitMu sync.Mutex
	current  atomic.Pointer[RouteMatch]
}

// New compiles routes and returns a router. Configuration problems
// (malformed patterns, duplicate routes, invalid cache policies) are
// reported here as a *RouteError.
func New(routes []Route, opts ...Option) (*Router, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	policy := DefaultCachePolicy()
	if o.cache != nil {
		policy = o.cache.withDefaults()
	}
	if err := policy.validate(); err != nil {
		return nil, &RouteError{Op: "cache", Err: err}
	}

	table, err := compileRoutes(routes, o.matcherMode)
	if err != nil {
		return nil, err
	}

	r := &Router{
		opts:     o,
		table:    table,
		policy:   policy,
		data:     make(map[*CompiledRoute]*dataCache),
		location: o.location,
		history:  o.history,
		logger:   o.logger,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.location == nil && r.history == nil {
		h := NewMemoryHistory("/")
		r.location, r.history = h, h
	} else if r.location == nil {
		if loc, ok := r.history.(Location); ok {
			r.location = loc
		}
	}

	if policy.Strategy != CacheNone {
		r.matches = newLRUCache[matchEntry](policy.MaxEntries, policy.TTL, o.now)
	}
	for _, cr := range table.all {
		p := cr.cache
		if p == nil && o.cache != nil {
			p = &policy
		}
		if p == nil || p.Strategy == CacheNone || cr.Def.Loader == nil {
			continue
		}
		r.data[cr] = &dataCache{strategy: p.Strategy, lruCache: newLRUCache[any](p.MaxEntries, p.TTL, o.now)}
	}

	for _, m := range o.middleware {
		r.middleware = append(r.middleware, r.settle(m))
	}

	r.bus = newBus()

	r.logger.Debug("router compiled",
		"routes", len(table.all),
		"static", len(table.static),
		"dynamic", len(table.dynamic),
		"cache", string(policy.Strategy),
	)
	return r, nil
}

// Match resolves a clean pathname (no base prefix, query or fragment) to
// a route. The query and fragment of the result are read from the live
// location on every call, whether or not the route came from the cache.
func (r *Router) Match(pathname string) (*RouteMatch, bool) {
	var loc Location = staticLocation{}
	if r.location != nil {
		loc = r.location
	}
	return r.matchWith(pathname, loc)
}

// Resolve canonicalizes target (which may carry a query and fragment) and
// matches it without navigating. Query and fragment come from target.
func (r *Router) Resolve(target string) (*RouteMatch, bool) {
	loc, err := routepath.CanonicalizePath(target)
	if err != nil {
		return nil, false
	}
	return r.matchWith(loc.Path, staticLocation{query: loc.Query, fragment: loc.Fragment})
}

func (r *Router) matchWith(pathname string, loc Location) (*RouteMatch, bool) {
	entry, ok := r.lookup(pathname)
	if !ok {
		return nil, false
	}
	return &RouteMatch{
		Route:  entry.route,
		Params: copyParams(entry.params),
		Query:  loc.Query(),
		Hash:   loc.Fragment(),
		Path:   entry.path,
	}, true
}

// lookup finds the route for pathname: static table first, then the
// cache, then the dynamic matchers.
func (r *Router) lookup(pathname string) (matchEntry, bool) {
	if cr, ok := r.table.static[pathname]; ok {
		return matchEntry{route: cr, params: map[string]string{}, path: pathname}, true
	}
	if r.matches != nil {
		if entry, ok := r.matches.Get(pathname); ok {
			return entry, true
		}
	}
	cr, params, ok := r.table.scan(pathname)
	if !ok {
		return matchEntry{}, false
	}
	entry := matchEntry{route: cr, params: params, path: pathname}
	if r.matches != nil {
		r.matches.Set(pathname, entry)
	}
	return entry, true
}

// Current returns the committed match, or nil.
func (r *Router) Current() *RouteMatch {
	return r.current.Load()
}

// Subscribe registers fn and immediately calls it with the current match.
// The returned function unsubscribes; calling it more than once is harmless.
func (r *Router) Subscribe(fn Listener) (unsubscribe func()) {
	r.commitMu.Lock()
	unsubscribe = r.bus.add(fn)
	current := r.current.Load()
	err := deliver(fn, current)
	r.commitMu.Unlock()

	if err != nil {
		var path string
		if current != nil {
			path = current.Path
		}
		r.reportListenerPanics("", path, []error{err})
	}
	return unsubscribe
}

// Routes returns every compiled route in registration order.
func (r *Router) Routes() []*CompiledRoute {
	out := make([]*CompiledRoute, len(r.table.all))
	copy(out, r.table.all)
	return out
}

// CachePolicy returns the effective global cache policy.
func (r *Router) CachePolicy() CachePolicy {
	return r.policy
}

// CacheStats returns the route-match cache counters.
func (r *Router) CacheStats() CacheStats {
	if r.matches == nil {
		return CacheStats{}
	}
	return r.matches.Stats()
}

// DataCacheStats returns the loaded-data cache counters, summed over routes.
func (r *Router) DataCacheStats() CacheStats {
	var total CacheStats
	for _, c := range r.data {
		total = total.add(c.Stats())
	}
	return total
}

// Close cancels the navigation in flight. Later navigations abort
// immediately.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.live != nil {
		r.live.cancel()
	}
}

func copyParams(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

// dataCache holds one route's loaded data.
type dataCache struct {
	strategy CacheStrategy
	*lruCache[any]
}

// key builds the cache key for nav according to the strategy.
func (c *dataCache) key(nav *NavigationContext) string {
	strategy := c.strategy
	names := make([]string, 0, len(nav.Params))
	for name := range nav.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(nav.Route.Path)
	for _, name := range names {
		b.WriteString(";")
		b.WriteString(url.QueryEscape(name))
		b.WriteString("=")
		b.WriteString(url.QueryEscape(nav.Params[name]))
	}
	if strategy == CacheByPathParamsAndQuery || strategy == CacheByFullURL {
		b.WriteString("?")
		b.WriteString(nav.Query.Encode())
	}
	if strategy == CacheByFullURL {
		b.WriteString("#")
		b.WriteString(nav.Hash)
	}
	return b.String()
}
