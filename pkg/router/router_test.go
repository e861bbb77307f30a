package router

import (
	"errors"
	"net/url"
	"sync"
	"testing"
)

// testLocation is a Location whose query and fragment tests can change.
type testLocation struct {
	mu       sync.Mutex
	query    url.Values
	fragment string
}

func (l *testLocation) Set(query, fragment string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.query, _ = url.ParseQuery(query)
	l.fragment = fragment
}

func (l *testLocation) Query() url.Values {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := url.Values{}
	for k, v := range l.query {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func (l *testLocation) Fragment() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fragment
}

func mustRouter(t *testing.T, routes []Route, opts ...Option) *Router {
	t.Helper()
	r, err := New(routes, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func TestMatchStaticIsIdempotent(t *testing.T) {
	r := mustRouter(t, []Route{{Path: "/"}, {Path: "/about"}})

	first, ok := r.Match("/about")
	if !ok {
		t.Fatal("expected match for /about")
	}
	second, ok := r.Match("/about")
	if !ok {
		t.Fatal("expected second match for /about")
	}
	if first.Route != second.Route {
		t.Error("matches resolved to different routes")
	}
	if len(first.Params) != 0 || len(second.Params) != 0 {
		t.Errorf("static match has params: %v %v", first.Params, second.Params)
	}
	if first.Path != "/about" {
		t.Errorf("Path = %q, want /about", first.Path)
	}
}

func TestMatchParamsAndLiveQuery(t *testing.T) {
	loc := &testLocation{}
	loc.Set("tab=comments", "c1")
	r := mustRouter(t, []Route{
		{Path: "/users/:userId/posts/:postId"},
	}, WithLocation(loc))

	first, ok := r.Match("/users/42/posts/7")
	if !ok {
		t.Fatal("expected match")
	}
	if first.Param("userId") != "42" || first.Param("postId") != "7" {
		t.Errorf("params = %v", first.Params)
	}
	if first.Query.Get("tab") != "comments" || first.Hash != "c1" {
		t.Errorf("query = %v hash = %q", first.Query, first.Hash)
	}

	loc.Set("tab=likes", "l2")
	second, ok := r.Match("/users/42/posts/7")
	if !ok {
		t.Fatal("expected cached match")
	}
	if second.Query.Get("tab") != "likes" || second.Hash != "l2" {
		t.Errorf("cached match reused a stale location: query = %v hash = %q", second.Query, second.Hash)
	}
	if first.Query.Get("tab") != "comments" {
		t.Error("first match's query was mutated")
	}

	second.Params["userId"] = "mutated"
	third, _ := r.Match("/users/42/posts/7")
	if third.Param("userId") != "42" {
		t.Error("params map is shared with the cache")
	}

	stats := r.CacheStats()
	if stats.Hits != 2 || stats.Misses != 1 || stats.Size != 1 {
		t.Errorf("CacheStats() = %+v", stats)
	}
}

func TestMatchCacheEviction(t *testing.T) {
	r := mustRouter(t, []Route{{Path: "/items/:id"}},
		WithCache(CachePolicy{MaxEntries: 2}))

	r.Match("/items/1")
	r.Match("/items/2")
	r.Match("/items/1") // refresh 1; 2 is now least recently used
	r.Match("/items/3")

	if r.matches.Contains("/items/2") {
		t.Error("least recently used entry was not evicted")
	}
	if !r.matches.Contains("/items/1") || !r.matches.Contains("/items/3") {
		t.Error("expected /items/1 and /items/3 to stay cached")
	}
	if got := r.CacheStats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}
}

func TestMatchCacheNone(t *testing.T) {
	r := mustRouter(t, []Route{{Path: "/items/:id"}},
		WithCache(CachePolicy{Strategy: CacheNone}))

	for i := 0; i < 3; i++ {
		if _, ok := r.Match("/items/1"); !ok {
			t.Fatal("expected match")
		}
	}
	if stats := r.CacheStats(); stats != (CacheStats{}) {
		t.Errorf("CacheStats() = %+v, want zero", stats)
	}
}

func TestMatchMiss(t *testing.T) {
	r := mustRouter(t, []Route{{Path: "/users/:id"}})
	for _, path := range []string{"/", "/users", "/users/1/2", "/users/a%2Fb"} {
		if m, ok := r.Match(path); ok {
			t.Errorf("Match(%q) = %v, want no match", path, m.Route.Path)
		}
	}
}

func TestResolve(t *testing.T) {
	r := mustRouter(t, []Route{{Path: "/products/:id"}})

	m, ok := r.Resolve("/products//77/?ref=home#reviews")
	if !ok {
		t.Fatal("expected match")
	}
	if m.Route.Path != "/products/:id" || m.Param("id") != "77" {
		t.Errorf("Resolve() = %s %v", m.Route.Path, m.Params)
	}
	if m.Query.Get("ref") != "home" || m.Hash != "reviews" {
		t.Errorf("query = %v hash = %q", m.Query, m.Hash)
	}

	if _, ok := r.Resolve("/products/../../etc"); ok {
		t.Error("path escaping the root should not resolve")
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrEmptyRoutes) {
		t.Errorf("New(nil) error = %v", err)
	}
	_, err := New([]Route{{Path: "/"}}, WithCache(CachePolicy{Strategy: "weekly"}))
	if !errors.Is(err, ErrInvalidCachePolicy) {
		t.Errorf("bad policy error = %v", err)
	}
}

func TestRoutesAndPolicy(t *testing.T) {
	r := mustRouter(t, []Route{
		{Path: "/a", Children: []Route{{Path: "b"}}},
	})
	routes := r.Routes()
	if len(routes) != 2 || routes[0].Path != "/a" || routes[1].Path != "/a/b" {
		t.Errorf("Routes() = %v", routes)
	}
	routes[0] = nil
	if r.Routes()[0] == nil {
		t.Error("Routes() exposes internal storage")
	}
	if got := r.CachePolicy(); got != DefaultCachePolicy() {
		t.Errorf("CachePolicy() = %+v", got)
	}
}

func TestSubscribeDeliversCurrent(t *testing.T) {
	r := mustRouter(t, []Route{{Path: "/"}})

	var got []*RouteMatch
	unsubscribe := r.Subscribe(func(m *RouteMatch) { got = append(got, m) })
	defer unsubscribe()

	if len(got) != 1 || got[0] != nil {
		t.Errorf("initial delivery = %v, want [nil]", got)
	}
}
