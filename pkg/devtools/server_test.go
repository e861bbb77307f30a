package devtools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/waypoint/pkg/middleware"
	"github.com/vango-dev/waypoint/pkg/router"
)

func newTestServer(t *testing.T) (*Server, *router.Router, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	r, err := router.New([]router.Route{
		{Path: "/", Name: "home"},
		{Path: "/products/:id", Loader: func(_ context.Context, nav *router.NavigationContext) (any, error) {
			return map[string]string{"id": nav.Params["id"]}, nil
		}},
		{Path: "/admin", Guard: func(context.Context, *router.NavigationContext) (router.GuardResult, error) {
			return router.Deny("nope"), nil
		}},
	}, router.WithMiddleware(middleware.Prometheus(middleware.WithRegistry(reg))))
	if err != nil {
		t.Fatalf("router.New() error = %v", err)
	}
	t.Cleanup(r.Close)

	s := New(r, Config{Gatherer: reg})
	t.Cleanup(s.feed.Close)
	return s, r, reg
}

func doJSON(t *testing.T, h http.Handler, method, target, body string, out any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode error: %v (body %q)", method, target, err, rec.Body.String())
		}
	}
	return rec
}

func TestRoutesEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	var routes []RouteView
	rec := doJSON(t, s.Handler(), "GET", "/routes", "", &routes)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(routes) != 3 {
		t.Fatalf("got %d routes, want 3", len(routes))
	}
	if routes[0].Name != "home" || routes[0].Matcher != "static" {
		t.Errorf("routes[0] = %+v", routes[0])
	}
	if routes[1].Path != "/products/:id" || !routes[1].Loader || routes[1].Matcher != "segment" {
		t.Errorf("routes[1] = %+v", routes[1])
	}
	if !routes[2].Guard {
		t.Errorf("routes[2] = %+v", routes[2])
	}
}

func TestMatchEndpoint(t *testing.T) {
	s, r, _ := newTestServer(t)
	h := s.Handler()

	var m MatchView
	rec := doJSON(t, h, "GET", "/match?path=%2Fproducts%2F77%3Fref%3Dhome", "", &m)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if m.Route != "/products/:id" || m.Params["id"] != "77" || m.Query["ref"][0] != "home" {
		t.Errorf("match = %+v", m)
	}
	if r.Current() != nil {
		t.Error("dry-run match navigated")
	}

	if rec := doJSON(t, h, "GET", "/match?path=/nowhere", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unmatched status = %d, want 404", rec.Code)
	}
	if rec := doJSON(t, h, "GET", "/match", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("missing path status = %d, want 400", rec.Code)
	}
}

func TestNavigateEndpoint(t *testing.T) {
	s, r, _ := newTestServer(t)
	h := s.Handler()

	if rec := doJSON(t, h, "GET", "/current", "", nil); rec.Code != http.StatusNoContent {
		t.Errorf("initial /current status = %d, want 204", rec.Code)
	}

	var out OutcomeView
	doJSON(t, h, "POST", "/navigate", `{"path": "/products/5"}`, &out)
	if out.Phase != "committed" || out.Match == nil || out.Match.Params["id"] != "5" {
		t.Fatalf("outcome = %+v", out)
	}
	if r.Current() == nil || r.Current().Path != "/products/5" {
		t.Error("navigation did not commit")
	}

	var current MatchView
	doJSON(t, h, "GET", "/current", "", &current)
	if current.Path != "/products/5" {
		t.Errorf("current = %+v", current)
	}

	out = OutcomeView{}
	doJSON(t, h, "POST", "/navigate", `{"path": "/admin"}`, &out)
	if out.Phase != "denied" || out.Kind != "guard-failed" {
		t.Errorf("outcome = %+v", out)
	}

	if rec := doJSON(t, h, "POST", "/navigate", `{`, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", rec.Code)
	}
	if rec := doJSON(t, h, "GET", "/navigate", "", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /navigate status = %d, want 405", rec.Code)
	}
}

func TestCacheAndMetricsEndpoints(t *testing.T) {
	s, r, _ := newTestServer(t)
	h := s.Handler()

	r.Match("/products/1")
	r.Match("/products/1")

	var cache CacheView
	doJSON(t, h, "GET", "/cache", "", &cache)
	if cache.Match.Hits != 1 || cache.Match.Misses != 1 {
		t.Errorf("cache = %+v", cache)
	}
	if cache.Policy.Strategy != router.CacheByPathAndParams {
		t.Errorf("policy = %+v", cache.Policy)
	}

	r.Navigate(context.Background(), "/")
	rec := doJSON(t, h, "GET", "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `waypoint_navigations_total{phase="committed",route="/"} 1`) {
		t.Errorf("metrics output missing navigation counter:\n%s", rec.Body.String())
	}
}

func readFeed(t *testing.T, conn *websocket.Conn) FeedMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg FeedMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func TestFeedStreamsCommits(t *testing.T) {
	s, r, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	// The feed starts with the state at subscription time: nothing committed.
	if msg := readFeed(t, conn); msg.Type != FeedClear {
		t.Fatalf("first message = %+v, want clear", msg)
	}

	r.Navigate(context.Background(), "/products/9")
	msg := readFeed(t, conn)
	if msg.Type != FeedCommit || msg.Match == nil || msg.Match.Path != "/products/9" {
		t.Fatalf("message = %+v, want commit of /products/9", msg)
	}

	r.Navigate(context.Background(), "/missing")
	if msg := readFeed(t, conn); msg.Type != FeedClear {
		t.Errorf("message = %+v, want clear", msg)
	}

	if s.Feed().ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", s.Feed().ClientCount())
	}
}

func TestSwapAnnouncesReload(t *testing.T) {
	s, _, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	readFeed(t, conn) // initial clear

	next, err := router.New([]router.Route{{Path: "/v2"}})
	if err != nil {
		t.Fatalf("router.New() error = %v", err)
	}
	defer next.Close()
	s.Swap(next)

	if msg := readFeed(t, conn); msg.Type != FeedReload {
		t.Fatalf("message = %+v, want reload", msg)
	}
	if msg := readFeed(t, conn); msg.Type != FeedClear {
		t.Fatalf("message = %+v, want clear from the new engine", msg)
	}

	var routes []RouteView
	doJSON(t, s.Handler(), "GET", "/routes", "", &routes)
	if len(routes) != 1 || routes[0].Path != "/v2" {
		t.Errorf("routes after swap = %+v", routes)
	}
}
