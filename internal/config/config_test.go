package config

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vango-dev/waypoint/internal/errors"
	"github.com/vango-dev/waypoint/pkg/router"
)

const sampleTable = `version: 1
matcher: auto
max_redirects: 4
cache:
  strategy: by-path-params-and-query
  max_entries: 50
  ttl: 30s
devtools:
  address: 127.0.0.1:9090
routes:
  - path: /
    name: home
    view: static:home
  - path: /login
  - path: /products/:id
    loader: echo
    view: name
    meta:
      section: shop
  - path: /admin
    children:
      - path: users/:userId
        guard: require-query:token=>/login
        loader: params
`

func writeTable(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func wantCode(t *testing.T, err error, code string) *errors.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %s, got nil", code)
	}
	var e *errors.Error
	if !stderrors.As(err, &e) {
		t.Fatalf("error %v is not an *errors.Error", err)
	}
	if e.Code != code {
		t.Fatalf("Code = %s, want %s (%v)", e.Code, code, err)
	}
	return e
}

func TestLoad(t *testing.T) {
	path := writeTable(t, sampleTable)

	f, err := Load(filepath.Dir(path))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if f.Path() != path {
		t.Errorf("Path() = %q, want %q", f.Path(), path)
	}
	if f.MaxRedirects != 4 {
		t.Errorf("MaxRedirects = %d, want 4", f.MaxRedirects)
	}
	if f.Cache == nil || f.Cache.TTL != 30*time.Second || f.Cache.MaxEntries != 50 {
		t.Errorf("Cache = %+v", f.Cache)
	}
	if got := f.DevtoolsAddress(); got != "127.0.0.1:9090" {
		t.Errorf("DevtoolsAddress() = %q", got)
	}
	if len(f.Routes) != 4 {
		t.Fatalf("got %d routes, want 4", len(f.Routes))
	}

	products := f.Routes[2]
	if products.Loader != "echo" || products.Meta["section"] != "shop" {
		t.Errorf("products = %+v", products)
	}
	if products.Line != 15 || products.Column != 5 {
		t.Errorf("products at %d:%d, want 15:5", products.Line, products.Column)
	}
	if len(f.Routes[3].Children) != 1 || f.Routes[3].Children[0].Path != "users/:userId" {
		t.Errorf("admin children = %+v", f.Routes[3].Children)
	}
}

func TestLoadDefaults(t *testing.T) {
	f, err := LoadFile(writeTable(t, "routes:\n  - path: /\n"))
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if f.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", f.Version, CurrentVersion)
	}
	if f.DevtoolsAddress() != DefaultDevtoolsAddress {
		t.Errorf("DevtoolsAddress() = %q", f.DevtoolsAddress())
	}
	if mode, _ := f.MatcherMode(); mode != router.MatcherAuto {
		t.Errorf("MatcherMode() = %v, want auto", mode)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(t.TempDir())
	wantCode(t, err, errors.CodeFileNotFound)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		code     string
		wantLine int
	}{
		{
			name:    "invalid yaml",
			content: "routes:\n  - path: /\n  - path: [\n",
			code:    errors.CodeInvalidYAML,
		},
		{
			name:    "unknown top-level key",
			content: "routez:\n  - path: /\n",
			code:    errors.CodeUnknownField,
		},
		{
			name:     "unknown route key",
			content:  "routes:\n  - path: /\n  - path: /a\n    laoder: echo\n",
			code:     errors.CodeUnknownField,
			wantLine: 4,
		},
		{
			name:    "empty file",
			content: "",
			code:    errors.CodeEmptyRoutes,
		},
		{
			name:    "no routes",
			content: "version: 1\n",
			code:    errors.CodeEmptyRoutes,
		},
		{
			name:    "unsupported version",
			content: "version: 2\nroutes:\n  - path: /\n",
			code:    errors.CodeUnsupportedVer,
		},
		{
			name:    "bad matcher",
			content: "matcher: fuzzy\nroutes:\n  - path: /\n",
			code:    errors.CodeInvalidMatcher,
		},
		{
			name:     "missing path",
			content:  "routes:\n  - path: /\n  - name: nameless\n",
			code:     errors.CodeMissingPath,
			wantLine: 3,
		},
		{
			name:    "bad global cache",
			content: "cache:\n  strategy: sometimes\nroutes:\n  - path: /\n",
			code:    errors.CodeInvalidCache,
		},
		{
			name:     "bad route cache",
			content:  "routes:\n  - path: /\n    cache:\n      max_entries: -1\n",
			code:     errors.CodeInvalidCache,
			wantLine: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeTable(t, tt.content))
			e := wantCode(t, err, tt.code)
			if tt.wantLine == 0 {
				return
			}
			if e.Location == nil || e.Location.Line != tt.wantLine {
				t.Errorf("Location = %v, want line %d", e.Location, tt.wantLine)
			}
		})
	}
}

func TestFindProjectRoot(t *testing.T) {
	root := filepath.Dir(writeTable(t, "routes:\n  - path: /\n"))
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := FindProjectRoot(nested)
	if err != nil {
		t.Fatalf("FindProjectRoot error: %v", err)
	}
	if got != root {
		t.Errorf("FindProjectRoot() = %q, want %q", got, root)
	}

	if !Exists(root) || Exists(nested) {
		t.Error("Exists() disagrees with the file layout")
	}
}

func newSampleRouter(t *testing.T) *router.Router {
	t.Helper()
	f, err := LoadFile(writeTable(t, sampleTable))
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	r, err := f.NewRouter(NewRegistry(), nil)
	if err != nil {
		t.Fatalf("NewRouter error: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func TestNewRouter(t *testing.T) {
	r := newSampleRouter(t)

	if n := len(r.Routes()); n != 5 {
		t.Fatalf("got %d compiled routes, want 5", n)
	}
	if p := r.CachePolicy(); p.Strategy != router.CacheByPathParamsAndQuery || p.MaxEntries != 50 {
		t.Errorf("CachePolicy() = %+v", p)
	}

	out := r.Navigate(context.Background(), "/products/7?ref=home")
	if out.Phase != router.PhaseCommitted {
		t.Fatalf("Phase = %s, err = %v", out.Phase, out.Err)
	}
	data, ok := out.Match.Data.(map[string]any)
	if !ok {
		t.Fatalf("Data = %#v", out.Match.Data)
	}
	if data["route"] != "/products/:id" {
		t.Errorf("data[route] = %v", data["route"])
	}
	if params := data["params"].(map[string]string); params["id"] != "7" {
		t.Errorf("data[params] = %v", params)
	}
	if out.Match.View != "/products/:id" {
		t.Errorf("View = %v, want the route name", out.Match.View)
	}

	home := r.Navigate(context.Background(), "/")
	if home.Match == nil || home.Match.View != "home" {
		t.Errorf("home view = %+v", home.Match)
	}

	// The global cache policy enables data caching.
	r.Navigate(context.Background(), "/products/7?ref=home")
	if hits := r.DataCacheStats().Hits; hits != 1 {
		t.Errorf("data cache hits = %d, want 1", hits)
	}
}

func TestNewRouterMatcherMode(t *testing.T) {
	f, err := Parse([]byte("matcher: regexp\nroutes:\n  - path: /users/:id\n"))
	if err != nil {
		t.Fatal(err)
	}
	r, err := f.NewRouter(nil, nil)
	if err != nil {
		t.Fatalf("NewRouter error: %v", err)
	}
	defer r.Close()
	if kind := r.Routes()[0].MatcherKind(); kind != "regexp" {
		t.Errorf("MatcherKind() = %q, want regexp", kind)
	}
}

func TestGuards(t *testing.T) {
	r := newSampleRouter(t)

	out := r.Navigate(context.Background(), "/admin/users/3")
	if len(out.Redirects) != 1 || out.Match == nil || out.Match.Path != "/login" {
		t.Fatalf("unauthenticated admin: %+v", out)
	}

	out = r.Navigate(context.Background(), "/admin/users/3?token=abc")
	if out.Phase != router.PhaseCommitted {
		t.Fatalf("authenticated admin: phase %s, err %v", out.Phase, out.Err)
	}
	if out.Match.Data.(map[string]string)["userId"] != "3" {
		t.Errorf("Data = %v", out.Match.Data)
	}
}

func TestParseGuard(t *testing.T) {
	nav := &router.NavigationContext{Path: "/x", Query: map[string][]string{"k": {"v"}}}

	tests := []struct {
		expr    string
		check   func(router.GuardResult) bool
		wantErr bool
	}{
		{expr: "allow", check: router.GuardResult.Allowed},
		{expr: "deny", check: router.GuardResult.Denied},
		{expr: "deny:closed", check: func(g router.GuardResult) bool { return g.Denied() && g.Reason() == "closed" }},
		{expr: "redirect:/login", check: func(g router.GuardResult) bool {
			p, replace, ok := g.RedirectTarget()
			return ok && p == "/login" && !replace
		}},
		{expr: "replace:/login", check: func(g router.GuardResult) bool {
			_, replace, ok := g.RedirectTarget()
			return ok && replace
		}},
		{expr: "require-query:k", check: func(g router.GuardResult) bool { return g.Allowed() && g.Data() == "v" }},
		{expr: "require-query:missing", check: router.GuardResult.Denied},
		{expr: "require-query:missing=>/in", check: func(g router.GuardResult) bool {
			p, _, ok := g.RedirectTarget()
			return ok && p == "/in"
		}},
		{expr: "redirect:login", wantErr: true},
		{expr: "require-query:", wantErr: true},
		{expr: "maybe", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			guard, err := ParseGuard(tt.expr)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseGuard error: %v", err)
			}
			result, err := guard(context.Background(), nav)
			if err != nil {
				t.Fatalf("guard error: %v", err)
			}
			if !tt.check(result) {
				t.Errorf("unexpected result %v", result)
			}
		})
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		code     string
		wantLine int
	}{
		{
			name:     "unknown loader",
			content:  "routes:\n  - path: /\n  - path: /a\n    loader: fetchUser\n",
			code:     errors.CodeUnknownLoader,
			wantLine: 3,
		},
		{
			name:     "bad loader argument",
			content:  "routes:\n  - path: /a\n    loader: sleep:soon\n",
			code:     errors.CodeUnknownLoader,
			wantLine: 2,
		},
		{
			name:     "unknown view",
			content:  "routes:\n  - path: /a\n    view: jsx\n",
			code:     errors.CodeUnknownView,
			wantLine: 2,
		},
		{
			name:     "unknown guard",
			content:  "routes:\n  - path: /a\n    guard: maybe\n",
			code:     errors.CodeUnknownGuard,
			wantLine: 2,
		},
		{
			name:     "duplicate route",
			content:  "routes:\n  - path: /users\n    children:\n      - path: :id\n  - path: /users/:id\n",
			code:     errors.CodeDuplicateRoute,
			wantLine: 5,
		},
		{
			name:     "malformed pattern",
			content:  "routes:\n  - path: /\n  - path: \"/a/:\"\n",
			code:     errors.CodeMalformedPattern,
			wantLine: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := LoadFile(writeTable(t, tt.content))
			if err != nil {
				t.Fatalf("LoadFile error: %v", err)
			}
			_, err = f.NewRouter(NewRegistry(), nil)
			e := wantCode(t, err, tt.code)
			if e.Location == nil || e.Location.Line != tt.wantLine {
				t.Errorf("Location = %v, want line %d", e.Location, tt.wantLine)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterLoader("user", func(arg string) (router.DataLoader, error) {
		return func(context.Context, *router.NavigationContext) (any, error) { return "user:" + arg, nil }, nil
	})

	f, err := Parse([]byte("routes:\n  - path: /u\n    loader: user:42\n    view: fail:broken\n"))
	if err != nil {
		t.Fatal(err)
	}
	r, err := f.NewRouter(reg, nil)
	if err != nil {
		t.Fatalf("NewRouter error: %v", err)
	}
	defer r.Close()

	out := r.Navigate(context.Background(), "/u")
	if router.KindOf(out.Err) != router.KindComponent {
		t.Errorf("Kind = %q, want component-error", router.KindOf(out.Err))
	}

	found := false
	for _, name := range reg.Loaders() {
		found = found || name == "user"
	}
	if !found {
		t.Errorf("Loaders() = %v, missing user", reg.Loaders())
	}
}

func TestSleepLoaderHonorsCancellation(t *testing.T) {
	loader, err := sleepLoader("1h")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		_, err := loader(ctx, &router.NavigationContext{})
		done <- err
	}()
	select {
	case err := <-done:
		if !stderrors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("sleep loader ignored cancellation")
	}
}
