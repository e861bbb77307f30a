package router

import (
	"reflect"
	"testing"

	"github.com/vango-dev/waypoint/pkg/routepath"
)

func mustMatcher(t *testing.T, pattern string, mode MatcherMode) pathMatcher {
	t.Helper()
	p, err := routepath.Parse(pattern)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", pattern, err)
	}
	m, err := newPathMatcher(p, mode)
	if err != nil {
		t.Fatalf("newPathMatcher(%q) error = %v", pattern, err)
	}
	return m
}

func TestPathMatchers(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    []string
		ok      bool
	}{
		{"/users/:id", "/users/42", []string{"42"}, true},
		{"/users/:id", "/users", nil, false},
		{"/users/:id", "/users/42/posts", nil, false},
		{"/users/:id", "/people/42", nil, false},
		{"/users/:userId/posts/:postId", "/users/7/posts/9", []string{"7", "9"}, true},
		{"/:lang/docs", "/en/docs", []string{"en"}, true},
		{"/:lang/docs", "/en/blog", nil, false},
		{"/files/:name.:ext", "/files/report.pdf", []string{"report", "pdf"}, true},
		{"/files/:name.:ext", "/files/report.final.pdf", []string{"report", "final.pdf"}, true},
		{"/files/:name.:ext", "/files/report", nil, false},
		{"/v:version/api", "/v2/api", []string{"2"}, true},
	}

	for _, tt := range tests {
		for _, mode := range []MatcherMode{MatcherAuto, MatcherRegexp} {
			m := mustMatcher(t, tt.pattern, mode)
			got, ok := m.match(tt.path)
			if ok != tt.ok {
				t.Errorf("%s matcher %q on %q: ok = %v, want %v", m.kind(), tt.pattern, tt.path, ok, tt.ok)
				continue
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("%s matcher %q on %q = %v, want %v", m.kind(), tt.pattern, tt.path, got, tt.want)
			}
		}
	}
}

func TestMatcherSelection(t *testing.T) {
	tests := []struct {
		pattern string
		mode    MatcherMode
		want    string
	}{
		{"/users/:id", MatcherAuto, "segment"},
		{"/users/:id", MatcherRegexp, "regexp"},
		{"/files/:name.:ext", MatcherAuto, "regexp"},
		{"/v:version", MatcherAuto, "regexp"},
	}
	for _, tt := range tests {
		if got := mustMatcher(t, tt.pattern, tt.mode).kind(); got != tt.want {
			t.Errorf("matcher for %q = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}

func TestRegexpMatcherQuotesLiterals(t *testing.T) {
	m := mustMatcher(t, "/a+b/:id", MatcherRegexp)
	if _, ok := m.match("/aab/1"); ok {
		t.Error("literal '+' was treated as a regexp operator")
	}
	if got, ok := m.match("/a+b/1"); !ok || got[0] != "1" {
		t.Errorf("match(/a+b/1) = %v, %v", got, ok)
	}
}

func TestExtractParams(t *testing.T) {
	params, ok := extractParams([]string{"q", "id"}, []string{"hello%20world", "7"})
	if !ok {
		t.Fatal("extractParams() failed")
	}
	want := map[string]string{"q": "hello world", "id": "7"}
	if !reflect.DeepEqual(params, want) {
		t.Errorf("params = %v, want %v", params, want)
	}

	if _, ok := extractParams([]string{"path"}, []string{"a%2Fb"}); ok {
		t.Error("encoded slash should not decode into a parameter")
	}
}
