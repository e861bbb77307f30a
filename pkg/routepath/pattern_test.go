package routepath

import (
	"errors"
	"reflect"
	"testing"
)

func TestJoin(t *testing.T) {
	tests := []struct {
		parent, child, want string
	}{
		{"/", "", "/"},
		{"", "", "/"},
		{"/", "about", "/about"},
		{"/users", ":id", "/users/:id"},
		{"/users/", "/:id/", "/users/:id"},
		{"/admin//", "//settings", "/admin/settings"},
		{"/docs", "", "/docs"},
	}

	for _, tc := range tests {
		if got := Join(tc.parent, tc.child); got != tc.want {
			t.Errorf("Join(%q, %q) = %q, want %q", tc.parent, tc.child, got, tc.want)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		pattern      string
		wantParams   []string
		wantStatic   bool
		wantEmbedded bool
	}{
		{pattern: "/", wantStatic: true},
		{pattern: "/about", wantStatic: true},
		{pattern: "/products/:id", wantParams: []string{"id"}},
		{pattern: "/users/:userId/posts/:postId", wantParams: []string{"userId", "postId"}},
		{pattern: "/files/:name.:ext", wantParams: []string{"name", "ext"}, wantEmbedded: true},
		{pattern: "/v:version/docs", wantParams: []string{"version"}, wantEmbedded: true},
		{pattern: "/a/:snake_case1", wantParams: []string{"snake_case1"}},
	}

	for _, tc := range tests {
		t.Run(tc.pattern, func(t *testing.T) {
			p, err := Parse(tc.pattern)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tc.pattern, err)
			}
			if !reflect.DeepEqual(p.Params, tc.wantParams) {
				t.Errorf("Params = %v, want %v", p.Params, tc.wantParams)
			}
			if p.Static() != tc.wantStatic {
				t.Errorf("Static() = %v, want %v", p.Static(), tc.wantStatic)
			}
			if p.Embedded() != tc.wantEmbedded {
				t.Errorf("Embedded() = %v, want %v", p.Embedded(), tc.wantEmbedded)
			}
		})
	}
}

func TestParseSegments(t *testing.T) {
	p, err := Parse("/files/:name.:ext")
	if err != nil {
		t.Fatal(err)
	}
	want := []Segment{
		{{Literal: "files"}},
		{{Param: "name"}, {Literal: "."}, {Param: "ext"}},
	}
	if !reflect.DeepEqual(p.Segments, want) {
		t.Errorf("Segments = %#v, want %#v", p.Segments, want)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		pattern string
		wantErr error
	}{
		{"/users/:", ErrUnterminatedParam},
		{"/users/:1id", ErrInvalidParamName},
		{"/users/:-x", ErrInvalidParamName},
		{"/a/:id/b/:id", ErrDuplicateParam},
		{"/a/:x:y", ErrAdjacentParams},
	}

	for _, tc := range tests {
		_, err := Parse(tc.pattern)
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("Parse(%q) error = %v, want %v", tc.pattern, err, tc.wantErr)
		}
	}
}
