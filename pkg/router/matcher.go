package router

import (
	"regexp"
	"strings"

	"github.com/vango-dev/waypoint/pkg/routepath"
)

// MatcherMode selects how dynamic patterns are compiled.
type MatcherMode int

const (
	// MatcherAuto uses the segment matcher whenever every parameter
	// occupies a whole segment and falls back to a generated regexp
	// otherwise.
	MatcherAuto MatcherMode = iota

	// MatcherRegexp generates a regexp for every dynamic pattern.
	MatcherRegexp
)

// pathMatcher matches a clean pathname and returns the raw parameter values
// in the order the parameter names were recorded.
type pathMatcher interface {
	match(path string) ([]string, bool)
	kind() string
}

// newPathMatcher picks the matcher variant once, at compile time.
func newPathMatcher(p *routepath.Pattern, mode MatcherMode) (pathMatcher, error) {
	if mode == MatcherAuto && !p.Embedded() {
		return &segmentMatcher{segments: p.Segments, params: len(p.Params)}, nil
	}
	return newRegexpMatcher(p)
}

// segmentMatcher compares a pathname segment by segment. It can only
// express patterns whose parameters are whole segments.
type segmentMatcher struct {
	segments []routepath.Segment
	params   int
}

func (m *segmentMatcher) kind() string { return "segment" }

func (m *segmentMatcher) match(path string) ([]string, bool) {
	if !strings.HasPrefix(path, "/") {
		return nil, false
	}
	rest := path[1:]
	values := make([]string, 0, m.params)
	for i, seg := range m.segments {
		var part string
		if i == len(m.segments)-1 {
			part, rest = rest, ""
			if strings.Contains(part, "/") {
				return nil, false
			}
		} else {
			var ok bool
			part, rest, ok = strings.Cut(rest, "/")
			if !ok {
				return nil, false
			}
		}
		if seg.Whole() {
			if part == "" {
				return nil, false
			}
			values = append(values, part)
			continue
		}
		if part != seg[0].Literal {
			return nil, false
		}
	}
	return values, true
}

// regexpMatcher is the generated-expression variant. Capture groups are
// named after the parameters, in the same order.
type regexpMatcher struct {
	re *regexp.Regexp
}

func newRegexpMatcher(p *routepath.Pattern) (*regexpMatcher, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, seg := range p.Segments {
		b.WriteString("/")
		for _, part := range seg {
			if part.IsParam() {
				b.WriteString("(?P<")
				b.WriteString(part.Param)
				b.WriteString(">[^/]+?)")
			} else {
				b.WriteString(regexp.QuoteMeta(part.Literal))
			}
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, err
	}
	return &regexpMatcher{re: re}, nil
}

func (m *regexpMatcher) kind() string { return "regexp" }

func (m *regexpMatcher) match(path string) ([]string, bool) {
	groups := m.re.FindStringSubmatch(path)
	if groups == nil {
		return nil, false
	}
	return groups[1:], true
}

// extractParams names the raw values positionally and decodes them.
// A value that cannot be decoded makes the route not match.
func extractParams(names, values []string) (map[string]string, bool) {
	params := make(map[string]string, len(names))
	for i, name := range names {
		v, err := routepath.DecodeSegment(values[i])
		if err != nil {
			return nil, false
		}
		params[name] = v
	}
	return params, true
}
