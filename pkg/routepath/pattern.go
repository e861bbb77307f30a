package routepath

import (
	"errors"
	"fmt"
	"strings"
)

// Pattern parsing errors.
var (
	ErrUnterminatedParam = errors.New("parameter token has no name")
	ErrInvalidParamName  = errors.New("parameter name must start with a letter or underscore")
	ErrDuplicateParam    = errors.New("parameter name used more than once")
	ErrAdjacentParams    = errors.New("parameter tokens must be separated by a literal")
)

// Join resolves a child route path against its parent's full path.
// Duplicate separators are collapsed, the trailing separator is stripped,
// and an empty result resolves to "/".
func Join(parent, child string) string {
	return Clean(parent + "/" + child)
}

// Clean collapses duplicate separators, strips the trailing separator and
// guarantees a leading one. Unlike CanonicalizePath it never interprets
// "." or ".." and never fails, which makes it suitable for patterns.
func Clean(p string) string {
	segments := strings.Split(p, "/")
	kept := segments[:0]
	for _, seg := range segments {
		if seg != "" {
			kept = append(kept, seg)
		}
	}
	return "/" + strings.Join(kept, "/")
}

// Part is one piece of a pattern segment: either a literal or a parameter.
type Part struct {
	Literal string
	Param   string
}

// IsParam reports whether the part captures a parameter.
func (p Part) IsParam() bool {
	return p.Param != ""
}

// Segment is one "/"-delimited piece of a pattern.
type Segment []Part

// Whole reports whether the segment is exactly one parameter token, which
// is the shape a segment-by-segment matcher can capture without a regexp.
func (s Segment) Whole() bool {
	return len(s) == 1 && s[0].IsParam()
}

// Pattern is a parsed route pattern.
type Pattern struct {
	// Path is the cleaned pattern text.
	Path string

	// Segments are the parsed segments, left to right.
	Segments []Segment

	// Params are the parameter names in left-to-right order.
	Params []string
}

// Static reports whether the pattern has no parameters.
func (p *Pattern) Static() bool {
	return len(p.Params) == 0
}

// Embedded reports whether any parameter shares its segment with a
// literal or with another parameter (e.g. "/files/:name.:ext").
func (p *Pattern) Embedded() bool {
	for _, seg := range p.Segments {
		hasParam := false
		for _, part := range seg {
			if part.IsParam() {
				hasParam = true
			}
		}
		if hasParam && !seg.Whole() {
			return true
		}
	}
	return false
}

// Parse scans a pattern for ":identifier" tokens.
//
// An identifier starts with a letter or underscore and continues with
// letters, digits or underscores; the first other character ends it. A
// ":" that is not followed by a valid identifier is rejected, as are
// repeated names and two tokens with nothing between them.
func Parse(pattern string) (*Pattern, error) {
	clean := Clean(pattern)
	p := &Pattern{Path: clean}
	if clean == "/" {
		return p, nil
	}

	seen := make(map[string]bool)
	for _, raw := range strings.Split(clean[1:], "/") {
		seg, err := parseSegment(raw)
		if err != nil {
			return nil, fmt.Errorf("segment %q: %w", raw, err)
		}
		for _, part := range seg {
			if !part.IsParam() {
				continue
			}
			if seen[part.Param] {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateParam, part.Param)
			}
			seen[part.Param] = true
			p.Params = append(p.Params, part.Param)
		}
		p.Segments = append(p.Segments, seg)
	}
	return p, nil
}

func parseSegment(raw string) (Segment, error) {
	var seg Segment
	var lit strings.Builder
	for i := 0; i < len(raw); {
		if raw[i] != ':' {
			lit.WriteByte(raw[i])
			i++
			continue
		}
		j := i + 1
		if j >= len(raw) {
			return nil, ErrUnterminatedParam
		}
		if !isIdentStart(raw[j]) {
			return nil, ErrInvalidParamName
		}
		for j < len(raw) && isIdentPart(raw[j]) {
			j++
		}
		if lit.Len() > 0 {
			seg = append(seg, Part{Literal: lit.String()})
			lit.Reset()
		} else if len(seg) > 0 && seg[len(seg)-1].IsParam() {
			return nil, ErrAdjacentParams
		}
		seg = append(seg, Part{Param: raw[i+1 : j]})
		i = j
	}
	if lit.Len() > 0 {
		seg = append(seg, Part{Literal: lit.String()})
	}
	return seg, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
