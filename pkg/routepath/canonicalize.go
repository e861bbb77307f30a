package routepath

import (
	"errors"
	"net/url"
	"strings"
)

// CanonicalizeResult contains the result of path canonicalization.
type CanonicalizeResult struct {
	// Path is the canonicalized path (without query string or fragment).
	Path string

	// Query is the query string (without leading "?").
	Query string

	// Fragment is the fragment (without leading "#").
	Fragment string

	// Changed indicates if the path was modified during canonicalization.
	Changed bool
}

// URL rebuilds the navigation target from its canonical parts.
func (r CanonicalizeResult) URL() string {
	var b strings.Builder
	b.WriteString(r.Path)
	if r.Query != "" {
		b.WriteByte('?')
		b.WriteString(r.Query)
	}
	if r.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(r.Fragment)
	}
	return b.String()
}

// Path canonicalization errors.
var (
	ErrInvalidPath           = errors.New("invalid path")
	ErrBackslashInPath       = errors.New("path contains backslash")
	ErrNullByteInPath        = errors.New("path contains null byte")
	ErrInvalidPercentEscape  = errors.New("invalid percent escape sequence")
	ErrPathEscapesRoot       = errors.New("path escapes root via ..")
	ErrEncodedSlashInSegment = errors.New("encoded slash (%2F) in parameter segment")
)

// CanonicalizePath normalizes a navigation target.
//
// The following transformations are applied to the path part:
//   - Remove trailing slash (except for root "/")
//   - Collapse multiple slashes (/blog//post → /blog/post)
//   - Remove "." segments (/blog/./post → /blog/post)
//   - Resolve ".." segments (/blog/../other → /other)
//
// The following inputs are rejected with an error:
//   - Paths containing backslash (\)
//   - Paths containing NUL byte (%00)
//   - Invalid percent-escapes (e.g., %GG, %2)
//   - ".." that would escape root (e.g., /../secret)
//
// The query string and fragment are split off and preserved verbatim.
func CanonicalizePath(input string) (CanonicalizeResult, error) {
	if input == "" {
		return CanonicalizeResult{Path: "/", Changed: true}, nil
	}

	path, query, fragment := SplitLocation(input)

	if strings.Contains(path, "\\") {
		return CanonicalizeResult{}, ErrBackslashInPath
	}
	if strings.Contains(path, "\x00") || strings.Contains(strings.ToUpper(path), "%00") {
		return CanonicalizeResult{}, ErrNullByteInPath
	}
	if strings.Contains(path, "%") {
		if err := validatePercentEscapes(path); err != nil {
			return CanonicalizeResult{}, err
		}
	}

	original := path

	segments := strings.Split(path, "/")
	result := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(result) == 0 {
				return CanonicalizeResult{}, ErrPathEscapesRoot
			}
			result = result[:len(result)-1]
		default:
			result = append(result, seg)
		}
	}
	path = "/" + strings.Join(result, "/")

	return CanonicalizeResult{
		Path:     path,
		Query:    query,
		Fragment: fragment,
		Changed:  path != original,
	}, nil
}

// validatePercentEscapes checks that all percent-escapes are valid.
// Valid escapes are %XX where X is a hex digit (0-9, a-f, A-F).
func validatePercentEscapes(path string) error {
	i := 0
	for i < len(path) {
		if path[i] == '%' {
			if i+2 >= len(path) {
				return ErrInvalidPercentEscape
			}
			if !isHexDigit(path[i+1]) || !isHexDigit(path[i+2]) {
				return ErrInvalidPercentEscape
			}
			i += 3
		} else {
			i++
		}
	}
	return nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// DecodeSegment decodes a single captured parameter value.
// A value that decodes to something containing "/" is rejected, since a
// parameter never spans more than one segment.
func DecodeSegment(segment string) (string, error) {
	if !strings.Contains(segment, "%") {
		return segment, nil
	}
	decoded, err := url.PathUnescape(segment)
	if err != nil {
		return "", ErrInvalidPercentEscape
	}
	if strings.Contains(decoded, "/") {
		return "", ErrEncodedSlashInSegment
	}
	return decoded, nil
}

// ValidateNavPath canonicalizes a navigation target and rejects anything
// that is not an app-relative path (absolute URLs, protocol-relative URLs).
// It returns the canonical target including query string and fragment.
func ValidateNavPath(path string) (CanonicalizeResult, error) {
	if strings.HasPrefix(path, "http://") ||
		strings.HasPrefix(path, "https://") ||
		strings.HasPrefix(path, "//") {
		return CanonicalizeResult{}, ErrInvalidPath
	}
	if !strings.HasPrefix(path, "/") {
		return CanonicalizeResult{}, ErrInvalidPath
	}
	return CanonicalizePath(path)
}

// SplitLocation splits a location into path, query and fragment.
// The query is returned without the leading "?" and the fragment without
// the leading "#".
func SplitLocation(input string) (path, query, fragment string) {
	rest, fragment, _ := strings.Cut(input, "#")
	path, query, _ = strings.Cut(rest, "?")
	return path, query, fragment
}
