package router

import (
	"fmt"

	"github.com/vango-dev/waypoint/pkg/routepath"
)

// routeTable is the compiler's output: a direct lookup table for static
// paths and an ordered matcher list for dynamic ones.
type routeTable struct {
	static  map[string]*CompiledRoute
	dynamic []*CompiledRoute
	all     []*CompiledRoute // registration order, parents before children
}

// compileRoutes flattens the route tree. It runs once per router and
// touches every route exactly once.
func compileRoutes(routes []Route, mode MatcherMode) (*routeTable, error) {
	if len(routes) == 0 {
		return nil, &RouteError{Op: "compile", Err: ErrEmptyRoutes}
	}
	t := &routeTable{static: make(map[string]*CompiledRoute)}
	seen := make(map[string]bool)
	if err := t.add(routes, "", nil, mode, seen); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *routeTable) add(routes []Route, parent string, inherited *CachePolicy, mode MatcherMode, seen map[string]bool) error {
	for i := range routes {
		def := routes[i]
		children := def.Children
		def.Children = nil

		full := routepath.Join(parent, def.Path)
		pattern, err := routepath.Parse(full)
		if err != nil {
			return &RouteError{Path: full, Op: "parse", Err: wrapMalformed(err)}
		}
		if seen[pattern.Path] {
			return &RouteError{Path: pattern.Path, Op: "register", Err: ErrDuplicateRoute}
		}
		seen[pattern.Path] = true

		policy := inherited
		if def.Cache != nil {
			p := def.Cache.withDefaults()
			if err := p.validate(); err != nil {
				return &RouteError{Path: pattern.Path, Op: "cache", Err: err}
			}
			policy = &p
		}

		cr := &CompiledRoute{
			Path:       pattern.Path,
			Parent:     parent,
			ParamNames: pattern.Params,
			Static:     pattern.Static(),
			Def:        &def,
			cache:      policy,
		}

		if cr.Static {
			t.static[cr.Path] = cr
		} else {
			m, err := newPathMatcher(pattern, mode)
			if err != nil {
				return &RouteError{Path: cr.Path, Op: "matcher", Err: wrapMalformed(err)}
			}
			cr.matcher = m
			t.dynamic = append(t.dynamic, cr)
		}
		t.all = append(t.all, cr)

		if len(children) > 0 {
			if err := t.add(children, cr.Path, policy, mode, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

// scan tries the dynamic matchers in registration order. First match wins.
func (t *routeTable) scan(path string) (*CompiledRoute, map[string]string, bool) {
	for _, cr := range t.dynamic {
		values, ok := cr.matcher.match(path)
		if !ok {
			continue
		}
		params, ok := extractParams(cr.ParamNames, values)
		if !ok {
			continue
		}
		return cr, params, true
	}
	return nil, nil, false
}

func wrapMalformed(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformedPattern, err)
}
