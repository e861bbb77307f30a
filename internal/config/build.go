package config

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/vango-dev/waypoint/internal/errors"
	"github.com/vango-dev/waypoint/pkg/router"
	"github.com/vango-dev/waypoint/pkg/routepath"
)

// LoaderFactory builds a data loader from the argument after the colon in
// "name:arg" (empty when there is none).
type LoaderFactory func(arg string) (router.DataLoader, error)

// ViewFactory builds a view loader from its argument.
type ViewFactory func(arg string) (router.ViewLoader, error)

// Registry maps the loader and view names used in waypoint.yaml to
// implementations.
type Registry struct {
	loaders map[string]LoaderFactory
	views   map[string]ViewFactory
}

// NewRegistry returns a registry holding the built-in loaders and views:
//
//	loaders: echo, params, sleep:<duration>, fail[:message]
//	views:   name, static:<value>, fail[:message]
func NewRegistry() *Registry {
	r := &Registry{
		loaders: make(map[string]LoaderFactory),
		views:   make(map[string]ViewFactory),
	}
	r.RegisterLoader("echo", func(string) (router.DataLoader, error) { return echoLoader, nil })
	r.RegisterLoader("params", func(string) (router.DataLoader, error) { return paramsLoader, nil })
	r.RegisterLoader("sleep", sleepLoader)
	r.RegisterLoader("fail", func(arg string) (router.DataLoader, error) {
		err := failure(arg, "loader failed")
		return func(context.Context, *router.NavigationContext) (any, error) { return nil, err }, nil
	})
	r.RegisterView("name", func(string) (router.ViewLoader, error) {
		return func(_ context.Context, nav *router.NavigationContext) (any, error) {
			return nav.Route.Name(), nil
		}, nil
	})
	r.RegisterView("static", func(arg string) (router.ViewLoader, error) {
		return func(context.Context, *router.NavigationContext) (any, error) { return arg, nil }, nil
	})
	r.RegisterView("fail", func(arg string) (router.ViewLoader, error) {
		err := failure(arg, "view failed")
		return func(context.Context, *router.NavigationContext) (any, error) { return nil, err }, nil
	})
	return r
}

// RegisterLoader adds or replaces a loader.
func (r *Registry) RegisterLoader(name string, factory LoaderFactory) {
	r.loaders[name] = factory
}

// RegisterView adds or replaces a view.
func (r *Registry) RegisterView(name string, factory ViewFactory) {
	r.views[name] = factory
}

// Loaders returns the registered loader names, sorted.
func (r *Registry) Loaders() []string { return sortedKeys(r.loaders) }

// Views returns the registered view names, sorted.
func (r *Registry) Views() []string { return sortedKeys(r.views) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func echoLoader(_ context.Context, nav *router.NavigationContext) (any, error) {
	return map[string]any{
		"route":  nav.Route.Path,
		"params": nav.Params,
		"query":  nav.Query,
		"hash":   nav.Hash,
	}, nil
}

func paramsLoader(_ context.Context, nav *router.NavigationContext) (any, error) {
	out := make(map[string]string, len(nav.Params))
	for k, v := range nav.Params {
		out[k] = v
	}
	return out, nil
}

func sleepLoader(arg string) (router.DataLoader, error) {
	d, err := time.ParseDuration(arg)
	if err != nil || d < 0 {
		return nil, fmt.Errorf("sleep needs a duration, got %q", arg)
	}
	return func(ctx context.Context, nav *router.NavigationContext) (any, error) {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return echoLoader(ctx, nav)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, nil
}

func failure(arg, fallback string) error {
	if arg == "" {
		arg = fallback
	}
	return stderrors.New(arg)
}

func splitRef(ref string) (name, arg string) {
	name, arg, _ = strings.Cut(ref, ":")
	return strings.TrimSpace(name), strings.TrimSpace(arg)
}

// ParseGuard builds a guard from its textual form:
//
//	allow
//	deny[:reason]
//	redirect:<path>           push navigation to path
//	replace:<path>            replace navigation to path
//	require-query:<key>[=>path]
//	                          allow when the query has key, otherwise deny,
//	                          or redirect to path when given
func ParseGuard(expr string) (router.Guard, error) {
	name, arg := splitRef(expr)
	switch name {
	case "allow":
		return func(context.Context, *router.NavigationContext) (router.GuardResult, error) {
			return router.Allow(), nil
		}, nil
	case "deny":
		return func(context.Context, *router.NavigationContext) (router.GuardResult, error) {
			return router.Deny(arg), nil
		}, nil
	case "redirect", "replace":
		if !strings.HasPrefix(arg, "/") {
			return nil, fmt.Errorf("%s needs an absolute path, got %q", name, arg)
		}
		replace := name == "replace"
		return func(context.Context, *router.NavigationContext) (router.GuardResult, error) {
			return router.Redirect(arg, replace), nil
		}, nil
	case "require-query":
		key, target, hasTarget := strings.Cut(arg, "=>")
		key = strings.TrimSpace(key)
		target = strings.TrimSpace(target)
		if key == "" || (hasTarget && !strings.HasPrefix(target, "/")) {
			return nil, fmt.Errorf("require-query needs key[=>/path], got %q", arg)
		}
		return func(_ context.Context, nav *router.NavigationContext) (router.GuardResult, error) {
			if nav.Query.Has(key) {
				return router.AllowWith(nav.Query.Get(key)), nil
			}
			if hasTarget {
				return router.Redirect(target, true), nil
			}
			return router.Deny("missing " + key), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown guard %q", name)
	}
}

// Build turns the table into router definitions and options. The options
// carry the matcher mode, the redirect bound and the global cache policy;
// callers append their own (logger, handlers, middleware).
func (f *File) Build(reg *Registry) ([]router.Route, []router.Option, error) {
	if reg == nil {
		reg = NewRegistry()
	}
	routes, err := f.buildRoutes(reg, f.Routes)
	if err != nil {
		return nil, nil, err
	}

	mode, err := f.MatcherMode()
	if err != nil {
		return nil, nil, err
	}
	opts := []router.Option{router.WithMatcherMode(mode)}
	if f.MaxRedirects > 0 {
		opts = append(opts, router.WithMaxRedirects(f.MaxRedirects))
	}
	if f.Cache != nil {
		policy, err := f.Cache.Policy()
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, router.WithCache(policy))
	}
	return routes, opts, nil
}

func (f *File) buildRoutes(reg *Registry, configs []RouteConfig) ([]router.Route, error) {
	routes := make([]router.Route, 0, len(configs))
	for i := range configs {
		rc := &configs[i]
		route := router.Route{
			Path: rc.Path,
			Name: rc.Name,
			Meta: rc.Meta,
		}

		if rc.Loader != "" {
			name, arg := splitRef(rc.Loader)
			factory, ok := reg.loaders[name]
			if !ok {
				return nil, f.at(errors.New(errors.CodeUnknownLoader), rc).
					Wrap(fmt.Errorf("%q", name)).
					WithSuggestion("Registered loaders: " + strings.Join(reg.Loaders(), ", "))
			}
			loader, err := factory(arg)
			if err != nil {
				return nil, f.at(errors.New(errors.CodeUnknownLoader), rc).Wrap(err)
			}
			route.Loader = loader
		}

		if rc.View != "" {
			name, arg := splitRef(rc.View)
			factory, ok := reg.views[name]
			if !ok {
				return nil, f.at(errors.New(errors.CodeUnknownView), rc).
					Wrap(fmt.Errorf("%q", name)).
					WithSuggestion("Registered views: " + strings.Join(reg.Views(), ", "))
			}
			view, err := factory(arg)
			if err != nil {
				return nil, f.at(errors.New(errors.CodeUnknownView), rc).Wrap(err)
			}
			route.View = view
		}

		if rc.Guard != "" {
			guard, err := ParseGuard(rc.Guard)
			if err != nil {
				return nil, f.at(errors.New(errors.CodeUnknownGuard), rc).Wrap(err)
			}
			route.Guard = guard
		}

		if rc.Cache != nil {
			policy, err := rc.Cache.Policy()
			if err != nil {
				return nil, err
			}
			route.Cache = &policy
		}

		children, err := f.buildRoutes(reg, rc.Children)
		if err != nil {
			return nil, err
		}
		route.Children = children
		routes = append(routes, route)
	}
	return routes, nil
}

// NewRouter builds the table and compiles it into a router. Compile errors
// are reported with the position of the offending route.
func (f *File) NewRouter(reg *Registry, logger *slog.Logger, extra ...router.Option) (*router.Router, error) {
	routes, opts, err := f.Build(reg)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		opts = append(opts, router.WithLogger(logger))
	}
	opts = append(opts, extra...)

	r, err := router.New(routes, opts...)
	if err != nil {
		return nil, f.compileError(err)
	}
	return r, nil
}

func (f *File) compileError(err error) error {
	code := errors.CodeMalformedPattern
	switch {
	case stderrors.Is(err, router.ErrDuplicateRoute):
		code = errors.CodeDuplicateRoute
	case stderrors.Is(err, router.ErrEmptyRoutes):
		code = errors.CodeEmptyRoutes
	case stderrors.Is(err, router.ErrInvalidCachePolicy):
		code = errors.CodeInvalidCache
	}
	e := errors.New(code).Wrap(err)

	var routeErr *router.RouteError
	if stderrors.As(err, &routeErr) && routeErr.Path != "" {
		// Report the last route with that full path: for duplicates that is
		// the one that collided.
		if rc := f.lookup(f.Routes, "", routeErr.Path); rc != nil {
			f.at(e, rc)
		}
	}
	return e
}

func (f *File) lookup(configs []RouteConfig, parent, full string) *RouteConfig {
	var found *RouteConfig
	for i := range configs {
		rc := &configs[i]
		p := routepath.Join(parent, rc.Path)
		if p == full {
			found = rc
		}
		if child := f.lookup(rc.Children, p, full); child != nil {
			found = child
		}
	}
	return found
}
