package router

import (
	"context"
	"log/slog"
	"time"
)

// DefaultMaxRedirects bounds chains of guard redirects.
const DefaultMaxRedirects = 10

// Option configures a Router.
type Option func(*options)

type options struct {
	cache          *CachePolicy
	matcherMode    MatcherMode
	location       Location
	history        History
	logger         *slog.Logger
	beforeNavigate func(ctx context.Context, url string) bool
	afterNavigate  func(match *RouteMatch)
	notFound       func(path string)
	unauthorized   func(path, reason string)
	onError        func(err *NavigationError)
	middleware     []Middleware
	maxRedirects   int
	now            func() time.Time
}

func defaultOptions() options {
	return options{
		matcherMode:  MatcherAuto,
		maxRedirects: DefaultMaxRedirects,
		now:          time.Now,
	}
}

// WithCache sets the global cache policy. Setting it also turns on
// loaded-data caching for every route that does not override it.
func WithCache(policy CachePolicy) Option {
	return func(o *options) {
		o.cache = &policy
	}
}

// WithMatcherMode selects how dynamic patterns are compiled.
func WithMatcherMode(mode MatcherMode) Option {
	return func(o *options) {
		o.matcherMode = mode
	}
}

// WithLocation sets the live location the router reads query strings and
// fragments from.
func WithLocation(loc Location) Option {
	return func(o *options) {
		o.location = loc
	}
}

// WithHistory sets where navigations are recorded. If h also implements
// Location and no location was configured, it is used as the location too.
func WithHistory(h History) Option {
	return func(o *options) {
		o.history = h
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithBeforeNavigate sets a hook that can veto any navigation.
func WithBeforeNavigate(fn func(ctx context.Context, url string) bool) Option {
	return func(o *options) {
		o.beforeNavigate = fn
	}
}

// WithAfterNavigate sets a hook that runs after every commit, once
// subscribers have been notified. It runs on its own goroutine.
func WithAfterNavigate(fn func(match *RouteMatch)) Option {
	return func(o *options) {
		o.afterNavigate = fn
	}
}

// WithNotFound sets the handler invoked when no route matches.
func WithNotFound(fn func(path string)) Option {
	return func(o *options) {
		o.notFound = fn
	}
}

// WithUnauthorized sets the handler invoked when a guard denies access.
func WithUnauthorized(fn func(path, reason string)) Option {
	return func(o *options) {
		o.unauthorized = fn
	}
}

// WithErrorHandler sets the error channel. Superseded navigations are
// never reported.
func WithErrorHandler(fn func(err *NavigationError)) Option {
	return func(o *options) {
		o.onError = fn
	}
}

// WithMiddleware appends navigation middleware.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) {
		o.middleware = append(o.middleware, mw...)
	}
}

// WithMaxRedirects bounds chains of guard redirects.
func WithMaxRedirects(n int) Option {
	return func(o *options) {
		o.maxRedirects = n
	}
}

// WithClock sets the time source used for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
