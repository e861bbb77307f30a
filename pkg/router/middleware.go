package router

// Middleware wraps every navigation attempt. It runs after supersession,
// so nav.Context() is already the attempt's cancellation token.
type Middleware interface {
	// Handle processes the navigation and optionally calls next.
	// next returns the attempt's failure, if any; after it returns,
	// nav.Phase() and nav.Outcome() describe the result.
	// Returning without calling next blocks the navigation.
	Handle(nav *Navigation, next func() error) error
}

// MiddlewareFunc is a function adapter for Middleware.
type MiddlewareFunc func(nav *Navigation, next func() error) error

// Handle implements Middleware.
func (f MiddlewareFunc) Handle(nav *Navigation, next func() error) error {
	return f(nav, next)
}

// ComposeMiddleware builds a handler chain from middleware and a final handler.
// Middleware is executed in order (first to last), with the handler at the end.
func ComposeMiddleware(nav *Navigation, mw []Middleware, handler func() error) error {
	if len(mw) == 0 {
		return handler()
	}

	chain := handler
	for i := len(mw) - 1; i >= 0; i-- {
		m := mw[i]
		next := chain
		chain = func() error {
			return m.Handle(nav, next)
		}
	}
	return chain()
}

// Chain creates a middleware that combines multiple middleware in order.
func Chain(middleware ...Middleware) Middleware {
	return MiddlewareFunc(func(nav *Navigation, next func() error) error {
		return ComposeMiddleware(nav, middleware, next)
	})
}

// Skip bypasses mw for navigations matching condition.
func Skip(condition func(nav *Navigation) bool, mw Middleware) Middleware {
	return MiddlewareFunc(func(nav *Navigation, next func() error) error {
		if condition(nav) {
			return next()
		}
		return mw.Handle(nav, next)
	})
}

// Only runs mw for navigations matching condition.
func Only(condition func(nav *Navigation) bool, mw Middleware) Middleware {
	return MiddlewareFunc(func(nav *Navigation, next func() error) error {
		if !condition(nav) {
			return next()
		}
		return mw.Handle(nav, next)
	})
}
