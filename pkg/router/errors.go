package router

import (
	"errors"
	"fmt"
)

// ErrorKind tags a navigation failure so handlers can dispatch exhaustively.
type ErrorKind string

const (
	// KindNotFound means no compiled route matched the pathname.
	KindNotFound ErrorKind = "not-found"

	// KindGuardFailed means a guard denied access.
	KindGuardFailed ErrorKind = "guard-failed"

	// KindLoader means the route's data loader failed.
	KindLoader ErrorKind = "loader-error"

	// KindComponent means the view loader failed while the data loader,
	// if any, succeeded.
	KindComponent ErrorKind = "component-error"

	// KindAborted is reserved for superseded navigations. It is never
	// delivered to the error handler.
	KindAborted ErrorKind = "navigation-aborted"

	// KindUnknown covers everything else, including panicking listeners.
	KindUnknown ErrorKind = "unknown"
)

// Sentinel errors, one per ErrorKind. A *NavigationError matches the
// sentinel of its kind with errors.Is.
var (
	ErrNotFound    = errors.New("router: no route matched")
	ErrGuardFailed = errors.New("router: guard denied navigation")
	ErrLoader      = errors.New("router: data loader failed")
	ErrComponent   = errors.New("router: view loader failed")
	ErrAborted     = errors.New("router: navigation superseded")
	ErrUnknown     = errors.New("router: navigation failed")
)

// Operational errors.
var (
	// ErrPanic wraps a value recovered from a panicking callback.
	ErrPanic = errors.New("router: panic")

	// ErrTooManyRedirects is the cause when guard redirects exceed the limit.
	ErrTooManyRedirects = errors.New("router: too many redirects")

	// ErrClosed is returned for navigations requested after Close.
	ErrClosed = errors.New("router: closed")
)

// Compile errors.
var (
	ErrEmptyRoutes        = errors.New("router: no routes registered")
	ErrMalformedPattern   = errors.New("router: malformed route pattern")
	ErrDuplicateRoute     = errors.New("router: duplicate route")
	ErrInvalidCachePolicy = errors.New("router: invalid cache policy")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindGuardFailed:
		return ErrGuardFailed
	case KindLoader:
		return ErrLoader
	case KindComponent:
		return ErrComponent
	case KindAborted:
		return ErrAborted
	default:
		return ErrUnknown
	}
}

// NavigationError is the single condition type delivered to the error handler.
type NavigationError struct {
	// Kind tags the failure.
	Kind ErrorKind

	// ID is the navigation attempt that failed.
	ID string

	// Path is the pathname being navigated to.
	Path string

	// Reason is the guard's denial reason, if any.
	Reason string

	// Cause is the underlying error.
	Cause error

	// Secondary holds the view loader's error when both loaders failed.
	// Only the data loader's failure decides Kind.
	Secondary error
}

// Error returns the error message.
func (e *NavigationError) Error() string {
	msg := fmt.Sprintf("router: %s %s", e.Kind, e.Path)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Secondary != nil {
		msg += " (view: " + e.Secondary.Error() + ")"
	}
	return msg
}

// Unwrap exposes the kind's sentinel and every underlying cause.
func (e *NavigationError) Unwrap() []error {
	errs := []error{e.Kind.sentinel()}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	if e.Secondary != nil {
		errs = append(errs, e.Secondary)
	}
	return errs
}

// KindOf returns the ErrorKind of err, or "" when err is not a navigation error.
func KindOf(err error) ErrorKind {
	var navErr *NavigationError
	if errors.As(err, &navErr) {
		return navErr.Kind
	}
	return ""
}

// RouteError describes a configuration problem found while compiling routes.
type RouteError struct {
	Path string // Full route path
	Op   string // Compilation step that failed
	Err  error  // Underlying error
}

// Error returns the error message with route context.
func (e *RouteError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("router: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("router: route %q: %s: %v", e.Path, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *RouteError) Unwrap() error {
	return e.Err
}

func panicError(p any) error {
	if err, ok := p.(error); ok {
		return fmt.Errorf("%w: %w", ErrPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrPanic, p)
}
