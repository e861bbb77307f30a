package router

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// NavigateOptions configures navigation behavior.
type NavigateOptions struct {
	// Replace replaces the current history entry instead of pushing.
	Replace bool

	// Params are query parameters to add to the URL.
	Params map[string]any

	// Scroll tells the host whether to scroll to top after navigation.
	// Defaults to true.
	Scroll bool

	// State is stored with the history entry.
	State any

	// FromHistory marks a navigation caused by the history itself
	// (back/forward). The router does not record it again.
	FromHistory bool
}

// NavigateOption is a functional option for Navigate.
type NavigateOption func(*NavigateOptions)

// WithReplace replaces the current history entry instead of pushing.
func WithReplace() NavigateOption {
	return func(o *NavigateOptions) {
		o.Replace = true
	}
}

// WithParams adds query parameters to the navigation URL.
func WithParams(params map[string]any) NavigateOption {
	return func(o *NavigateOptions) {
		o.Params = params
	}
}

// WithoutScroll disables scrolling to top after navigation.
func WithoutScroll() NavigateOption {
	return func(o *NavigateOptions) {
		o.Scroll = false
	}
}

// WithState attaches state to the history entry.
func WithState(state any) NavigateOption {
	return func(o *NavigateOptions) {
		o.State = state
	}
}

// FromHistory marks the navigation as a history traversal.
func FromHistory() NavigateOption {
	return func(o *NavigateOptions) {
		o.FromHistory = true
	}
}

// buildURL merges Params into the target's query string.
func (o NavigateOptions) buildURL(target string) (string, error) {
	if len(o.Params) == 0 {
		return target, nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid path: %s", target)
	}
	q := u.Query()
	for k, v := range o.Params {
		q.Set(k, fmt.Sprintf("%v", v))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Phase is the state of a navigation attempt.
type Phase string

const (
	PhaseRequested  Phase = "requested"
	PhaseHooked     Phase = "hooked"
	PhaseMatched    Phase = "matched"
	PhaseGuarded    Phase = "guarded"
	PhaseLoading    Phase = "loading"
	PhaseCommitted  Phase = "committed"
	PhaseBlocked    Phase = "blocked"
	PhaseNotFound   Phase = "not-found"
	PhaseDenied     Phase = "denied"
	PhaseRedirected Phase = "redirected"
	PhaseAborted    Phase = "aborted"
	PhaseFailed     Phase = "failed"
)

// Terminal reports whether no further phase can follow.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseCommitted, PhaseBlocked, PhaseNotFound, PhaseDenied,
		PhaseRedirected, PhaseAborted, PhaseFailed:
		return true
	}
	return false
}

// Outcome is what Navigate returns once the attempt is over.
type Outcome struct {
	// ID identifies the attempt that produced the outcome. After a
	// redirect this is the last attempt of the chain.
	ID string

	// URL is the canonical target (path, query and fragment).
	URL string

	// Phase is the terminal phase.
	Phase Phase

	// Match is the committed result when Phase is PhaseCommitted.
	Match *RouteMatch

	// Err is the *NavigationError for not-found, denied and failed
	// outcomes.
	Err error

	// Redirects lists the URLs that redirected, oldest first.
	Redirects []string

	// Options are the options the final attempt ran with.
	Options NavigateOptions
}

// Committed reports whether the navigation reached the commit step.
func (o *Outcome) Committed() bool {
	return o != nil && o.Phase == PhaseCommitted
}

// Navigation is a single in-flight navigation attempt, as seen by middleware.
type Navigation struct {
	// ID is a unique identifier for the attempt.
	ID string

	// URL is the canonical target (path, query and fragment).
	URL string

	// Pathname is the path part of URL.
	Pathname string

	// Options are the navigate options.
	Options NavigateOptions

	// Redirects lists the URLs that redirected to this attempt.
	Redirects []string

	// Started is when the attempt began.
	Started time.Time

	parent   context.Context
	token    context.Context
	cancel   context.CancelFunc
	ctx      context.Context
	location staticLocation
	phase    Phase
	route    *CompiledRoute
	err      *NavigationError
	outcome  *Outcome
}

// Context returns the context handed to hooks, guards and loaders. It is
// cancelled when the attempt is superseded.
func (n *Navigation) Context() context.Context {
	return n.ctx
}

// SetContext replaces the context passed downstream (to attach a trace
// span, for example). ctx must be derived from Context(); cancellation
// is tracked on the original token either way.
func (n *Navigation) SetContext(ctx context.Context) {
	n.ctx = ctx
}

// Phase returns the attempt's current phase.
func (n *Navigation) Phase() Phase {
	return n.phase
}

// Route returns the matched route, or nil before matching.
func (n *Navigation) Route() *CompiledRoute {
	return n.route
}

// Err returns the attempt's failure, if any.
func (n *Navigation) Err() *NavigationError {
	return n.err
}

// Outcome returns the result once the pipeline has run, or nil.
func (n *Navigation) Outcome() *Outcome {
	return n.outcome
}

func (n *Navigation) superseded() bool {
	return n.token.Err() != nil
}
