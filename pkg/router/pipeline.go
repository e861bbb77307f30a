package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/waypoint/pkg/routepath"
)

// Navigate runs a navigation to target and returns once the attempt has
// reached a terminal phase.
//
// Navigate supersedes whatever navigation is in flight: the older attempt
// is cancelled at its next suspension point and can no longer commit.
// Superseded attempts end in PhaseAborted and are never reported as errors.
func (r *Router) Navigate(ctx context.Context, target string, opts ...NavigateOption) *Outcome {
	options := NavigateOptions{Scroll: true}
	for _, opt := range opts {
		opt(&options)
	}
	return r.navigate(ctx, target, options, nil, nil)
}

// navigate starts an attempt. from is the attempt redirecting to target,
// or nil for a navigation the caller asked for.
func (r *Router) navigate(ctx context.Context, target string, options NavigateOptions, redirects []string, from *Navigation) *Outcome {
	id := uuid.NewString()

	full, err := options.buildURL(target)
	var loc routepath.CanonicalizeResult
	if err == nil {
		loc, err = routepath.ValidateNavPath(full)
	}
	if err != nil {
		if from != nil {
			return r.fail(from, &NavigationError{Kind: KindUnknown, Cause: fmt.Errorf("redirect to %q: %w", target, err)})
		}
		navErr := &NavigationError{Kind: KindUnknown, ID: id, Path: target, Cause: err}
		r.report(navErr)
		return &Outcome{ID: id, URL: target, Phase: PhaseFailed, Err: navErr, Redirects: redirects, Options: options}
	}

	nav, err := r.begin(ctx, id, loc, options, redirects, from)
	switch {
	case errors.Is(err, ErrAborted):
		return r.abort(from)
	case err != nil:
		return &Outcome{ID: id, URL: loc.URL(), Phase: PhaseAborted, Err: err, Redirects: redirects, Options: options}
	}
	defer nav.cancel()

	_ = ComposeMiddleware(nav, r.middleware, func() error {
		nav.outcome = r.run(nav)
		if nav.err != nil {
			return nav.err
		}
		return nil
	})
	return nav.outcome
}

// settle wraps m so that a navigation it stops reaches its terminal phase
// before any outer middleware observes it.
func (r *Router) settle(m Middleware) Middleware {
	return MiddlewareFunc(func(nav *Navigation, next func() error) error {
		err := m.Handle(nav, next)
		if nav.outcome == nil {
			if err != nil {
				nav.outcome = r.fail(nav, &NavigationError{Kind: KindUnknown, Cause: err})
			} else {
				nav.outcome = r.finish(nav, PhaseBlocked, nil, nil)
			}
		}
		return err
	})
}

// begin cancels the live attempt and installs a new one. When expect is
// set, the new attempt replaces expect only: if something else has become
// live in the meantime begin installs nothing and returns ErrAborted.
func (r *Router) begin(parent context.Context, id string, loc routepath.CanonicalizeResult, options NavigateOptions, redirects []string, expect *Navigation) (*Navigation, error) {
	token, cancel := context.WithCancel(parent)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	if expect != nil && (r.live != expect || expect.superseded()) {
		r.mu.Unlock()
		cancel()
		return nil, ErrAborted
	}
	if r.live != nil {
		r.live.cancel()
	}
	nav := &Navigation{
		ID:        id,
		URL:       loc.URL(),
		Pathname:  loc.Path,
		Options:   options,
		Redirects: redirects,
		Started:   time.Now(),
		parent:    parent,
		token:     token,
		cancel:    cancel,
		ctx:       token,
		location:  staticLocation{query: loc.Query, fragment: loc.Fragment},
		phase:     PhaseRequested,
	}
	r.live = nav
	r.mu.Unlock()

	r.logger.Debug("navigation requested", "nav_id", id, "url", nav.URL, "replace", options.Replace)
	return nav, nil
}

// isLive reports whether nav is still the attempt allowed to commit.
func (r *Router) isLive(nav *Navigation) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live == nav && !nav.superseded()
}

// whileLive runs fn only if nav is still live, atomically with the check.
func (r *Router) whileLive(nav *Navigation, fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.live != nav || nav.superseded() {
		return false
	}
	fn()
	return true
}

func (r *Router) locationFor(nav *Navigation) Location {
	if r.location != nil {
		return r.location
	}
	return nav.location
}

// run is the pipeline: hook, history, match, guard, load, commit, notify.
// Every suspension point is followed by a supersession check.
func (r *Router) run(nav *Navigation) *Outcome {
	ctx := nav.Context()

	if hook := r.opts.beforeNavigate; hook != nil {
		allow, err := await(nav.token, func() (bool, error) {
			return hook(ctx, nav.URL), nil
		})
		if nav.superseded() {
			return r.abort(nav)
		}
		if err != nil {
			return r.fail(nav, &NavigationError{Kind: KindUnknown, Cause: err})
		}
		if !allow {
			return r.finish(nav, PhaseBlocked, nil, nil)
		}
	}
	r.advance(nav, PhaseHooked)

	if r.history != nil && !nav.Options.FromHistory {
		recorded := r.whileLive(nav, func() {
			if nav.Options.Replace {
				r.history.Replace(nav.URL, nav.Options.State)
			} else {
				r.history.Push(nav.URL, nav.Options.State)
			}
		})
		if !recorded {
			return r.abort(nav)
		}
	}

	loc := r.locationFor(nav)
	match, ok := r.matchWith(nav.Pathname, loc)
	if !ok {
		return r.notFound(nav)
	}
	nav.route = match.Route
	r.advance(nav, PhaseMatched)

	navCtx := &NavigationContext{
		ID:     nav.ID,
		Path:   match.Path,
		Route:  match.Route,
		Params: match.Params,
		Query:  match.Query,
		Hash:   match.Hash,
	}

	if guard := match.Route.Def.Guard; guard != nil {
		result, err := await(nav.token, func() (GuardResult, error) {
			return guard(ctx, navCtx)
		})
		if nav.superseded() {
			return r.abort(nav)
		}
		if err != nil {
			return r.fail(nav, &NavigationError{Kind: KindUnknown, Cause: err})
		}
		if target, replace, ok := result.RedirectTarget(); ok {
			return r.redirect(nav, target, replace)
		}
		if result.Denied() {
			return r.deny(nav, result.Reason())
		}
		navCtx.GuardData = result.Data()
	}
	r.advance(nav, PhaseGuarded)

	r.advance(nav, PhaseLoading)
	loaded, navErr := r.load(nav, navCtx)
	if nav.superseded() {
		return r.abort(nav)
	}
	if navErr != nil {
		return r.fail(nav, navErr)
	}

	committed := &RouteMatch{
		Route:  match.Route,
		Params: copyParams(match.Params),
		Query:  loc.Query(),
		Hash:   loc.Fragment(),
		Path:   match.Path,
		Data:   loaded.data,
		View:   loaded.view,
	}
	ok, panics := r.commit(nav, committed, func() {
		if loaded.cache != nil && !loaded.cached {
			loaded.cache.Set(loaded.key, loaded.data)
		}
	})
	if !ok {
		return r.abort(nav)
	}
	out := r.finish(nav, PhaseCommitted, committed, nil)
	r.reportListenerPanics(nav.ID, nav.Pathname, panics)
	r.afterNavigate(committed)
	return out
}

// loadResult carries what the loaders produced. It is only read once the
// loaders are known to be done.
type loadResult struct {
	data    any
	view    any
	dataErr error
	viewErr error

	cache  *dataCache
	key    string
	cached bool
}

// load runs the data loader and the view loader concurrently.
func (r *Router) load(nav *Navigation, navCtx *NavigationContext) (loadResult, *NavigationError) {
	route := navCtx.Route
	loader, view := route.Def.Loader, route.Def.View

	var res loadResult
	if cache := r.data[route]; cache != nil && loader != nil {
		res.cache = cache
		res.key = cache.key(navCtx)
		if data, ok := cache.Get(res.key); ok {
			res.data, res.cached = data, true
			loader = nil
		}
	}
	if loader == nil && view == nil {
		return res, nil
	}

	ctx := nav.Context()
	done, _ := await(nav.token, func() (loadResult, error) {
		out := res
		var g errgroup.Group
		if loader != nil {
			g.Go(func() error {
				out.data, out.dataErr = protect(func() (any, error) { return loader(ctx, navCtx) })
				return out.dataErr
			})
		}
		if view != nil {
			g.Go(func() error {
				out.view, out.viewErr = protect(func() (any, error) { return view(ctx, navCtx) })
				return out.viewErr
			})
		}
		_ = g.Wait()
		return out, nil
	})
	if nav.superseded() {
		return res, nil
	}

	switch {
	case done.dataErr != nil:
		return done, &NavigationError{Kind: KindLoader, Cause: done.dataErr, Secondary: done.viewErr}
	case done.viewErr != nil:
		return done, &NavigationError{Kind: KindComponent, Cause: done.viewErr}
	}
	return done, nil
}

// commit publishes match (nil clears the current state) and notifies
// subscribers, provided nav is still live. onCommit runs between the two
// and is where shared caches are written. Listener panics are returned,
// to be reported after commitMu is released.
func (r *Router) commit(nav *Navigation, match *RouteMatch, onCommit func()) (bool, []error) {
	r.commitMu.Lock()
	defer r.commitMu.Unlock()

	if !r.whileLive(nav, func() { r.current.Store(match) }) {
		return false, nil
	}
	if onCommit != nil {
		onCommit()
	}
	return true, r.bus.notify(match)
}

// reportListenerPanics reports panics raised by listeners during a commit.
// The caller must not hold commitMu: the error handler may navigate.
func (r *Router) reportListenerPanics(id, path string, panics []error) {
	for _, err := range panics {
		r.report(&NavigationError{Kind: KindUnknown, ID: id, Path: path, Cause: fmt.Errorf("listener: %w", err)})
	}
}

func (r *Router) notFound(nav *Navigation) *Outcome {
	ok, panics := r.commit(nav, nil, nil)
	if !ok {
		return r.abort(nav)
	}
	navErr := &NavigationError{Kind: KindNotFound, ID: nav.ID, Path: nav.Pathname}
	out := r.finish(nav, PhaseNotFound, nil, navErr)
	r.reportListenerPanics(nav.ID, nav.Pathname, panics)
	r.report(navErr)
	if fn := r.opts.notFound; fn != nil {
		r.callHandler(nav, "not-found", func() { fn(nav.Pathname) })
	}
	return out
}

func (r *Router) deny(nav *Navigation, reason string) *Outcome {
	if !r.isLive(nav) {
		return r.abort(nav)
	}
	navErr := &NavigationError{Kind: KindGuardFailed, ID: nav.ID, Path: nav.Pathname, Reason: reason}
	out := r.finish(nav, PhaseDenied, nil, navErr)
	if fn := r.opts.unauthorized; fn != nil {
		r.callHandler(nav, "unauthorized", func() { fn(nav.Pathname, reason) })
	}
	r.report(navErr)
	return out
}

// redirect starts a fresh navigation to target. The new attempt
// supersedes this one, exactly as a user-initiated navigation would.
func (r *Router) redirect(nav *Navigation, target string, replace bool) *Outcome {
	if !r.isLive(nav) {
		return r.abort(nav)
	}
	trail := append(append([]string(nil), nav.Redirects...), nav.URL)
	if len(trail) > r.opts.maxRedirects {
		return r.fail(nav, &NavigationError{
			Kind:  KindUnknown,
			Cause: fmt.Errorf("%w: %d redirects ending at %s", ErrTooManyRedirects, len(trail), target),
		})
	}

	r.advance(nav, PhaseRedirected)
	r.logger.Debug("navigation redirected", "nav_id", nav.ID, "from", nav.URL, "to", target)

	options := NavigateOptions{Replace: replace, Scroll: nav.Options.Scroll, State: nav.Options.State}
	ctx := redirectContext{Context: nav.parent, values: nav.Context()}
	return r.navigate(ctx, target, options, trail, nav)
}

// redirectContext is the context a redirect starts from. It is cancelled
// with the caller's context, not with the redirecting attempt (which the
// redirect itself supersedes), but carries the attempt's values so that,
// for example, trace spans nest.
type redirectContext struct {
	context.Context
	values context.Context
}

func (c redirectContext) Value(key any) any {
	return c.values.Value(key)
}

func (r *Router) fail(nav *Navigation, navErr *NavigationError) *Outcome {
	if !r.isLive(nav) {
		return r.abort(nav)
	}
	navErr.ID = nav.ID
	navErr.Path = nav.Pathname
	out := r.finish(nav, PhaseFailed, nil, navErr)
	r.report(navErr)
	return out
}

func (r *Router) abort(nav *Navigation) *Outcome {
	return r.finish(nav, PhaseAborted, nil, nil)
}

func (r *Router) finish(nav *Navigation, phase Phase, match *RouteMatch, navErr *NavigationError) *Outcome {
	r.advance(nav, phase)
	out := &Outcome{
		ID:        nav.ID,
		URL:       nav.URL,
		Phase:     phase,
		Match:     match,
		Redirects: nav.Redirects,
		Options:   nav.Options,
	}
	if navErr != nil {
		nav.err = navErr
		out.Err = navErr
	}
	return out
}

func (r *Router) advance(nav *Navigation, phase Phase) {
	nav.phase = phase
	r.logger.Debug("navigation phase", "nav_id", nav.ID, "path", nav.Pathname, "phase", string(phase))
}

// report delivers a condition to the error handler. Aborts are dropped.
func (r *Router) report(navErr *NavigationError) {
	if navErr.Kind == KindAborted {
		return
	}
	switch navErr.Kind {
	case KindNotFound, KindGuardFailed:
		r.logger.Debug("navigation stopped", "nav_id", navErr.ID, "path", navErr.Path, "kind", string(navErr.Kind))
	default:
		r.logger.Warn("navigation failed", "nav_id", navErr.ID, "path", navErr.Path, "kind", string(navErr.Kind), "error", navErr)
	}

	fn := r.opts.onError
	if fn == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("error handler panicked", "panic", p)
		}
	}()
	fn(navErr)
}

// callHandler runs a collaborator callback, turning a panic into an
// unknown-kind report.
func (r *Router) callHandler(nav *Navigation, name string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.report(&NavigationError{
				Kind:  KindUnknown,
				ID:    nav.ID,
				Path:  nav.Pathname,
				Cause: fmt.Errorf("%s handler: %w", name, panicError(p)),
			})
		}
	}()
	fn()
}

// afterNavigate fires the post-navigate hook without waiting for it.
func (r *Router) afterNavigate(match *RouteMatch) {
	fn := r.opts.afterNavigate
	if fn == nil {
		return
	}
	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Warn("after-navigate hook panicked", "path", match.Path, "panic", p)
			}
		}()
		fn(match)
	}()
}

// await runs fn on its own goroutine and waits for it or for token to be
// cancelled, whichever comes first. When token wins, fn keeps running and
// its result is dropped.
func await[T any](token context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := protect(fn)
		ch <- result{v: v, err: err}
	}()

	select {
	case res := <-ch:
		return res.v, res.err
	case <-token.Done():
		var zero T
		return zero, token.Err()
	}
}

// protect converts a panic in fn into an error.
func protect[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicError(p)
		}
	}()
	return fn()
}
