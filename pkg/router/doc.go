// Package router implements client-side style routing: a route tree is
// compiled once into a static lookup table plus an ordered list of dynamic
// matchers, and navigations run through a cancellable pipeline.
//
// # Routes
//
// Routes are declared as a tree. Child paths resolve against their parent:
//
//	routes := []router.Route{
//	    {Path: "/", View: home},
//	    {Path: "/users", View: users, Children: []router.Route{
//	        {Path: ":userId", View: user, Loader: loadUser},
//	        {Path: ":userId/posts/:postId", View: post},
//	    }},
//	    {Path: "/files/:name.:ext", View: file},
//	}
//
//	r, err := router.New(routes)
//
// Static routes are found by direct lookup. Dynamic routes use a
// segment-by-segment matcher when every parameter fills a whole segment and
// a generated regexp otherwise. Dynamic routes are tried in registration
// order (parents before children) and the first match wins.
//
// # Navigation
//
// Navigate runs these steps, checking after every suspension point whether
// a newer navigation has superseded the attempt:
//
//	before-navigate hook → history write → match → guard → loaders → commit
//
// The data loader and the view loader run concurrently. Only the most
// recently started navigation can commit, and subscribers observe commits
// in the order they happened. Superseded attempts end quietly with
// PhaseAborted.
//
// # Errors
//
// Every failure reaches the error handler as a *NavigationError tagged with
// an ErrorKind. errors.Is matches the kind's sentinel:
//
//	r, _ := router.New(routes, router.WithErrorHandler(func(err *router.NavigationError) {
//	    if errors.Is(err, router.ErrLoader) {
//	        // ...
//	    }
//	}))
package router
