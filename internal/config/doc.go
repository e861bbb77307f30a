// Package config reads waypoint.yaml, the route table file the waypoint
// CLI works with, and turns it into a router.
//
// # File Structure
//
//	version: 1
//	matcher: auto            # or regexp
//	max_redirects: 10
//	cache:                   # enables data caching for every loader
//	  strategy: by-path-params-and-query
//	  max_entries: 200
//	  ttl: 30s
//	devtools:
//	  address: 127.0.0.1:7070
//	  watch: true
//	routes:
//	  - path: /
//	    name: home
//	    view: static:home
//	  - path: /products/:id
//	    loader: echo
//	    view: name
//	    cache:
//	      strategy: by-path-and-params
//	  - path: /admin
//	    children:
//	      - path: users/:userId
//	        guard: require-query:token=>/login
//	        loader: sleep:50ms
//
// Loaders and views are referenced by name, with an optional argument
// after a colon; see NewRegistry for the built-in ones and ParseGuard for
// the guard forms.
//
// # Usage
//
//	f, err := config.Load(".")
//	if err != nil {
//	    errors.Print(os.Stderr, err)
//	    os.Exit(1)
//	}
//	r, err := f.NewRouter(config.NewRegistry(), slog.Default())
package config
