// Package middleware provides observability middleware for waypoint routers.
//
// This package includes:
//   - OpenTelemetry tracing of navigations
//   - Prometheus navigation metrics
//   - A Prometheus collector for the router's caches
//
// # OpenTelemetry Middleware
//
// The OpenTelemetry middleware opens a span for every navigation attempt.
// Guards and loaders receive the span's context, so their own spans nest
// under the navigation:
//
//	r, err := router.New(routes,
//	    router.WithMiddleware(middleware.OpenTelemetry()),
//	)
//
// Configure with options:
//
//	middleware.OpenTelemetry(
//	    middleware.WithTracerName("my-app"),
//	    middleware.WithNavigationFilter(func(nav *router.Navigation) bool {
//	        return nav.Pathname != "/healthz"
//	    }),
//	)
//
// # Prometheus Metrics
//
// The Prometheus middleware counts navigations by route pattern and
// terminal phase, times them, and counts errors by kind:
//
//	r, err := router.New(routes,
//	    router.WithMiddleware(middleware.Prometheus()),
//	)
//	prometheus.MustRegister(middleware.NewCacheCollector(r))
//
// Then expose the metrics:
//
//	http.Handle("/metrics", promhttp.Handler())
//
// Place Prometheus first in the middleware list so it also observes
// navigations that later middleware stop.
package middleware
