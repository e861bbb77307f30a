package middleware

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/waypoint/pkg/router"
)

// Default tracer name for waypoint routers.
const defaultTracerName = "waypoint"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "waypoint").
	TracerName string

	// TracerProvider supplies the tracer. Default: the global provider.
	TracerProvider trace.TracerProvider

	// IncludeQuery records the full URL, query string included. Query
	// strings may carry sensitive values, so only the path is recorded by
	// default.
	IncludeQuery bool

	// IncludeRoute includes the matched route pattern in traces.
	// Enabled by default.
	IncludeRoute bool

	// Filter determines which navigations to trace.
	// Return true to trace the navigation, false to skip.
	// If nil, all navigations are traced.
	Filter func(nav *router.Navigation) bool

	// AttributeExtractor extracts custom attributes from the navigation.
	// Called for each traced navigation.
	AttributeExtractor func(nav *router.Navigation) []attribute.KeyValue

	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithIncludeQuery enables recording the query string.
func WithIncludeQuery(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeQuery = include
	}
}

// WithIncludeRoute enables/disables including the route in traces.
func WithIncludeRoute(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeRoute = include
	}
}

// WithNavigationFilter sets a filter function for navigations.
func WithNavigationFilter(filter func(nav *router.Navigation) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(nav *router.Navigation) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName:   defaultTracerName,
		IncludeRoute: true,
	}
}

// OpenTelemetry creates middleware that traces every navigation.
//
// The middleware:
//   - Creates a span per navigation attempt with its ID and path
//   - Hands the span's context to guards and loaders through nav.Context()
//   - Records the terminal phase and matched route
//   - Records navigation errors and sets the span status
//
// Superseded navigations end with phase "aborted" and an unset status;
// they are not errors.
//
// Example:
//
//	r, err := router.New(routes,
//	    router.WithMiddleware(middleware.OpenTelemetry(
//	        middleware.WithTracerName("my-app"),
//	    )),
//	)
//
// Unless WithTracerProvider is given, the tracer comes from the global
// provider. Configure it in main() before navigating:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) router.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	if config.TracerProvider != nil {
		config.tracer = config.TracerProvider.Tracer(config.TracerName)
	} else {
		config.tracer = otel.Tracer(config.TracerName)
	}

	return router.MiddlewareFunc(func(nav *router.Navigation, next func() error) error {
		if config.Filter != nil && !config.Filter(nav) {
			return next()
		}

		attrs := []attribute.KeyValue{
			attribute.String("waypoint.nav_id", nav.ID),
			attribute.String("waypoint.path", nav.Pathname),
			attribute.Bool("waypoint.replace", nav.Options.Replace),
		}
		if config.IncludeQuery {
			attrs = append(attrs, attribute.String("waypoint.url", nav.URL))
		}
		if n := len(nav.Redirects); n > 0 {
			attrs = append(attrs, attribute.Int("waypoint.redirect_depth", n))
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(nav)...)
		}

		spanCtx, span := config.tracer.Start(
			nav.Context(),
			formatSpanName(nav),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		nav.SetContext(spanCtx)

		err := next()

		span.SetAttributes(attribute.String("waypoint.phase", string(nav.Phase())))
		if cr := nav.Route(); cr != nil && config.IncludeRoute {
			span.SetAttributes(attribute.String("waypoint.route", cr.Path))
		}

		switch navErr := nav.Err(); {
		case navErr != nil:
			span.SetAttributes(attribute.String("waypoint.error_kind", string(navErr.Kind)))
			span.RecordError(navErr)
			span.SetStatus(codes.Error, navErr.Error())
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case nav.Phase() != router.PhaseAborted:
			span.SetStatus(codes.Ok, "")
		}

		return err
	})
}

// SpanFromNavigation returns the navigation's span, or a no-op span when
// the navigation is not traced.
//
// Example:
//
//	loader := func(ctx context.Context, nav *router.NavigationContext) (any, error) {
//	    trace.SpanFromContext(ctx).AddEvent("cache miss")
//	    return fetch(ctx, nav.Params["id"])
//	}
func SpanFromNavigation(nav *router.Navigation) trace.Span {
	return trace.SpanFromContext(nav.Context())
}

func formatSpanName(nav *router.Navigation) string {
	return fmt.Sprintf("navigate %s", nav.Pathname)
}
