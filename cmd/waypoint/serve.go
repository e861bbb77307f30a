package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/vango-dev/waypoint/internal/config"
	"github.com/vango-dev/waypoint/internal/errors"
	"github.com/vango-dev/waypoint/pkg/devtools"
	"github.com/vango-dev/waypoint/pkg/middleware"
	"github.com/vango-dev/waypoint/pkg/router"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		addr  string
		watch bool
		trace bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the devtools API for the route table",
		Long: `Compile the route table and serve it over HTTP:

  GET  /routes          compiled route table
  GET  /match?path=...  dry-run match
  GET  /current         committed match
  POST /navigate        run a navigation
  GET  /cache           cache policy and counters
  GET  /metrics         Prometheus metrics
  GET  /ws              live feed of commits

With --watch the table is recompiled whenever the file changes; an invalid
file keeps the previous router in place.

Examples:
  waypoint serve
  waypoint serve --addr :7070 --watch
  waypoint serve --trace`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags, addr, watch, trace)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from waypoint.yaml, then "+config.DefaultDevtoolsAddress+")")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reload the route table when it changes")
	cmd.Flags().BoolVar(&trace, "trace", false, "Print a span per navigation to stdout")
	return cmd
}

func runServe(cmd *cobra.Command, flags *globalFlags, addr string, watch, trace bool) error {
	logger := flags.logger()

	f, err := flags.loadTable()
	if err != nil {
		return err
	}
	if addr == "" {
		addr = f.DevtoolsAddress()
	}
	watch = watch || f.Devtools.Watch

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mw := []router.Middleware{middleware.Prometheus(middleware.WithRegistry(registry))}
	if trace {
		tp, err := newStdoutTracerProvider()
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			tp.Shutdown(ctx)
		}()
		mw = append(mw, middleware.OpenTelemetry(middleware.WithTracerProvider(tp)))
	}

	build := func(f *config.File) (*router.Router, error) {
		return f.NewRouter(config.NewRegistry(), logger,
			router.WithMiddleware(mw...),
			router.WithErrorHandler(func(err *router.NavigationError) {
				logger.Info("navigation error", "kind", string(err.Kind), "path", err.Path, "error", err)
			}),
		)
	}

	r, err := build(f)
	if err != nil {
		return err
	}

	srv := devtools.New(r, devtools.Config{
		Address:  addr,
		Gatherer: registry,
		Logger:   logger,
	})
	registry.MustRegister(middleware.NewCacheCollector(engineStats{srv}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watch {
		if err := startWatch(ctx, f.Path(), logger, build, srv); err != nil {
			errors.Print(cmd.ErrOrStderr(), errors.FromError(err, errors.CodeWatchFailed))
		}
	}

	success(cmd, "Serving %d routes on http://%s", len(r.Routes()), addr)
	if watch {
		info(cmd, "watching %s", f.Path())
	}

	err = srv.Run(ctx)
	if cur, ok := srv.Engine().(*router.Router); ok {
		cur.Close()
	}
	if err != nil {
		return errors.New(errors.CodeServeFailed).Wrap(err)
	}
	return nil
}

// startWatch swaps in a freshly compiled router whenever the table changes.
func startWatch(ctx context.Context, path string, logger *slog.Logger, build func(*config.File) (*router.Router, error), srv *devtools.Server) error {
	w, err := config.NewWatcher(path, 0, logger)
	if err != nil {
		return err
	}
	go func() {
		err := w.Watch(ctx, func(f *config.File, err error) {
			if err == nil {
				var next *router.Router
				if next, err = build(f); err == nil {
					previous := srv.Engine()
					srv.Swap(next)
					if old, ok := previous.(*router.Router); ok {
						old.Close()
					}
					return
				}
			}
			logger.Warn("keeping previous route table", "error", err)
		})
		if err != nil {
			logger.Error("route table watcher stopped", "error", err)
		}
	}()
	return nil
}

// engineStats reads cache counters from whichever router the server
// currently holds.
type engineStats struct {
	srv *devtools.Server
}

func (s engineStats) CacheStats() router.CacheStats     { return s.srv.Engine().CacheStats() }
func (s engineStats) DataCacheStats() router.CacheStats { return s.srv.Engine().DataCacheStats() }

func newStdoutTracerProvider() (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	), nil
}
