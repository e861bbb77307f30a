// Package devtools serves a running router over HTTP for inspection: the
// compiled route table, dry-run matching, navigation, cache counters,
// Prometheus metrics and a WebSocket feed of committed navigations.
//
// It is meant for local tooling (the waypoint CLI's serve command) and
// binds to the loopback interface by default.
//
//	srv := devtools.New(r, devtools.Config{Address: "127.0.0.1:7070"})
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	err := srv.Run(ctx)
package devtools
