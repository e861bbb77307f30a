package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/waypoint/internal/errors"
	"github.com/vango-dev/waypoint/pkg/devtools"
	"github.com/vango-dev/waypoint/pkg/router"
	"github.com/vango-dev/waypoint/pkg/routepath"
)

func navigateCmd(flags *globalFlags) *cobra.Command {
	var (
		replace    bool
		concurrent bool
		timeout    time.Duration
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "navigate <path>...",
		Short: "Run navigations through guards and loaders",
		Long: `Run one navigation per path on a single router, in order, and print
each outcome. With --concurrent the navigations start together, a few
milliseconds apart, and only the last one may commit.

Examples:
  waypoint navigate /products/77
  waypoint navigate /a /b --concurrent
  waypoint navigate /admin --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, target := range args {
				if _, err := routepath.ValidateNavPath(target); err != nil {
					return errors.New(errors.CodeInvalidTarget).Wrap(err)
				}
			}

			r, err := buildRouter(flags)
			if err != nil {
				return err
			}
			defer r.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			var opts []router.NavigateOption
			if replace {
				opts = append(opts, router.WithReplace())
			}

			var outcomes []*router.Outcome
			if concurrent {
				outcomes = navigateConcurrently(ctx, r, args, opts)
			} else {
				for _, target := range args {
					outcomes = append(outcomes, r.Navigate(ctx, target, opts...))
				}
			}

			if asJSON {
				views := make([]devtools.OutcomeView, len(outcomes))
				for i, out := range outcomes {
					views[i] = devtools.NewOutcomeView(out)
				}
				return writeJSON(cmd.OutOrStdout(), views)
			}
			for _, out := range outcomes {
				printOutcome(cmd, out)
			}
			if cur := r.Current(); cur != nil {
				info(cmd, "current: %s (%s)", cur.Path, cur.Route.Path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "Replace the history entry instead of pushing")
	cmd.Flags().BoolVar(&concurrent, "concurrent", false, "Start all navigations together")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Cancel navigations after this long")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

const concurrentStagger = 5 * time.Millisecond

func navigateConcurrently(ctx context.Context, r *router.Router, targets []string, opts []router.NavigateOption) []*router.Outcome {
	outcomes := make([]*router.Outcome, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = r.Navigate(ctx, target, opts...)
		}()
		time.Sleep(concurrentStagger)
	}
	wg.Wait()
	return outcomes
}

func printOutcome(cmd *cobra.Command, out *router.Outcome) {
	switch out.Phase {
	case router.PhaseCommitted:
		success(cmd, "%s → %s", out.URL, out.Match.Route.Path)
		for _, name := range sortedKeys(out.Match.Params) {
			info(cmd, "param %s=%s", name, out.Match.Params[name])
		}
		if out.Match.Data != nil {
			info(cmd, "data  %s", compactJSON(out.Match.Data))
		}
		if out.Match.View != nil {
			info(cmd, "view  %s", compactJSON(out.Match.View))
		}
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "\033[33m•\033[0m %s: %s\n", out.URL, out.Phase)
		if out.Err != nil && out.Phase != router.PhaseAborted {
			info(cmd, "%s", out.Err)
		}
	}
	for _, hop := range out.Redirects {
		info(cmd, "redirected from %s", hop)
	}
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
