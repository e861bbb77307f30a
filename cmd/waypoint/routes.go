package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vango-dev/waypoint/internal/config"
	"github.com/vango-dev/waypoint/internal/errors"
	"github.com/vango-dev/waypoint/pkg/devtools"
	"github.com/vango-dev/waypoint/pkg/router"
)

func routesCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List the compiled route table",
		Long: `Compile the route table and list every route in match order.

Examples:
  waypoint routes
  waypoint routes --json
  waypoint routes -c testdata/shop.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := buildRouter(flags)
			if err != nil {
				return err
			}
			defer r.Close()

			views := make([]devtools.RouteView, 0, len(r.Routes()))
			for _, cr := range r.Routes() {
				views = append(views, devtools.NewRouteView(cr))
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), views)
			}
			printRoutes(cmd.OutOrStdout(), views)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func matchCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "match <path>",
		Short: "Dry-run match a path without navigating",
		Long: `Match a path against the route table. Guards and loaders do not run.

Examples:
  waypoint match /products/77
  waypoint match '/search?q=go#results' --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := buildRouter(flags)
			if err != nil {
				return err
			}
			defer r.Close()

			m, ok := r.Resolve(args[0])
			if !ok {
				return errors.New(errors.CodeNoMatch).Wrap(fmt.Errorf("%q", args[0]))
			}
			view := devtools.NewMatchView(m)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), view)
			}
			printMatch(cmd.OutOrStdout(), view)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

// buildRouter loads the table and compiles it with the CLI logger.
func buildRouter(flags *globalFlags, extra ...router.Option) (*router.Router, error) {
	f, err := flags.loadTable()
	if err != nil {
		return nil, err
	}
	return f.NewRouter(config.NewRegistry(), flags.logger(), extra...)
}

func printRoutes(w io.Writer, views []devtools.RouteView) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tNAME\tMATCHER\tPARAMS\tGUARD\tLOADER\tVIEW")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			v.Path, dash(v.Name), v.Matcher, dash(strings.Join(v.Params, ",")),
			yesNo(v.Guard), yesNo(v.Loader), yesNo(v.View))
	}
	tw.Flush()
}

func printMatch(w io.Writer, m *devtools.MatchView) {
	fmt.Fprintf(w, "route:  %s\n", m.Route)
	fmt.Fprintf(w, "path:   %s\n", m.Path)
	for _, name := range sortedKeys(m.Params) {
		fmt.Fprintf(w, "param:  %s=%s\n", name, m.Params[name])
	}
	for _, key := range sortedKeys(m.Query) {
		fmt.Fprintf(w, "query:  %s=%s\n", key, strings.Join(m.Query[key], ","))
	}
	if m.Hash != "" {
		fmt.Fprintf(w, "hash:   %s\n", m.Hash)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}
