package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/waypoint/internal/config"
	"github.com/vango-dev/waypoint/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
	noColor    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.Print(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "waypoint",
		Short: "Inspect and exercise a client-side route table",
		Long: `Waypoint compiles a route table (waypoint.yaml) with the waypoint router
and lets you inspect it from the command line:

  • List compiled routes and their matchers
  • Dry-run matching of paths
  • Run full navigations through guards and loaders
  • Serve a devtools API with metrics and a live navigation feed`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.noColor {
				errors.DisableColors()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Route table file (default: waypoint.yaml in this or a parent directory)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "Disable colored error output")

	rootCmd.AddCommand(
		routesCmd(flags),
		matchCmd(flags),
		navigateCmd(flags),
		serveCmd(flags),
		versionCmd(),
	)
	return rootCmd
}

// loadTable reads the route table named by --config, or searches for
// waypoint.yaml from the working directory upwards.
func (g *globalFlags) loadTable() (*config.File, error) {
	if g.configPath != "" {
		return config.LoadFile(g.configPath)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	root, err := config.FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}
	return config.LoadFile(filepath.Join(root, config.ConfigFileName))
}

func (g *globalFlags) logger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(g.logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// success prints a success message.
func success(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an indented info line.
func info(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", fmt.Sprintf(format, args...))
}
