package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
	fixture    string
	apiURL     string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var flags globalFlags

	var rootCmd = &cobra.Command{
		Use:   "kgview",
		Short: "kgview - interactive knowledge graph viewer",
		Long: `kgview lays out a knowledge graph with a force-directed simulation and lets
you explore it: click an entity to load its neighborhood, drag entities around,
pan and zoom, and search by name or type. It runs in the browser (serve), in
the terminal (tui) or headless (render).`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Path to kgview.yaml (default ./kgview.yaml if present)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVarP(&flags.fixture, "fixture", "f", "", "Serve the graph from this YAML fixture")
	pf.StringVar(&flags.apiURL, "api", "", "Base URL of the knowledge graph API")

	rootCmd.AddCommand(newServeCommand(&flags))
	rootCmd.AddCommand(newTUICommand(&flags))
	rootCmd.AddCommand(newRenderCommand(&flags))
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}
