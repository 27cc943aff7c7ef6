package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/docmirror/internal/config"
	dmlog "github.com/nao1215/docmirror/internal/log"
)

// NewRootCmd creates the root command for docmirror.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docmirror",
		Short: "Mirror a documentation website as Markdown",
		Long: `docmirror mirrors a documentation website into a local tree of Markdown files.

It crawls every page under a root URL breadth-first, renders it in a
browser (or over plain HTTP), extracts the main content, converts it to
Markdown and records what was discovered, downloaded and skipped in
manifest.json. Finished runs are kept in a local history database.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: "+config.DefaultConfigFile+" in current, home or XDG config directory)")

	cmd.AddCommand(NewMirrorCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getBoolFlag retrieves a boolean flag from the command or its parents.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// getStringFlag retrieves a string flag from the command or its parents.
func getStringFlag(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetString(name)
		if err != nil {
			return ""
		}
	}
	return v
}

// setupLogger creates the secure structured logger for the command.
// Secrets such as cookies and tokens are masked in every format.
func setupLogger(cmd *cobra.Command) *slog.Logger {
	verbose := getBoolFlag(cmd, "verbose")
	if getBoolFlag(cmd, "log-json") {
		return dmlog.NewSecureJSONLogger(cmd.ErrOrStderr(), verbose)
	}
	return dmlog.NewSecureLogger(cmd.ErrOrStderr(), verbose)
}
