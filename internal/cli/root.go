// Package cli implements the doxynav command.
package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "doxynav",
	Short: "Rearrange Doxygen navigation markup for a navbar layout",
	Long: `doxynav rewrites Doxygen-generated pages so their tab rows, search box and
side navigation fit a navbar-based theme. Pages can be rewritten on disk or
served with the rewrite applied per request.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every layout step")
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
