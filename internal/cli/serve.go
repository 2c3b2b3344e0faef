package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgallion1/doxynav/internal/api"
	"github.com/dgallion1/doxynav/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service",
	Long: `Starts the adjustment API and, when --site is set, serves that directory under
/docs with pages adjusted per request. Other settings come from the
environment (DOXYNAV_API_KEY, PRESET, ...).`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("port", "", "listen port (overrides PORT)")
	serveCmd.Flags().String("site", "", "static site directory (overrides SITE_DIR)")
	serveCmd.Flags().String("preset", "", "default preset (overrides PRESET)")
	serveCmd.Flags().String("preset-file", "", "YAML preset overlay (overrides PRESET_FILE)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	for flag, dst := range map[string]*string{
		"port":        &cfg.Port,
		"site":        &cfg.SiteDir,
		"preset":      &cfg.Preset,
		"preset-file": &cfg.PresetFile,
	} {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			*dst = v
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return api.Run(ctx, cfg, newLogger(os.Stderr))
}
