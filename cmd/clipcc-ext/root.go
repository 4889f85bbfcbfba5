package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Menersar/clipcc-extension/internal/config"
	"github.com/Menersar/clipcc-extension/internal/extension"
	"github.com/Menersar/clipcc-extension/internal/extension/luaext"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the clipcc-ext CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clipcc-ext",
		Short: "clipcc-ext - ClipCC extension manager",
		Long: `clipcc-ext manages pluggable extensions: it resolves dependency-ordered
load and unload plans, validates version requirements, and drives
extension lifecycle hooks.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewListCmd())
	cmd.AddCommand(NewPlanCmd())
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewServeCmd())

	return cmd
}

// addConfigFlags registers the flags shared by commands that read the
// extensions directory. The flag set doubles as the koanf posflag source.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().String("extensions-dir", config.DefaultExtensionsDir(), "directory scanned for extension manifests")
	cmd.Flags().String("log-format", "json", "log format (json or text)")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

// loadConfig resolves the effective configuration for a command.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(configFile, cmd.Flags())
}

// registerDiscovered registers every discovered manifest with the
// manager. API extensions with a Lua entry get a Lua-hosted instance;
// API extensions without one cannot be driven from disk and are skipped
// with a warning.
func registerDiscovered(mgr *extension.Manager, found []*extension.Discovered, logger *slog.Logger) error {
	for _, d := range found {
		var inst extension.Instance
		if d.Manifest.API {
			if d.Manifest.Lua == nil {
				logger.Warn("skipping api extension without lua entry",
					"extension", d.Manifest.ID)
				continue
			}
			lu, err := luaext.New(d.Manifest.ID, d.Dir, d.Manifest.Lua.Entry)
			if err != nil {
				return err
			}
			inst = lu
		}
		if err := mgr.Register(d.Manifest.Info(), inst); err != nil {
			return err
		}
	}
	return nil
}
