package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Menersar/clipcc-extension/internal/extension"
	"github.com/Menersar/clipcc-extension/internal/logging"
)

// NewListCmd creates the list subcommand.
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List extensions found in the extensions directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := logging.Setup("clipcc-ext", version, cfg.LogFormat, cfg.LogLevel, cmd.ErrOrStderr())

			found, err := extension.Discover(cfg.ExtensionsDir, logger)
			if err != nil {
				return err
			}
			if len(found) == 0 {
				cmd.Printf("no extensions found in %s\n", cfg.ExtensionsDir)
				return nil
			}

			sort.Slice(found, func(i, j int) bool {
				return found[i].Manifest.ID < found[j].Manifest.ID
			})

			for _, d := range found {
				m := d.Manifest
				kind := "external"
				if m.API {
					kind = "api"
				}
				deps := make([]string, 0, len(m.Dependencies))
				for id, rng := range m.Dependencies {
					deps = append(deps, fmt.Sprintf("%s %s", id, rng))
				}
				sort.Strings(deps)
				line := fmt.Sprintf("%s %s (%s)", m.ID, m.Version, kind)
				if len(deps) > 0 {
					line += " requires " + strings.Join(deps, ", ")
				}
				cmd.Println(line)
			}
			return nil
		},
	}

	addConfigFlags(cmd)
	return cmd
}
