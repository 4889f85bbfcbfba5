package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Menersar/clipcc-extension/internal/extension"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate every extension.yaml in the extensions directory",
		Long: `Validate checks each manifest against the JSON Schema and the semantic
rules (id syntax, semantic versions, parseable dependency ranges).
Exits non-zero if any manifest is invalid.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			entries, err := os.ReadDir(cfg.ExtensionsDir)
			if err != nil {
				return fmt.Errorf("failed to read extensions directory: %w", err)
			}

			invalid := 0
			checked := 0
			for _, entry := range entries {
				if !entry.IsDir() {
					continue
				}
				manifestPath := filepath.Join(cfg.ExtensionsDir, entry.Name(), "extension.yaml")
				data, err := os.ReadFile(manifestPath) //nolint:gosec // path built from ReadDir entries
				if err != nil {
					continue // directories without a manifest are not extensions
				}
				checked++

				if err := extension.ValidateSchema(data); err != nil {
					cmd.Printf("%s: %v\n", entry.Name(), err)
					invalid++
					continue
				}
				if _, err := extension.ParseManifest(data); err != nil {
					cmd.Printf("%s: %v\n", entry.Name(), err)
					invalid++
					continue
				}
				cmd.Printf("%s: ok\n", entry.Name())
			}

			if invalid > 0 {
				return fmt.Errorf("%d of %d manifests invalid", invalid, checked)
			}
			return nil
		},
	}

	addConfigFlags(cmd)
	return cmd
}
