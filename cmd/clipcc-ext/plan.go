package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Menersar/clipcc-extension/internal/extension"
	"github.com/Menersar/clipcc-extension/internal/logging"
)

// manifestView adapts discovered manifests to the resolver's registry
// view, with load statuses supplied by flags. It lets plans be computed
// without instantiating any extension.
type manifestView struct {
	infos    map[string]extension.Info
	ids      []string
	statuses map[string]extension.Status
}

func newManifestView(found []*extension.Discovered, active, implicit []string) *manifestView {
	v := &manifestView{
		infos:    make(map[string]extension.Info, len(found)),
		statuses: make(map[string]extension.Status),
	}
	for _, d := range found {
		v.infos[d.Manifest.ID] = d.Manifest.Info()
	}
	for id := range v.infos {
		v.ids = append(v.ids, id)
	}
	sort.Strings(v.ids)
	for _, id := range active {
		v.statuses[id] = extension.StatusActiveInitiative
	}
	for _, id := range implicit {
		v.statuses[id] = extension.StatusActiveImplicit
	}
	return v
}

func (v *manifestView) Info(id string) (extension.Info, bool) {
	info, ok := v.infos[id]
	return info, ok
}

func (v *manifestView) Status(id string) extension.Status {
	return v.statuses[id]
}

func (v *manifestView) KnownIDs() []string {
	return v.ids
}

// NewPlanCmd creates the plan subcommand with load and unload dry runs.
func NewPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute load or unload plans without applying them",
	}
	cmd.AddCommand(newPlanLoadCmd())
	cmd.AddCommand(newPlanUnloadCmd())
	return cmd
}

func newPlanLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <id>...",
		Short: "Print the dependency-ordered load plan for the given ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := discoverView(cmd, nil, nil)
			if err != nil {
				return err
			}

			plan, err := extension.NewResolver(view).ResolveLoadOrder(args)
			if err != nil {
				return err
			}
			for _, step := range plan {
				cmd.Printf("%s (%s)\n", step.ID, step.Mode)
			}
			return nil
		},
	}
	addConfigFlags(cmd)
	return cmd
}

func newPlanUnloadCmd() *cobra.Command {
	var active, implicit []string

	cmd := &cobra.Command{
		Use:   "unload <id>...",
		Short: "Print the teardown order for the given ids",
		Long: `Print the teardown order for the given ids, assuming the load state
declared with --active and --implicit. Dependents of an unloaded
extension are cascaded in ahead of it; implicitly loaded dependencies
are appended for cleanup.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := discoverView(cmd, active, implicit)
			if err != nil {
				return err
			}

			order, err := extension.NewResolver(view).ResolveUnloadOrder(args)
			if err != nil {
				return err
			}
			if len(order) == 0 {
				cmd.Println("nothing to unload")
				return nil
			}
			for _, id := range order {
				cmd.Println(id)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&active, "active", nil, "ids assumed loaded explicitly")
	cmd.Flags().StringSliceVar(&implicit, "implicit", nil, "ids assumed loaded as dependencies")
	addConfigFlags(cmd)
	return cmd
}

// discoverView builds a resolver view over the extensions directory.
func discoverView(cmd *cobra.Command, active, implicit []string) (*manifestView, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := logging.Setup("clipcc-ext", version, cfg.LogFormat, cfg.LogLevel, cmd.ErrOrStderr())

	found, err := extension.Discover(cfg.ExtensionsDir, logger)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("no extensions found in %s", cfg.ExtensionsDir)
	}
	return newManifestView(found, active, implicit), nil
}
