package main

import (
	"fmt"

	"github.com/spf13/cobra"

	appcompliance "github.com/bryanwahyu/automaton-compliance/internal/application/compliance"
)

func newValidateCmd(flags *tableFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the analyzer registry, taxonomy and conflict rules.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			registry, err := appcompliance.LoadRegistry(flags.RegistryPath)
			if err != nil {
				return fmt.Errorf("registry %s: %w", flags.RegistryPath, err)
			}
			snap := registry.Snapshot()
			fmt.Fprintf(out, "registry  %s: version %s, %d analyzers\n", flags.RegistryPath, snap.Version, snap.Len())

			rules, err := appcompliance.LoadRules(flags.RulesPath)
			if err != nil {
				return fmt.Errorf("rules %s: %w", flags.RulesPath, err)
			}
			fmt.Fprintf(out, "rules     %s: %d rules\n", flags.RulesPath, rules.Table().Len())
			if dead := rules.Table().UnreachableSides(snap); len(dead) > 0 {
				for _, d := range dead {
					fmt.Fprintf(out, "  unreachable: %s\n", d)
				}
				return fmt.Errorf("rules %s: %d rule sides can never match", flags.RulesPath, len(dead))
			}

			taxonomy, err := flags.taxonomy()
			if err != nil {
				return fmt.Errorf("taxonomy %s: %w", flags.TaxonomyPath, err)
			}
			fmt.Fprintf(out, "taxonomy  version %s, %d disciplines\n", taxonomy.Version, len(taxonomy.Entries))
			return nil
		},
	}
}
