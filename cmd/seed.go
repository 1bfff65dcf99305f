package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/termmeta/internal/seed"
	"github.com/zjrosen/termmeta/internal/termmeta"
)

func newSeedCmd(app **env) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml|file.toml>",
		Short: "Import taxonomies and terms from a seed file",
		Long: `Import taxonomies and terms from a YAML or TOML seed file.

Taxonomies marked register: true are registered for this run, and every term
created by the import gets its carrier record.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := *app
			ctx := cmd.Context()

			file, err := seed.LoadFile(args[0])
			if err != nil {
				return err
			}
			res, err := seed.Apply(ctx, e.store, file)
			if err != nil {
				return err
			}
			for _, tax := range file.Registrations() {
				if _, err := e.registry.Register(ctx, tax.Name, tax.CarrierType); err != nil {
					return err
				}
			}

			backfilled := 0
			for _, term := range res.Created {
				if _, ok := e.resolver.TermSaved(ctx, term.Taxonomy, term.ID, termmeta.SaveAdd); ok {
					backfilled++
				}
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d taxonomies: %d terms created, %d existing, %d carriers\n",
				res.Taxonomies, len(res.Created), len(res.Existing), backfilled)
			return nil
		},
	}
}
