package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/termmeta/internal/config"
)

func newRegisterCmd(app **env) *cobra.Command {
	var save bool

	registerCmd := &cobra.Command{
		Use:   "register <taxonomy> [carrier-type]",
		Short: "Enable metadata for a taxonomy",
		Long: `Enable metadata for a taxonomy.

The carrier type defaults to <taxonomy>_tax_meta and is created when missing.
Registration lasts for this process only unless --save adds it to the config file.

Examples:
  termmeta register category
  termmeta register post_tag tag_meta --save`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := *app
			var carrierType string
			if len(args) == 2 {
				carrierType = args[1]
			}

			reg, err := e.registry.Register(cmd.Context(), args[0], carrierType)
			if err != nil {
				return err
			}

			if save {
				updated, err := config.AddTaxonomy(e.configPath, e.cfg.Taxonomies, config.TaxonomyConfig{
					Name:        reg.Taxonomy,
					CarrierType: carrierType,
				})
				if err != nil {
					return fmt.Errorf("saving registration: %w", err)
				}
				e.cfg.Taxonomies = updated
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "registered %s -> %s\n", reg.Taxonomy, reg.CarrierType)
			return nil
		},
	}
	registerCmd.Flags().BoolVar(&save, "save", false, "persist the registration in the config file")
	return registerCmd
}
