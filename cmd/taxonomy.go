package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTaxonomyCmd(app **env) *cobra.Command {
	taxonomyCmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Manage taxonomies",
	}

	var label string
	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a taxonomy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := *app
			if err := e.store.CreateTaxonomy(cmd.Context(), args[0], label); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "taxonomy %s ready\n", args[0])
			return nil
		},
	}
	addCmd.Flags().StringVarP(&label, "label", "l", "", "human readable label")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List taxonomies and their carrier types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := *app
			taxonomies, err := e.store.ListTaxonomies(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "TAXONOMY\tLABEL\tCARRIER TYPE")
			for _, tax := range taxonomies {
				carrierType, ok := e.registry.CarrierTypeFor(tax.Name)
				if !ok {
					carrierType = "-"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", tax.Name, tax.Label, carrierType)
			}
			return w.Flush()
		},
	}

	taxonomyCmd.AddCommand(addCmd, listCmd)
	return taxonomyCmd
}
