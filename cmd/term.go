package cmd

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zjrosen/termmeta/internal/termmeta"
	"github.com/zjrosen/termmeta/internal/termmeta/domain"
)

func newTermCmd(app **env) *cobra.Command {
	termCmd := &cobra.Command{
		Use:   "term",
		Short: "Manage terms",
	}

	var addSlug string
	addCmd := &cobra.Command{
		Use:   "add <taxonomy> <name>",
		Short: "Create a term and backfill its carrier record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := *app
			term, err := e.store.CreateTerm(cmd.Context(), args[0], args[1], addSlug)
			if err != nil {
				return err
			}
			carrierID, ok := e.resolver.TermSaved(cmd.Context(), term.Taxonomy, term.ID, termmeta.SaveAdd)
			printTermResult(cmd.OutOrStdout(), term, carrierID, ok)
			return nil
		},
	}
	addCmd.Flags().StringVarP(&addSlug, "slug", "s", "", "term slug (derived from the name when empty)")

	var renameSlug string
	renameCmd := &cobra.Command{
		Use:   "rename <taxonomy> <id> <name>",
		Short: "Rename a term and refresh its cached carrier",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := *app
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid term id %q", args[1])
			}
			term, err := e.store.UpdateTerm(cmd.Context(), args[0], id, args[2], renameSlug)
			if err != nil {
				return err
			}
			carrierID, ok := e.resolver.TermSaved(cmd.Context(), term.Taxonomy, term.ID, termmeta.SaveEdit)
			printTermResult(cmd.OutOrStdout(), term, carrierID, ok)
			return nil
		},
	}
	renameCmd.Flags().StringVarP(&renameSlug, "slug", "s", "", "new slug (unchanged when empty)")

	listCmd := &cobra.Command{
		Use:   "list <taxonomy>",
		Short: "List the terms of a taxonomy with their carrier records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := *app
			terms, err := e.store.ListTerms(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tNAME\tSLUG\tCARRIER")
			for _, term := range terms {
				carrier := "-"
				// Listing reads the durable link only and never backfills.
				if record, err := e.store.FindRelatedRecord(cmd.Context(), term); err == nil {
					carrier = strconv.FormatInt(record.ID, 10)
				}
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", term.ID, term.Name, term.Slug, carrier)
			}
			return w.Flush()
		},
	}

	termCmd.AddCommand(addCmd, renameCmd, listCmd)
	return termCmd
}

func printTermResult(w io.Writer, term *domain.Term, carrierID int64, ok bool) {
	if !ok {
		_, _ = fmt.Fprintf(w, "term %d %q (%s): no carrier\n", term.ID, term.Name, term.Slug)
		return
	}
	_, _ = fmt.Fprintf(w, "term %d %q (%s): carrier %d\n", term.ID, term.Name, term.Slug, carrierID)
}
