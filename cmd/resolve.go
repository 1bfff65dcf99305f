package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/termmeta/internal/metrics"
	"github.com/zjrosen/termmeta/internal/termmeta/domain"
)

func newResolveCmd(app **env) *cobra.Command {
	var stats bool

	resolveCmd := &cobra.Command{
		Use:   "resolve <taxonomy> <term>",
		Short: "Print the carrier record id of a term",
		Long: `Print the carrier record id of a term, creating the carrier when backfill allows it.

A numeric term argument is a term id, anything else is a term name.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := *app
			key, err := domain.ParseTermKey(args[1])
			if err != nil {
				return err
			}

			id, ok := e.resolver.Resolve(cmd.Context(), args[0], key)
			if stats {
				defer func() {
					if e.metrics != nil {
						_ = metrics.WriteSummary(cmd.ErrOrStderr(), e.metrics)
					}
				}()
			}
			if !ok {
				return fmt.Errorf("no carrier for %s %s", args[0], key)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	resolveCmd.Flags().BoolVar(&stats, "stats", false, "print resolver counters to stderr")
	return resolveCmd
}
