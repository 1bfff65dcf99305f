package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/termmeta/internal/log"
	"github.com/zjrosen/termmeta/internal/pubsub"
	"github.com/zjrosen/termmeta/internal/termmeta"
	"github.com/zjrosen/termmeta/internal/termmeta/domain"
	"github.com/zjrosen/termmeta/internal/watcher"
)

func newWatchCmd(app **env) *cobra.Command {
	var showEvents bool

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Resolve terms read from stdin, flushing the cache when the database changes",
		Long: `Resolve "<taxonomy> <term>" lines read from stdin until EOF.

The resolution cache lives as long as the process. Writes to the database by
other processes flush it, so later lines see their changes. Carriers created
while resolving a line do not.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := *app
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			w, err := watcher.New(watcher.Config{
				DBPath:      e.cfg.DBPath,
				DebounceDur: e.cfg.Watch.Debounce,
			})
			if err != nil {
				return err
			}
			watchDone := make(chan error, 1)
			go func() {
				watchDone <- w.Run(ctx, func() {
					log.Debug(log.CatWatcher, "database changed, flushing cache")
					e.resolver.Flush(ctx)
				})
			}()

			var listening <-chan struct{}
			if showEvents {
				listening = e.events.Listen(ctx, func(ev pubsub.Event[termmeta.CarrierEvent]) {
					p := ev.Payload
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "event %s taxonomy=%s term=%d carrier=%d\n",
						ev.Type, p.Taxonomy, p.TermID, p.CarrierID)
				})
			}

			out := cmd.OutOrStdout()
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				taxonomy, term, found := strings.Cut(line, " ")
				if !found {
					_, _ = fmt.Fprintf(out, "%s: expected \"<taxonomy> <term>\"\n", line)
					continue
				}
				key, err := domain.ParseTermKey(term)
				if err != nil {
					_, _ = fmt.Fprintf(out, "%s: %v\n", line, err)
					continue
				}
				// Backfills write the database; those writes must not flush the cache.
				done := w.OwnWrite()
				id, ok := e.resolver.Resolve(ctx, taxonomy, key)
				done()
				if ok {
					_, _ = fmt.Fprintf(out, "%s %s %d\n", taxonomy, key, id)
				} else {
					_, _ = fmt.Fprintf(out, "%s %s none\n", taxonomy, key)
				}
			}

			cancel()
			if listening != nil {
				<-listening
			}
			if err := <-watchDone; err != nil {
				return err
			}
			return scanner.Err()
		},
	}
	watchCmd.Flags().BoolVar(&showEvents, "events", false, "print resolver events to stderr")
	return watchCmd
}
