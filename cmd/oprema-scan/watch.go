package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erazemk/oprema/internal/client"
	"github.com/erazemk/oprema/internal/events"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow inventory transactions as they happen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				fmt.Fprintln(cmd.ErrOrStderr(), "Watching for transactions, Ctrl-C to stop")
				return c.Watch(cmd.Context(), func(ev events.Event) {
					if ctx.flags.json {
						ctx.output(cmd, ev, nil)
						return
					}
					fmt.Fprint(cmd.OutOrStdout(), renderEvent(ev))
				})
			})
		},
	}
}
