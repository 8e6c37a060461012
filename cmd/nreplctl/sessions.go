package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zylisp/nrepl/client"
	"github.com/zylisp/nrepl/protocol"
)

func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List the sessions open on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client.Client) error {
				res, err := c.ListSessions(ctx)
				if err != nil {
					return err
				}
				if res.Status != protocol.StatusOK {
					return fmt.Errorf("ls-sessions ended with status %s", res.Status)
				}
				for _, v := range res.Values {
					fmt.Println(v)
				}
				return nil
			})
		},
	}
}
