package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zylisp/nrepl/client"
	"github.com/zylisp/nrepl/operations"
)

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server is alive and evaluating",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client.Client) error {
				ok, latency, err := operations.CheckConnection(ctx, c)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("server responded but evaluation misbehaved")
				}
				fmt.Printf("ok %s\n", latency.Round(time.Microsecond))
				return nil
			})
		},
	}
}
