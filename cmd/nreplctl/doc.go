package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zylisp/nrepl/client"
	"github.com/zylisp/nrepl/operations"
)

func docCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doc <symbol>",
		Short: "Show the docstring for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client.Client) error {
				out, err := operations.Doc(ctx, c, args[0])
				if err != nil {
					return err
				}
				fmt.Println(out)
				return nil
			})
		},
	}
}
