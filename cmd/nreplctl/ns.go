package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zylisp/nrepl/client"
	"github.com/zylisp/nrepl/operations"
)

func nsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ns",
		Short: "Inspect namespaces on the server",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all loaded namespaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client.Client) error {
				out, err := operations.ListNamespaces(ctx, c)
				if err != nil {
					return err
				}
				fmt.Println(out)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "vars <namespace>",
		Short: "List the public vars and macros of a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client.Client) error {
				out, err := operations.NamespaceVars(ctx, c, args[0])
				if err != nil {
					return err
				}
				fmt.Println(out)
				return nil
			})
		},
	})

	return cmd
}
