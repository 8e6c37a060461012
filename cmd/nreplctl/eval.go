package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zylisp/nrepl/client"
	"github.com/zylisp/nrepl/operations"
)

func evalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eval <code>",
		Short: "Evaluate a code string on the server",
		Long: `Evaluate sends one code string to the connected nREPL session and
prints the merged result: captured output first, then the evaluated
values. Pass "-" to read the code from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := args[0]
			if code == "-" {
				raw, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				code = string(raw)
			}
			return withClient(func(ctx context.Context, c *client.Client) error {
				out, err := operations.EvalCode(ctx, c, code)
				if err != nil {
					return err
				}
				fmt.Println(out)
				return nil
			})
		},
	}
}
