package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/zylisp/nrepl"
	"github.com/zylisp/nrepl/client"
)

var rootFlags struct {
	host       string
	port       int
	timeout    time.Duration
	configPath string
	verbose    bool
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "nreplctl",
		Short: "Drive a running nREPL server from the command line",
		Long: `nreplctl connects to a Lisp nREPL server over its native
bencode protocol and runs one operation per invocation: evaluate code,
look up documentation, list namespaces and their vars, or check that
the server is alive.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.host, "host", "", "nREPL server host (default 127.0.0.1)")
	pf.IntVar(&rootFlags.port, "port", 0, "nREPL server port (default 36915)")
	pf.DurationVar(&rootFlags.timeout, "timeout", 0, "per-evaluation timeout (default 30s)")
	pf.StringVarP(&rootFlags.configPath, "config", "c", "", "path to TOML config file")
	pf.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "enable protocol debug logging")

	rootCmd.AddCommand(
		evalCmd(),
		docCmd(),
		nsCmd(),
		pingCmd(),
		sessionsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "nreplctl: %v\n", err)
		os.Exit(1)
	}
}

func initLogger() zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	level := zerolog.InfoLevel
	if rootFlags.verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(output).Level(level).With().Timestamp().Str("app", "nreplctl").Logger()
}

// withClient connects with the effective config, opens a session, runs
// fn, and releases the connection on every path.
func withClient(fn func(ctx context.Context, c *client.Client) error) error {
	cfg, err := effectiveConfig()
	if err != nil {
		return err
	}
	cfg.Logger = initLogger()

	ctx := context.Background()
	c, err := nrepl.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}
