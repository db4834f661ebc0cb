// Package cli implements the lakehouse command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gigapi/gigapi-lakehouse/config"
	"github.com/gigapi/gigapi-lakehouse/core"
	"github.com/gigapi/gigapi-lakehouse/querier"
	"github.com/gigapi/gigapi-lakehouse/storage"
)

// app carries state shared by every command of one invocation.
type app struct {
	configPath string
	jsonOut    bool
	logLevel   string

	cfg    *config.Config
	store  storage.Store
	client *querier.QueryClient
}

// Execute runs the CLI.
func Execute() int {
	return execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	defer a.close()

	if err := root.ExecuteContext(ctx); err != nil {
		var shown *shownError
		if a.jsonOut && !errors.As(err, &shown) {
			_ = printJSON(stdout, map[string]any{"error": err.Error(), "kind": core.ErrorKind(err)})
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// shownError fails the command after its JSON output was already written,
// so stdout carries a single document.
type shownError struct{ err error }

func (e *shownError) Error() string { return e.err.Error() }
func (e *shownError) Unwrap() error { return e.err }

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "lakehouse",
		Short:         "Query and ingest lakehouse tables",
		Long:          "Command-line access to the lakehouse: structured queries over Parquet tables and routing of new Parquet files.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			level := cfg.LogLevel
			if cmd.Flags().Changed("log-level") {
				level = a.logLevel
			}
			core.SetLogLevel(level)
			a.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (yaml, toml or json)")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "Output as JSON")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newListTablesCmd(a),
		newGetSchemaCmd(a),
		newQueryCmd(a),
		newGetRecordCmd(a),
		newSearchCmd(a),
		newListRecentCmd(a),
		newCountCmd(a),
		newConfigCmd(a),
		newIngestCmd(a),
		newServeCmd(a),
		newGenerateSampleCmd(a),
	)
	return root
}

// openStore opens the warehouse store once per invocation.
func (a *app) openStore() (storage.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := storage.Open(a.cfg.Settings)
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

func (a *app) queryClient() (*querier.QueryClient, error) {
	if a.client != nil {
		return a.client, nil
	}
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	a.client = querier.NewQueryClient(a.cfg, store)
	return a.client, nil
}

func (a *app) close() {
	if a.client != nil {
		a.client.Close()
	}
}
