package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gigapi/gigapi-lakehouse/core"
	"github.com/gigapi/gigapi-lakehouse/ingest"
	"github.com/gigapi/gigapi-lakehouse/querier"
	"github.com/gigapi/gigapi-lakehouse/tools"
)

func newServeCmd(a *app) *cobra.Command {
	var noIngest bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP tool API and Flight SQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = core.WithDefaultLogger(ctx, "main")

			client, err := a.queryClient()
			if err != nil {
				return err
			}
			if err := client.Initialize(ctx); err != nil {
				return err
			}

			var ing tools.Ingester
			if !noIngest {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				ing = ingest.NewRouter(a.cfg, store, afero.NewOsFs())
			}
			server := querier.NewServer(client, tools.NewDispatcher(client, ing, a.cfg.Settings))

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.ListenAndServe(ctx, fmt.Sprintf(":%d", a.cfg.Port))
			})
			g.Go(func() error {
				return querier.StartFlightSQLServer(ctx, a.cfg.FlightSQLPort, client)
			})
			if err := g.Wait(); err != nil {
				return err
			}
			core.Infof(ctx, "Servers stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&noIngest, "no-ingest", false, "Disable the route_files and ingest_files tools")
	return cmd
}
