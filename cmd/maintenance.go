package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "Lists the registered sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCATEGORY\tURL")
			for _, def := range appInstance.Registry().All() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", def.ID, def.CategoryLabel, def.BaseURL)
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("write sources: %w", err)
			}
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Creates the articles table and its indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := appInstance.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			appInstance.Logger().Info("schema is up to date")
			return nil
		},
	}
}

func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Deletes articles published before the retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			n, cutoff, err := appInstance.Prune(cmd.Context())
			if err != nil {
				return err
			}
			appInstance.Logger().Info("pruned articles",
				zap.Int64("deleted", n),
				zap.Time("cutoff", cutoff),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d articles published before %s\n", n, cutoff.Format(time.DateOnly))
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the ops HTTP server until interrupted",
		Long: `Serves /healthz, /readyz, /metrics, /v1/sources and /v1/runs on ops.addr.
Runs are started with POST /v1/runs.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			logger := appInstance.Logger()
			server := appInstance.Server(ctx)
			httpServer := &http.Server{
				Addr:              appInstance.Config().Ops.Addr,
				Handler:           server.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("ops server listening", zap.String("addr", httpServer.Addr))
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("ops server: %w", err)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("ops server shutdown failed", zap.Error(err))
			}
			server.Wait()
			logger.Info("ops server stopped")
			return nil
		},
	}
}
