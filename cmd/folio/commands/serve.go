package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/folio/pkg/backup"
	"github.com/openfroyo/folio/pkg/config"
	"github.com/openfroyo/folio/pkg/server"
	"github.com/openfroyo/folio/pkg/stores"
	"github.com/openfroyo/folio/pkg/telemetry"
)

func newServeCommand() *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve projects over HTTP",
		Long: `Start the HTTP server for the portfolio site.

The schema is ensured before the listener opens; if the database cannot be
opened the command exits instead of serving errors. When a backup schedule is
configured, snapshots are taken in the background. Edits to the config file
change the log level without a restart.

Routes:
  GET  /projects                list projects
  POST /add_project             add a project (form or JSON)
  POST /delete_project/:id      delete a project
  GET  /health, /healthz        store health
  GET  /metrics                 Prometheus metrics`,
		Example: `  # Serve with ./folio.yaml
  folio serve

  # Override the listen address
  folio serve --addr 0.0.0.0:8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a, err := openApp(ctx, false)
			if err != nil {
				if errors.Is(err, stores.ErrStorageUnavailable) {
					return fmt.Errorf("storage unavailable, refusing to serve: %w", err)
				}
				return err
			}
			defer func() {
				if err := a.Close(context.Background()); err != nil {
					log.Warn().Err(err).Msg("Shutdown was not clean")
				}
			}()

			if listenAddr != "" {
				a.cfg.Server.ListenAddress = listenAddr
			}

			logger := a.tel.Logger.NewComponentLogger("serve")
			a.tel.Events.Subscribe(func(e telemetry.Event) {
				logger.WithFields(map[string]interface{}{
					"event_id":   e.ID,
					"event_type": e.Type,
				}).Debug(e.Message)
			}, nil)

			if err := a.tel.StartMetricsServer(); err != nil {
				return fmt.Errorf("failed to start metrics server: %w", err)
			}

			var sched *backup.Scheduler
			if a.cfg.Backup.Enabled() {
				sched = backup.NewScheduler(a.cfg.Backup, a.svc, a.tel.Logger)
				if err := sched.Start(); err != nil {
					return err
				}
			}

			if a.cfgPath != "" {
				watcher := config.NewWatcher(a.cfgPath, nil, a.tel.Logger)
				err := watcher.Watch(ctx, func(cfg *config.Config) {
					if verbose {
						return
					}
					a.tel.Logger.SetLevel(cfg.Telemetry.Logging.Level)
				})
				if err != nil {
					logger.WithError(err).Warn("Config reload disabled")
				}
			}

			srv := server.New(a.cfg.Server, a.svc, a.tel, buildVersion)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			var errs []error
			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					errs = append(errs, err)
				}
			}

			shutdownCtx, stop := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
			defer stop()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("http shutdown: %w", err))
			}
			if sched != nil {
				if err := sched.Stop(shutdownCtx); err != nil {
					errs = append(errs, err)
				}
			}

			logger.Info("Server stopped")
			return errors.Join(errs...)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "addr", "", "listen address (overrides server.listen_address)")

	return cmd
}
