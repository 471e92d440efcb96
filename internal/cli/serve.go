package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dyike/PainRadar/internal/debug"
	"github.com/dyike/PainRadar/internal/server"
	"github.com/dyike/PainRadar/pkg/app"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API. The configuration file is watched and every change
rebuilds the application without restarting the listener.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := opts.manager()
			if err != nil {
				return err
			}
			if host != "" || port != 0 {
				cfg := mgr.Get()
				if host != "" {
					cfg.Host = host
				}
				if port != 0 {
					cfg.Port = port
				}
				if err := mgr.Update(cfg); err != nil {
					return err
				}
			}
			return serve(cmd.Context(), mgr.Path(), func(ctx context.Context) (*app.Runtime, error) {
				cfg := mgr.Get()
				if err := debug.NewEinoDebugger(&cfg).Initialize(ctx); err != nil {
					log.WithError(err).Warn("eino debug disabled")
				}
				return app.NewRuntime(ctx, mgr)
			})
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides the configuration)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides the configuration)")
	return cmd
}

func serve(ctx context.Context, configPath string, newRuntime func(context.Context) (*app.Runtime, error)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	cfg := rt.App().Config
	srv := server.NewServer(rt, &cfg)
	log.WithField("config", configPath).Info("watching configuration")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err = <-errCh:
		if err != nil {
			_ = rt.Close(context.Background())
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.WorkflowTimeout())
	defer cancelDrain()
	if err := rt.Close(drainCtx); err != nil {
		log.WithError(err).Error("close application")
	}
	log.Info("PainRadar stopped")
	return nil
}
