package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/kwonwoo078/presto/pkg/storelog"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	conn        *Connector
	metricsAddr string
}

func NewApp(conn *Connector, metricsAddr string) *App {
	return &App{
		conn:        conn,
		metricsAddr: metricsAddr,
	}
}

// Run serves metrics and keeps the node registration alive until ctx is
// done or one of them fails, then tears the connector down.
func (app *App) Run(ctx context.Context) error {
	storelog.Zero.Info().Msg("running connector app")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.ServeMetrics(gctx)
	})
	if app.conn.Registration != nil {
		g.Go(func() error {
			return app.conn.Registration.Run(gctx)
		})
	}

	err := g.Wait()
	app.conn.Close()

	storelog.Zero.Debug().Err(err).Msg("exit connector app")
	return err
}

func (app *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

func (app *App) ServeMetrics(ctx context.Context) error {
	srv := &http.Server{
		Addr:              app.metricsAddr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		storelog.Zero.Info().
			Str("addr", app.metricsAddr).
			Msg("serve metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		storelog.Zero.Error().Err(err).Msg("metrics server failed")
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
