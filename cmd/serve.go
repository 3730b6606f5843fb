package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reverscodes/codes-cli/internal/api"
	"github.com/reverscodes/codes-cli/internal/model"
	"github.com/reverscodes/codes-cli/internal/monitoring"
	"github.com/reverscodes/codes-cli/internal/pipeline"
	"github.com/reverscodes/codes-cli/internal/store"
)

var (
	servePort     int
	serveInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run all games on a schedule and serve run history over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		interval := serveInterval
		if interval <= 0 {
			interval = cfg.Server.Interval()
		}

		apiSrv := api.NewServer(ctx, api.Deps{
			Store:          env.Store,
			Runner:         env.Pipeline,
			Games:          cfg.Games,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		})
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           apiSrv.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go schedule(ctx, env.Pipeline, env.Store, cfg.Games, interval)
		if checker := newChecker(env.Store); checker != nil {
			go checker.Run(ctx)
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", cfg.Server.Port),
			zap.Duration("interval", interval),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		apiSrv.Wait()
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 0, "time between scheduled runs (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newChecker builds the run-health alert checker, or nil when alerting is
// off or there is no run history to watch.
func newChecker(st store.Store) *monitoring.Checker {
	if st == nil || cfg.Monitoring.WebhookURL == "" {
		return nil
	}
	return monitoring.NewChecker(
		monitoring.NewCollector(st, cfg.Games),
		monitoring.NewAlerter(cfg.Monitoring),
		cfg.Monitoring,
	)
}

// schedule runs every game immediately and then once per interval until ctx
// ends. Expired cached pages are pruned before each cycle.
func schedule(ctx context.Context, p *pipeline.Pipeline, st store.Store, games []model.Game, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		runCycle(ctx, p, st, games)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runCycle(ctx context.Context, p *pipeline.Pipeline, st store.Store, games []model.Game) {
	if st != nil {
		if n, err := st.DeleteExpiredPages(ctx); err != nil {
			zap.L().Warn("prune page cache failed", zap.Error(err))
		} else if n > 0 {
			zap.L().Debug("pruned page cache", zap.Int("pages", n))
		}
	}

	start := time.Now()
	results := p.RunAll(ctx, games)
	zap.L().Info("scheduled run complete",
		zap.Int("games", len(results)),
		zap.Int("failed", countFailed(results)),
		zap.Duration("elapsed", time.Since(start)),
	)
}
