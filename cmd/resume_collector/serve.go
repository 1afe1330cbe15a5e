package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/recruit-ops/resume-collector/internal/scheduler"
	"github.com/recruit-ops/resume-collector/internal/server"
	"github.com/recruit-ops/resume-collector/internal/server/ratelimit"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes the resume API, artifact downloads and the live log stream.
When COLLECT_SCHEDULE is set, collection runs are also triggered on that cron schedule.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.db.Migrate(ctx); err != nil {
		return err
	}

	orch := a.collector()
	var limiter *ratelimit.Limiter
	if cfg.Server.RateLimit {
		limiter = ratelimit.NewLimiter(ratelimit.LoadConfig(true))
	}
	srv := server.New(cfg.Server.Port, server.Deps{
		Store:     a.db,
		Collector: orch,
		Reviewer:  a.reviewer(),
		Files:     a.files,
		Logs:      a.logs,
		Limiter:   limiter,
		Logger:    a.logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })

	if cfg.Collector.Schedule != "" {
		sched, err := scheduler.New(cfg.Collector.Schedule, orch, a.logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := sched.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			sched.Stop()
			return nil
		})
	}

	a.logger.Info("resume collector started",
		zap.Int("port", cfg.Server.Port),
		zap.Bool("rate_limit", cfg.Server.RateLimit),
		zap.Bool("ai", a.ai != nil),
		zap.String("schedule", cfg.Collector.Schedule))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
