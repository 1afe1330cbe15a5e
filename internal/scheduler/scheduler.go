// Package scheduler triggers collection runs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/recruit-ops/resume-collector/internal/collector"
)

// Runner performs one collection run.
type Runner interface {
	Run(ctx context.Context) (*collector.Result, error)
}

// Scheduler wraps robfig/cron and fires a collection run per tick.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	runner Runner
	logger *zap.Logger
}

// New creates a scheduler for spec, e.g. "@every 6h" or "0 */6 * * *".
func New(spec string, runner Runner, logger *zap.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid collect schedule %q: %w", spec, err)
	}
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl))),
		spec:   spec,
		runner: runner,
		logger: logger,
	}, nil
}

// Start registers the job and starts ticking. Runs use ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.cron.Start()
	s.logger.Info("collection schedule started", zap.String("schedule", s.spec))
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("collection schedule stopped")
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	res, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, collector.ErrRunInProgress):
		s.logger.Info("scheduled run skipped, another run is active")
	case err != nil:
		s.logger.Error("scheduled run failed", zap.Error(err))
	default:
		s.logger.Info("scheduled run complete",
			zap.Int("postings", res.JobPostingCount), zap.Int("saved", res.Count))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
