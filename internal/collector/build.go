package collector

import (
	"context"

	"go.uber.org/zap"

	"github.com/recruit-ops/resume-collector/internal/artifacts"
	"github.com/recruit-ops/resume-collector/internal/browser"
	"github.com/recruit-ops/resume-collector/internal/config"
	"github.com/recruit-ops/resume-collector/internal/llm"
	"github.com/recruit-ops/resume-collector/internal/portal"
)

// ChromeLauncher starts a chromedp session configured from cfg.
func ChromeLauncher(cfg *config.Config, logger *zap.Logger) Launcher {
	return func(ctx context.Context) (Session, error) {
		return browser.Start(ctx, browser.Options{
			Headless:          cfg.Portal.Headless,
			ExecPath:          cfg.Portal.ExecPath,
			NavigationTimeout: cfg.Collector.NavigationTimeout,
		}, logger)
	}
}

// NewFromConfig wires the portal components from cfg. ai may be nil. lock
// and summaries may be nil for in-process defaults.
func NewFromConfig(cfg *config.Config, store Store, files *artifacts.Store, ai llm.Client, lock Locker, summaries SummaryStore, logger *zap.Logger) *Orchestrator {
	urls := portal.NewURLs(cfg.Portal.BaseURL)
	timeouts := portal.Timeouts{
		Navigation: cfg.Collector.NavigationTimeout,
		Probe:      cfg.Collector.ProbeTimeout,
		Login:      cfg.Collector.LoginTimeout,
	}

	return New(Deps{
		Launch: ChromeLauncher(cfg, logger),
		Auth:   portal.NewAuthenticator(urls, cfg.Portal.Username, cfg.Portal.Password, timeouts, logger),
		Scanner: portal.NewScanner(urls, timeouts, portal.ScannerOptions{
			ResolveApplicantIDs: cfg.Collector.ResolveApplicantIDs,
			MaxPostings:         cfg.Collector.MaxPostings,
		}, logger),
		Details:    portal.NewDetailExtractor(urls, timeouts, ai, files, logger),
		Applicants: portal.NewEnumerator(urls, timeouts, cfg.Collector.PageSize, logger),
		Resumes:    portal.NewResumeExtractor(timeouts, files, logger),
		Store:      store,
		Lock:       lock,
		Summaries:  summaries,
		Logger:     logger,
	}, Options{
		ApplicantDelay: cfg.Collector.ApplicantDelay,
		SaveTimeout:    cfg.Collector.SaveTimeout,
	})
}
