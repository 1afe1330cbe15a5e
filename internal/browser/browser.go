// Package browser drives a headless Chrome session for the portal scraper.
// Requires Chrome/Chromium to be installed on the system.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ErrTimeout is returned when a wait or navigation hits its deadline.
// Callers walking extraction cascades treat it as "not found".
var ErrTimeout = errors.New("browser: timed out")

// DefaultUserAgent is sent by every tab.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0 Safari/537.36"

// Page is a single browsing surface: the main tab, a popup, or the main tab
// after a same-tab navigation.
type Page interface {
	// Navigate loads url and waits for the document body.
	Navigate(ctx context.Context, url string) error
	// Location returns the current URL.
	Location(ctx context.Context) (string, error)
	// HTML returns the current document's outer HTML.
	HTML(ctx context.Context) (string, error)
	// WaitVisible waits up to timeout for sel to be visible.
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error
	// Click clicks the first element matching sel.
	Click(ctx context.Context, sel string) error
	// SetValue replaces the value of an input.
	SetValue(ctx context.Context, sel, value string) error
	// Evaluate runs a script and decodes its result into out.
	Evaluate(ctx context.Context, expr string, out any) error
	// OpenFrom clicks sel and returns whatever page the click produced:
	// a new popup tab or this tab after it navigated.
	OpenFrom(ctx context.Context, sel string, timeout time.Duration) (Page, error)
	// PDF prints the current document on A4.
	PDF(ctx context.Context) ([]byte, error)
	// Close releases the page. Popups are closed; a same-tab result
	// navigates back to where it came from. The main tab is a no-op.
	Close(ctx context.Context) error
}

// Options configures a browser session.
type Options struct {
	Headless          bool
	ExecPath          string
	UserAgent         string
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
}

// Session owns one Chrome process and its main tab.
type Session struct {
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	main          *Tab
	logger        *zap.Logger
}

// Start launches Chrome and opens the main tab.
func Start(ctx context.Context, opts Options, logger *zap.Logger) (*Session, error) {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("lang", "ko-KR"),
		chromedp.UserAgent(opts.UserAgent),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser process before handing out the tab.
	if err := chromedp.Run(browserCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	logger.Info("browser started", zap.Bool("headless", opts.Headless))

	return &Session{
		allocCancel:   allocCancel,
		browserCancel: browserCancel,
		main:          &Tab{ctx: browserCtx, opts: opts, kind: tabMain},
		logger:        logger,
	}, nil
}

// Page returns the main tab.
func (s *Session) Page() Page {
	return s.main
}

// Close shuts the browser down. Safe to call more than once.
func (s *Session) Close() error {
	if s.browserCancel == nil {
		return nil
	}
	err := chromedp.Cancel(s.main.ctx)
	s.browserCancel()
	s.allocCancel()
	s.browserCancel = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	s.logger.Info("browser closed")
	return nil
}
