package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

type tabKind int

const (
	tabMain tabKind = iota
	tabPopup
	tabSameTab
)

// A4 in inches.
const (
	paperWidthA4  = 8.27
	paperHeightA4 = 11.69
)

// Tab is the chromedp implementation of Page.
type Tab struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     Options
	kind     tabKind
	returnTo string
	closed   bool
}

// run executes actions against the tab with its own deadline, while still
// honouring cancellation of the caller's context.
func (t *Tab) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rctx, cancel := context.WithTimeout(t.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(rctx, actions...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(rctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %v", ErrTimeout, timeout, err)
	}
	return err
}

// Navigate loads url and waits for the body to be ready.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	return t.run(ctx, t.opts.NavigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Location returns the tab's current URL.
func (t *Tab) Location(ctx context.Context) (string, error) {
	var loc string
	if err := t.run(ctx, t.opts.ActionTimeout, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// HTML returns the rendered document.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	var html string
	if err := t.run(ctx, t.opts.ActionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// WaitVisible waits for sel to become visible.
func (t *Tab) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	return t.run(ctx, timeout, chromedp.WaitVisible(sel, chromedp.ByQuery))
}

// Click clicks the first visible element matching sel.
func (t *Tab) Click(ctx context.Context, sel string) error {
	return t.run(ctx, t.opts.ActionTimeout, chromedp.Click(sel, chromedp.ByQuery))
}

// SetValue clears an input and types value into it.
func (t *Tab) SetValue(ctx context.Context, sel, value string) error {
	return t.run(ctx, t.opts.ActionTimeout,
		chromedp.SetValue(sel, "", chromedp.ByQuery),
		chromedp.SendKeys(sel, value, chromedp.ByQuery),
	)
}

// Evaluate runs expr in the page.
func (t *Tab) Evaluate(ctx context.Context, expr string, out any) error {
	return t.run(ctx, t.opts.ActionTimeout, chromedp.Evaluate(expr, out))
}

// PDF prints the page on A4 with backgrounds.
func (t *Tab) PDF(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := t.run(ctx, t.opts.NavigationTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := page.PrintToPDF().
			WithPrintBackground(true).
			WithPaperWidth(paperWidthA4).
			WithPaperHeight(paperHeightA4).
			Do(ctx)
		if err != nil {
			return err
		}
		buf = data
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to print PDF: %w", err)
	}
	return buf, nil
}

// OpenFrom clicks sel and races a popup opened by this tab against this
// tab's own navigation. Whichever happens first is returned.
func (t *Tab) OpenFrom(ctx context.Context, sel string, timeout time.Duration) (Page, error) {
	before, err := t.Location(ctx)
	if err != nil {
		return nil, err
	}

	c := chromedp.FromContext(t.ctx)
	if c == nil || c.Target == nil {
		return nil, fmt.Errorf("tab is not attached to a target")
	}
	opener := c.Target.TargetID

	waitCtx, cancelWait := context.WithCancel(t.ctx)
	defer cancelWait()
	newTarget := chromedp.WaitNewTarget(waitCtx, func(info *target.Info) bool {
		return info.Type == "page" && info.OpenerID == opener
	})

	if err := t.Click(ctx, sel); err != nil {
		return nil, err
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(250 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-deadline.C:
			return nil, fmt.Errorf("%w: nothing opened from %s", ErrTimeout, sel)

		case id, ok := <-newTarget:
			if !ok || id == "" {
				newTarget = nil
				continue
			}
			pctx, pcancel := chromedp.NewContext(t.ctx, chromedp.WithTargetID(id))
			popup := &Tab{ctx: pctx, cancel: pcancel, opts: t.opts, kind: tabPopup}
			if err := popup.run(ctx, t.opts.NavigationTimeout, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
				_ = popup.Close(ctx)
				return nil, err
			}
			return popup, nil

		case <-poll.C:
			loc, err := t.Location(ctx)
			if err != nil || loc == before || loc == "about:blank" {
				continue
			}
			if err := t.run(ctx, t.opts.NavigationTimeout, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
				return nil, err
			}
			return &Tab{ctx: t.ctx, opts: t.opts, kind: tabSameTab, returnTo: before}, nil
		}
	}
}

// Close releases the page according to how it was opened.
func (t *Tab) Close(ctx context.Context) error {
	if t.closed {
		return nil
	}
	t.closed = true

	switch t.kind {
	case tabPopup:
		err := chromedp.Cancel(t.ctx)
		t.cancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("failed to close popup: %w", err)
		}
	case tabSameTab:
		if t.returnTo != "" {
			return t.Navigate(ctx, t.returnTo)
		}
	}
	return nil
}
