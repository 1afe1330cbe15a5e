package portal

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/recruit-ops/resume-collector/internal/browser"
	"github.com/recruit-ops/resume-collector/internal/extract"
)

const loginPollInterval = 250 * time.Millisecond

// Authenticator logs the corporate account into the portal.
type Authenticator struct {
	urls     URLs
	username string
	password string
	timeouts Timeouts
	logger   *zap.Logger
}

// NewAuthenticator creates an authenticator for one account.
func NewAuthenticator(urls URLs, username, password string, timeouts Timeouts, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		urls:     urls,
		username: username,
		password: password,
		timeouts: timeouts.withDefaults(),
		logger:   logger,
	}
}

// Login drives page through the login form. Success is confirmed when the
// page reaches the corporate area, or failing that, when the login form is
// gone after submitting.
func (a *Authenticator) Login(ctx context.Context, page Page) error {
	if a.username == "" || a.password == "" {
		return &AuthenticationError{Err: errors.New("credentials are not configured")}
	}

	loginURL := a.urls.Login()
	a.logger.Info("logging in to portal", zap.String("url", loginURL))

	if err := page.Navigate(ctx, loginURL); err != nil {
		return &AuthenticationError{URL: loginURL, Err: err}
	}

	// The company tab is preselected on some layouts.
	if err := page.WaitVisible(ctx, selCompanyTab, a.timeouts.Probe); err == nil {
		if err := page.Click(ctx, selCompanyTab); err != nil {
			a.logger.Debug("company tab click failed", zap.Error(err))
		}
	}

	if err := page.WaitVisible(ctx, selLoginID, a.timeouts.Navigation); err != nil {
		return &AuthenticationError{URL: loginURL, Err: err}
	}
	if err := page.SetValue(ctx, selLoginID, a.username); err != nil {
		return &AuthenticationError{URL: loginURL, Err: err}
	}
	if err := page.SetValue(ctx, selLoginPassword, a.password); err != nil {
		return &AuthenticationError{URL: loginURL, Err: err}
	}
	if err := page.Click(ctx, selLoginSubmit); err != nil {
		return &AuthenticationError{URL: loginURL, Err: err}
	}

	loc, err := a.waitForCorpArea(ctx, page)
	if err == nil {
		a.logger.Info("portal login succeeded", zap.String("url", loc))
		return nil
	}
	if ctx.Err() != nil {
		return &AuthenticationError{URL: loc, Err: ctx.Err()}
	}

	// Redirects after login vary; a page without the form counts as logged in.
	if !a.loginFormPresent(ctx, page) {
		a.logger.Warn("post-login URL not recognised, login form is gone", zap.String("url", loc))
		return nil
	}
	return &AuthenticationError{URL: loc, Err: errors.New("login form still present after submit")}
}

func (a *Authenticator) waitForCorpArea(ctx context.Context, page Page) (string, error) {
	deadline := time.Now().Add(a.timeouts.Login)
	interval := min(loginPollInterval, a.timeouts.Login)

	var loc string
	for {
		current, err := page.Location(ctx)
		if err == nil {
			loc = current
			if IsCorpURL(loc) && !IsLoginURL(loc) {
				return loc, nil
			}
		}
		if time.Now().After(deadline) {
			return loc, browser.ErrTimeout
		}

		select {
		case <-ctx.Done():
			return loc, ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (a *Authenticator) loginFormPresent(ctx context.Context, page Page) bool {
	html, err := page.HTML(ctx)
	if err != nil {
		return true
	}
	doc, err := extract.Parse(html)
	if err != nil {
		return true
	}
	if doc.Find(selLoginID).Length() > 0 || doc.Find(selLoginPassword).Length() > 0 {
		return true
	}
	return strings.Contains(html, "login-form")
}
