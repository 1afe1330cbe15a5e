// Package portal scrapes the recruiting portal: login, the active posting
// listing, posting detail pages, applicant lists and resume views.
//
// Components read the page as an HTML snapshot and run goquery strategy
// chains over it. Only navigation, clicks and script probes touch the live
// page, so everything can be exercised against browsertest.Site.
package portal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/recruit-ops/resume-collector/internal/browser"
)

// Page is the browser surface portal components drive.
type Page = browser.Page

var (
	// ErrSessionExpired is returned when a navigation lands on the login page.
	ErrSessionExpired = errors.New("portal session expired")
	// ErrAlreadyKnown is returned when the applicant opened turns out to be
	// stored or collected already.
	ErrAlreadyKnown = errors.New("applicant already collected")
)

// AuthenticationError is returned when login could not be confirmed.
type AuthenticationError struct {
	URL string
	Err error
}

func (e *AuthenticationError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("portal login failed (at %s): %v", e.URL, e.Err)
	}
	return fmt.Sprintf("portal login failed: %v", e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// NavigationError is returned when a page the pipeline depends on cannot be loaded.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ExtractionError is returned when a record cannot be produced from a page.
type ExtractionError struct {
	What      string
	PostingID string
	Err       error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract %s for posting %s: %v", e.What, e.PostingID, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Timeouts bounds waits against the portal.
type Timeouts struct {
	Navigation time.Duration // full page loads
	Probe      time.Duration // optimistic per-element probes
	Login      time.Duration // post-login redirect
}

// DefaultTimeouts returns the timeouts used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Navigation: 30 * time.Second,
		Probe:      3 * time.Second,
		Login:      15 * time.Second,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Navigation <= 0 {
		t.Navigation = d.Navigation
	}
	if t.Probe <= 0 {
		t.Probe = d.Probe
	}
	if t.Login <= 0 {
		t.Login = d.Login
	}
	return t
}

// DefaultBaseURL is the portal's address.
const DefaultBaseURL = "https://www.jobkorea.co.kr"

// URLs builds portal addresses from a base URL.
type URLs struct {
	Base string
}

// NewURLs trims a trailing slash from base; empty means DefaultBaseURL.
func NewURLs(base string) URLs {
	if base == "" {
		base = DefaultBaseURL
	}
	return URLs{Base: strings.TrimRight(base, "/")}
}

func (u URLs) Login() string {
	return u.Base + "/Login/Login_Tot.asp?rDBName=GG&re_url=/"
}

func (u URLs) Listing() string {
	return u.Base + "/Corp/GIMng/List?PubType=1&SrchStat=1"
}

// PostingContent is the body-only view of a posting.
func (u URLs) PostingContent(postingID string) string {
	return u.Base + "/Recruit/GI_Read_Comt_Ifrm?Gno=" + url.QueryEscape(postingID)
}

// PostingRead is the full posting page.
func (u URLs) PostingRead(postingID string) string {
	return u.Base + "/Recruit/GI_Read/" + url.PathEscape(postingID)
}

func (u URLs) ApplicantList(postingID string) string {
	return u.Base + "/Corp/Applicant/list?GI_No=" + url.QueryEscape(postingID) + "&PageCode=YN"
}

// IsLoginURL reports whether u is one of the portal's login pages.
func IsLoginURL(u string) bool {
	lower := strings.ToLower(u)
	return strings.Contains(lower, "/login/") || strings.Contains(lower, "login_tot")
}

// IsCorpURL reports whether u is inside the corporate members area.
func IsCorpURL(u string) bool {
	return strings.Contains(u, "/Corp/")
}

// queryParam returns the first non-empty value among names in rawURL's query.
func queryParam(rawURL string, names ...string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	q := parsed.Query()
	for _, n := range names {
		if v := strings.TrimSpace(q.Get(n)); v != "" {
			return v
		}
	}
	return ""
}
