// Package browsertest provides an in-memory browser.Page backed by static
// HTML, for testing scrapers without Chrome.
package browsertest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/recruit-ops/resume-collector/internal/browser"
)

const blankHTML = "<html><head></head><body></body></html>"

// ClickResult describes what a click leads to.
type ClickResult struct {
	URL   string
	Popup bool
}

// ClickFunc decides the outcome of clicking a selector. values holds what
// has been typed into inputs so far, keyed by selector.
type ClickFunc func(current string, values map[string]string) ClickResult

// EvalFunc answers Evaluate calls.
type EvalFunc func(current, expr string) (any, error)

// Site is a fake website. Pages are keyed by absolute URL.
type Site struct {
	mu         sync.Mutex
	pages      map[string]string
	redirects  map[string]string
	navErrors  map[string]error
	pdfErrors  map[string]error
	clicks     map[string]ClickFunc
	values     map[string]string
	eval       EvalFunc
	onNavigate func(rawURL string)
	visits     []string
	pdfs       []string
	openPopups int
}

// New creates an empty site.
func New() *Site {
	return &Site{
		pages:     make(map[string]string),
		redirects: make(map[string]string),
		navErrors: make(map[string]error),
		pdfErrors: make(map[string]error),
		clicks:    make(map[string]ClickFunc),
		values:    make(map[string]string),
	}
}

// Handle serves html at rawURL.
func (s *Site) Handle(rawURL, html string) {
	s.mu.Lock()
	s.pages[rawURL] = html
	s.mu.Unlock()
}

// Redirect makes navigation to from land on to.
func (s *Site) Redirect(from, to string) {
	s.mu.Lock()
	s.redirects[from] = to
	s.mu.Unlock()
}

// FailNavigation makes navigation to rawURL return err.
func (s *Site) FailNavigation(rawURL string, err error) {
	s.mu.Lock()
	s.navErrors[rawURL] = err
	s.mu.Unlock()
}

// FailPDF makes printing rawURL return err.
func (s *Site) FailPDF(rawURL string, err error) {
	s.mu.Lock()
	s.pdfErrors[rawURL] = err
	s.mu.Unlock()
}

// OnClick registers the outcome of clicking sel. Without a handler a click
// follows the element's href, opening a popup when target="_blank".
func (s *Site) OnClick(sel string, fn ClickFunc) {
	s.mu.Lock()
	s.clicks[sel] = fn
	s.mu.Unlock()
}

// OnEvaluate installs the script evaluator.
func (s *Site) OnEvaluate(fn EvalFunc) {
	s.mu.Lock()
	s.eval = fn
	s.mu.Unlock()
}

// OnNavigate calls fn after every navigation with the URL landed on. Tests
// use it to reset page state a real reload would lose.
func (s *Site) OnNavigate(fn func(rawURL string)) {
	s.mu.Lock()
	s.onNavigate = fn
	s.mu.Unlock()
}

// Visits lists every URL navigated to, after redirects.
func (s *Site) Visits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visits...)
}

// Printed lists the URLs that were printed to PDF.
func (s *Site) Printed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.pdfs...)
}

// OpenPopups reports popups opened and not yet closed.
func (s *Site) OpenPopups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openPopups
}

// Value returns what was typed into sel.
func (s *Site) Value(sel string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[sel]
}

// NewPage opens the main tab on about:blank.
func (s *Site) NewPage() *Page {
	return &Page{site: s, tab: &tabState{url: "about:blank"}}
}

func (s *Site) resolve(rawURL string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < 5; i++ {
		if err, ok := s.navErrors[rawURL]; ok {
			return "", err
		}
		next, ok := s.redirects[rawURL]
		if !ok {
			break
		}
		rawURL = next
	}
	s.visits = append(s.visits, rawURL)
	return rawURL, nil
}

func (s *Site) html(rawURL string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.pages[rawURL]; ok {
		return h
	}
	return blankHTML
}

type tabState struct {
	url string
}

type pageKind int

const (
	kindMain pageKind = iota
	kindPopup
	kindSameTab
)

// Page implements browser.Page over a Site.
type Page struct {
	site     *Site
	tab      *tabState
	kind     pageKind
	returnTo string
	closed   bool
}

var _ browser.Page = (*Page)(nil)

func (p *Page) Navigate(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	final, err := p.site.resolve(rawURL)
	if err != nil {
		return err
	}
	p.tab.url = final

	p.site.mu.Lock()
	hook := p.site.onNavigate
	p.site.mu.Unlock()
	if hook != nil {
		hook(final)
	}
	return nil
}

func (p *Page) Location(ctx context.Context) (string, error) {
	return p.tab.url, ctx.Err()
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	return p.site.html(p.tab.url), ctx.Err()
}

func (p *Page) find(sel string) (*goquery.Selection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.site.html(p.tab.url)))
	if err != nil {
		return nil, err
	}
	found := doc.Find(sel)
	if found.Length() == 0 {
		return nil, fmt.Errorf("%w: %s not found on %s", browser.ErrTimeout, sel, p.tab.url)
	}
	return found.First(), nil
}

func (p *Page) WaitVisible(ctx context.Context, sel string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.find(sel)
	return err
}

func (p *Page) clickTarget(sel string) (ClickResult, error) {
	el, err := p.find(sel)
	if err != nil {
		return ClickResult{}, err
	}

	p.site.mu.Lock()
	fn, ok := p.site.clicks[sel]
	values := make(map[string]string, len(p.site.values))
	for k, v := range p.site.values {
		values[k] = v
	}
	p.site.mu.Unlock()

	if ok {
		return fn(p.tab.url, values), nil
	}

	href, _ := el.Attr("href")
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ClickResult{}, nil
	}
	target, _ := el.Attr("target")
	return ClickResult{URL: p.absolute(href), Popup: target == "_blank"}, nil
}

func (p *Page) absolute(href string) string {
	base, err := url.Parse(p.tab.url)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func (p *Page) Click(ctx context.Context, sel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := p.clickTarget(sel)
	if err != nil {
		return err
	}
	if res.URL == "" || res.Popup {
		return nil
	}
	return p.Navigate(ctx, res.URL)
}

func (p *Page) SetValue(ctx context.Context, sel, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.find(sel); err != nil {
		return err
	}
	p.site.mu.Lock()
	p.site.values[sel] = value
	p.site.mu.Unlock()
	return nil
}

func (p *Page) Evaluate(ctx context.Context, expr string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.site.mu.Lock()
	fn := p.site.eval
	p.site.mu.Unlock()
	if fn == nil {
		return fmt.Errorf("evaluate not supported")
	}

	v, err := fn(p.tab.url, expr)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (p *Page) OpenFrom(ctx context.Context, sel string, _ time.Duration) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := p.clickTarget(sel)
	if err != nil {
		return nil, err
	}
	if res.URL == "" {
		return nil, fmt.Errorf("%w: nothing opened from %s", browser.ErrTimeout, sel)
	}

	if res.Popup {
		popup := &Page{site: p.site, tab: &tabState{url: "about:blank"}, kind: kindPopup}
		if err := popup.Navigate(ctx, res.URL); err != nil {
			return nil, err
		}
		p.site.mu.Lock()
		p.site.openPopups++
		p.site.mu.Unlock()
		return popup, nil
	}

	before := p.tab.url
	if err := p.Navigate(ctx, res.URL); err != nil {
		return nil, err
	}
	return &Page{site: p.site, tab: p.tab, kind: kindSameTab, returnTo: before}, nil
}

func (p *Page) PDF(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	if err, ok := p.site.pdfErrors[p.tab.url]; ok {
		return nil, err
	}
	p.site.pdfs = append(p.site.pdfs, p.tab.url)
	return []byte("%PDF-1.4 fake " + p.tab.url), nil
}

func (p *Page) Close(ctx context.Context) error {
	if p.closed {
		return nil
	}
	p.closed = true

	switch p.kind {
	case kindPopup:
		p.site.mu.Lock()
		p.site.openPopups--
		p.site.mu.Unlock()
	case kindSameTab:
		if p.returnTo != "" {
			return p.Navigate(ctx, p.returnTo)
		}
	}
	return nil
}
