package portal

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/recruit-ops/resume-collector/internal/cascade"
	"github.com/recruit-ops/resume-collector/internal/extract"
)

// MaxEmptyRows is how many consecutive ID-less rows past the expected table
// length end enumeration.
const MaxEmptyRows = 5

// Known answers whether an applicant was collected already.
type Known interface {
	Contains(resumeID string) bool
}

// Applicant is a new applicant row on a posting's applicant list.
type Applicant struct {
	ResumeID string
	Row      int    // 1-based row number
	Link     string // selector that opens the resume
	Strategy string // strategy that found ResumeID
}

// rowProbe is what a row ID strategy sees.
type rowProbe struct {
	ctx     context.Context
	page    Page
	row     *goquery.Selection
	index   int // 0-based position among applicant rows
	timeout time.Duration
}

var applicantIDChain = []cascade.Strategy[rowProbe, string]{
	{Name: "data-rno", Fn: rowIDDirect},
	{Name: "data-applyinfo", Fn: rowIDComposite},
	{Name: "alt-attribute", Fn: rowIDAlternate},
	{Name: "script-probe", Fn: rowIDScript},
	{Name: "href", Fn: rowIDHref},
}

func attrDigits(s *goquery.Selection, attr string) (string, bool) {
	v, ok := s.Attr(attr)
	v = strings.TrimSpace(v)
	if !ok || !digitsOnly.MatchString(v) {
		return "", false
	}
	return v, true
}

func rowIDDirect(p rowProbe) (string, bool) {
	if v, ok := attrDigits(p.row, "data-rno"); ok {
		return v, true
	}
	return attrDigits(p.row.Find("[data-rno]").First(), "data-rno")
}

// rowIDComposite decodes data-applyinfo="<posting>|<resume>|<flags>".
func rowIDComposite(p rowProbe) (string, bool) {
	el := p.row
	if _, ok := el.Attr("data-applyinfo"); !ok {
		el = p.row.Find("[data-applyinfo]").First()
	}
	v, ok := el.Attr("data-applyinfo")
	if !ok {
		return "", false
	}
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == '|' || r == ',' })
	if len(parts) < 2 {
		return "", false
	}
	id := strings.TrimSpace(parts[1])
	return id, digitsOnly.MatchString(id)
}

func rowIDAlternate(p rowProbe) (string, bool) {
	for _, attr := range []string{"data-resume-no", "data-resumeno", "data-rsmno"} {
		if v, ok := attrDigits(p.row, attr); ok {
			return v, true
		}
		if v, ok := attrDigits(p.row.Find("["+attr+"]").First(), attr); ok {
			return v, true
		}
	}
	return attrDigits(p.row.Find("input[type='checkbox'][name*='RNo'], input[type='checkbox'][name*='rNo']").First(), "value")
}

const rowProbeScript = `(() => {
	const row = document.querySelectorAll(%q)[%d];
	if (!row) return "";
	for (const el of [row, ...row.querySelectorAll("*")]) {
		for (const key of ["rNo", "rno", "resumeNo", "resumeno"]) {
			if (el.dataset && el.dataset[key]) return String(el.dataset[key]);
		}
	}
	return "";
})()`

func rowIDScript(p rowProbe) (string, bool) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	var v string
	if err := p.page.Evaluate(ctx, fmt.Sprintf(rowProbeScript, selApplicantRows, p.index), &v); err != nil {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, digitsOnly.MatchString(v)
}

func rowIDHref(p rowProbe) (string, bool) {
	var id string
	p.row.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := a.AttrOr("href", "")
		if !strings.Contains(href, "?") {
			return true
		}
		if v := queryParam(href, resumeIDParams...); digitsOnly.MatchString(v) {
			id = v
			return false
		}
		return true
	})
	return id, id != ""
}

// Enumerator lists a posting's new applicants.
type Enumerator struct {
	urls     URLs
	timeouts Timeouts
	pageSize int
	logger   *zap.Logger
}

// NewEnumerator creates an enumerator that tries to show pageSize rows per page.
func NewEnumerator(urls URLs, timeouts Timeouts, pageSize int, logger *zap.Logger) *Enumerator {
	return &Enumerator{
		urls:     urls,
		timeouts: timeouts.withDefaults(),
		pageSize: pageSize,
		logger:   logger,
	}
}

// Enumerate opens the applicant list for applicantPostingID and returns the
// rows whose resume IDs are not in known, in row order. It never opens a
// resume itself.
func (e *Enumerator) Enumerate(ctx context.Context, page Page, applicantPostingID string, known Known) ([]Applicant, error) {
	listURL := e.urls.ApplicantList(applicantPostingID)
	if err := page.Navigate(ctx, listURL); err != nil {
		return nil, &NavigationError{URL: listURL, Err: err}
	}
	if loc, err := page.Location(ctx); err == nil && IsLoginURL(loc) {
		return nil, ErrSessionExpired
	}

	if err := page.WaitVisible(ctx, selApplicantRows, e.timeouts.Navigation); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Info("no applicant rows", zap.String("posting_id", applicantPostingID))
		return []Applicant{}, nil
	}

	e.widenPageSize(ctx, page)

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, &NavigationError{URL: listURL, Err: err}
	}
	doc, err := extract.Parse(html)
	if err != nil {
		return nil, err
	}

	rows := doc.Find(selApplicantRows)
	expected := expectedRows(doc, rows.Length())

	out := []Applicant{}
	seen := make(map[string]bool)
	empty := 0
	for i := 0; i < rows.Length(); i++ {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}

		row := rows.Eq(i)
		id, strategy, ok := cascade.FirstMatch(rowProbe{
			ctx: ctx, page: page, row: row, index: i, timeout: e.timeouts.Probe,
		}, applicantIDChain)
		if !ok {
			empty++
			if i+1 > expected && empty >= MaxEmptyRows {
				e.logger.Info("stopping at empty rows past table length",
					zap.String("posting_id", applicantPostingID), zap.Int("row", i+1), zap.Int("expected", expected))
				break
			}
			e.logger.Debug("row without resume ID", zap.String("posting_id", applicantPostingID), zap.Int("row", i+1))
			continue
		}
		empty = 0

		if seen[id] || (known != nil && known.Contains(id)) {
			e.logger.Debug("skipping known applicant",
				zap.String("posting_id", applicantPostingID), zap.String("resume_id", id))
			seen[id] = true
			continue
		}
		seen[id] = true

		link, ok := rowLink(row)
		if !ok {
			e.logger.Warn("applicant row has no resume link",
				zap.String("posting_id", applicantPostingID), zap.String("resume_id", id))
			continue
		}
		out = append(out, Applicant{ResumeID: id, Row: i + 1, Link: link, Strategy: strategy})
	}

	e.logger.Info("applicants enumerated",
		zap.String("posting_id", applicantPostingID),
		zap.Int("rows", rows.Length()),
		zap.Int("new", len(out)))
	return out, nil
}

// widenPageSize asks the list to show pageSize rows. Failure leaves the
// list at whatever size it had.
func (e *Enumerator) widenPageSize(ctx context.Context, page Page) {
	if e.pageSize <= 0 {
		return
	}
	option := fmt.Sprintf(pageSizeOptionFmt, e.pageSize)
	for _, opener := range pageSizeOpeners {
		if err := page.WaitVisible(ctx, opener, e.timeouts.Probe); err != nil {
			continue
		}
		if err := page.Click(ctx, opener); err != nil {
			continue
		}
		if err := page.WaitVisible(ctx, option, e.timeouts.Probe); err != nil {
			continue
		}
		if err := page.Click(ctx, option); err != nil {
			e.logger.Debug("page size option click failed", zap.Error(err))
			return
		}
		if err := page.WaitVisible(ctx, selApplicantRows, e.timeouts.Navigation); err != nil {
			e.logger.Debug("rows not back after page size change", zap.Error(err))
		}
		e.logger.Debug("page size widened", zap.Int("page_size", e.pageSize))
		return
	}
	e.logger.Debug("page size control not found, using default size")
}

// Reacquire makes a's resume link reachable on page before it is opened.
// Coming back from a resume shown in the same tab reloads the list at the
// portal's default page size, so rows past it need the list widened again.
func (e *Enumerator) Reacquire(ctx context.Context, page Page, a Applicant) error {
	if err := page.WaitVisible(ctx, a.Link, e.timeouts.Probe); err == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if loc, err := page.Location(ctx); err == nil && IsLoginURL(loc) {
		return ErrSessionExpired
	}

	e.logger.Debug("applicant row not on page, widening list again",
		zap.String("resume_id", a.ResumeID), zap.Int("row", a.Row))
	e.widenPageSize(ctx, page)
	if err := page.WaitVisible(ctx, a.Link, e.timeouts.Navigation); err != nil {
		return &NavigationError{URL: a.Link, Err: err}
	}
	return nil
}

// expectedRows reads the applicant total shown above the table, bounded by
// the rows present. Without a readable total every row counts as expected.
func expectedRows(doc *goquery.Document, rows int) int {
	text := doc.Find(selApplicantTotal).First().Text()
	m := digitRun.FindString(strings.ReplaceAll(text, ",", ""))
	if m == "" {
		return rows
	}
	n, err := strconv.Atoi(m)
	if err != nil || n > rows {
		return rows
	}
	return n
}

// rowLink builds a selector for the resume link in row.
func rowLink(row *goquery.Selection) (string, bool) {
	nth := row.Index() + 1
	if row.Find(selResumeLink).Length() > 0 {
		return fmt.Sprintf("%s:nth-child(%d) > %s", selApplicantRows, nth, selResumeLink), true
	}
	for _, alt := range resumeLinkAlts {
		if row.Find(alt).Length() > 0 {
			return fmt.Sprintf("%s:nth-child(%d) %s", selApplicantRows, nth, alt), true
		}
	}
	return "", false
}
