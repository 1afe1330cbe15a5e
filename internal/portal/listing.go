package portal

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/recruit-ops/resume-collector/internal/cascade"
	"github.com/recruit-ops/resume-collector/internal/extract"
)

// Posting is one active posting on the listing page.
type Posting struct {
	ID    string // listing ID, the persistence key
	Title string
	// ApplicantID is the ID the applicant list answers to. It normally
	// equals ID but the portal sometimes redirects to a different one.
	ApplicantID string
	// IDStrategy names the strategy that found ID.
	IDStrategy string
}

// ApplicantPostingID returns the ID to open the applicant list with.
func (p Posting) ApplicantPostingID() string {
	if p.ApplicantID != "" {
		return p.ApplicantID
	}
	return p.ID
}

// Diverged reports whether the applicant-facing ID differs from the listing ID.
func (p Posting) Diverged() bool {
	return p.ApplicantID != "" && p.ApplicantID != p.ID
}

var (
	digitsOnly  = regexp.MustCompile(`^\d+$`)
	digitRun    = regexp.MustCompile(`\d+`)
	bareLongNum = regexp.MustCompile(`(?:^|\D)(\d{6,})(?:\D|$)`)
	inlineField = regexp.MustCompile(`(?i)(?:gno|gi_no|gino|ginum|jobno|recruitno)['"]?\s*[:=,(]\s*['"]?(\d{4,})`)
)

// hrefPatterns are tried across every anchor in an item, one pattern at a time.
var hrefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/Recruit/GI_Read/(\d+)`),
	regexp.MustCompile(`[?&]GI_No=(\d+)`),
	regexp.MustCompile(`javascript:[^(]*\(\s*['"]?(\d{6,})`),
	regexp.MustCompile(`[?&]Gno=(\d+)`),
}

var dataIDAttrs = []string{"data-gno", "data-gino", "data-gi-no", "data-gi_no"}

const titlePlaceholder = "제목 없음"

// postingIDChain finds a posting ID inside one listing item.
var postingIDChain = []cascade.Strategy[*goquery.Selection, string]{
	{Name: "data-attribute", Fn: idFromDataAttrs},
	{Name: "label-span", Fn: idFromLabel},
	{Name: "href", Fn: idFromHrefs},
	{Name: "inline-script", Fn: idFromInlineFields},
	{Name: "text-scan", Fn: idFromText},
}

func idFromDataAttrs(item *goquery.Selection) (string, bool) {
	for _, attr := range dataIDAttrs {
		var id string
		item.Find("button[" + attr + "], a[" + attr + "], [" + attr + "]").AddSelection(item).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if v, ok := s.Attr(attr); ok && digitsOnly.MatchString(strings.TrimSpace(v)) {
				id = strings.TrimSpace(v)
				return false
			}
			return true
		})
		if id != "" {
			return id, true
		}
	}
	return "", false
}

func idFromLabel(item *goquery.Selection) (string, bool) {
	label := item.Find(".date:contains('공고번호') > span, span:contains('공고번호') + span").First()
	if label.Length() == 0 {
		return "", false
	}
	m := digitRun.FindString(label.Text())
	return m, m != ""
}

func idFromHrefs(item *goquery.Selection) (string, bool) {
	var hrefs []string
	item.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		hrefs = append(hrefs, a.AttrOr("href", ""))
	})
	for _, re := range hrefPatterns {
		for _, h := range hrefs {
			if m := re.FindStringSubmatch(h); m != nil {
				return m[1], true
			}
		}
	}
	return "", false
}

func idFromInlineFields(item *goquery.Selection) (string, bool) {
	var id string
	item.Find("*").AddSelection(item).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, node := range s.Nodes {
			for _, attr := range node.Attr {
				if m := inlineField.FindStringSubmatch(attr.Key + "=" + attr.Val); m != nil {
					id = m[1]
					return false
				}
			}
		}
		return true
	})
	if id == "" {
		item.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if m := inlineField.FindStringSubmatch(s.Text()); m != nil {
				id = m[1]
				return false
			}
			return true
		})
	}
	return id, id != ""
}

func idFromText(item *goquery.Selection) (string, bool) {
	m := bareLongNum.FindStringSubmatch(item.Text())
	if m == nil {
		return "", false
	}
	return m[1], true
}

func postingTitle(item *goquery.Selection) (string, bool) {
	for _, sel := range listingTitleSelectors {
		found := false
		var title string
		item.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			t := extract.Normalize(s.Text())
			if t != "" && t != titlePlaceholder && cascade.Len(t) > 3 {
				title, found = t, true
				return false
			}
			return true
		})
		if found {
			return title, true
		}
	}
	return "", false
}

// Scanner reads the active posting listing.
type Scanner struct {
	urls        URLs
	timeouts    Timeouts
	resolveIDs  bool
	maxPostings int
	logger      *zap.Logger
}

// ScannerOptions tunes a Scanner.
type ScannerOptions struct {
	// ResolveApplicantIDs visits each posting's applicant list to learn the
	// ID it answers to.
	ResolveApplicantIDs bool
	// MaxPostings caps how many postings are returned. Zero means all.
	MaxPostings int
}

// NewScanner creates a listing scanner.
func NewScanner(urls URLs, timeouts Timeouts, opts ScannerOptions, logger *zap.Logger) *Scanner {
	return &Scanner{
		urls:        urls,
		timeouts:    timeouts.withDefaults(),
		resolveIDs:  opts.ResolveApplicantIDs,
		maxPostings: opts.MaxPostings,
		logger:      logger,
	}
}

// Scan returns the active postings in listing order. It fails only when the
// listing page itself cannot be loaded.
func (s *Scanner) Scan(ctx context.Context, page Page) ([]Posting, error) {
	items, err := s.acquire(ctx, page)
	if err != nil {
		return nil, err
	}
	s.logger.Info("listing loaded", zap.Int("items", items.Length()))

	postings := []Posting{}
	resolve := s.resolveIDs
	for i := 0; i < items.Length(); i++ {
		if s.maxPostings > 0 && len(postings) >= s.maxPostings {
			break
		}

		item := items.Eq(i)
		id, strategy, ok := cascade.FirstMatch(item, postingIDChain)
		if !ok {
			s.logger.Warn("skipping listing item without posting ID", zap.Int("row", i+1))
			continue
		}
		title, ok := postingTitle(item)
		if !ok {
			s.logger.Warn("skipping listing item without title", zap.Int("row", i+1), zap.String("posting_id", id))
			continue
		}

		p := Posting{ID: id, Title: title, IDStrategy: strategy}
		s.logger.Debug("listing item",
			zap.Int("row", i+1),
			zap.String("posting_id", id),
			zap.String("strategy", strategy),
			zap.String("title", title))

		if resolve {
			p.ApplicantID = s.resolveApplicantID(ctx, page, id)
			// Leaving the listing invalidates what we read; come back and re-query.
			reacquired, err := s.acquire(ctx, page)
			if err != nil {
				s.logger.Warn("could not return to listing, keeping listing IDs for the rest",
					zap.String("posting_id", id), zap.Error(err))
				resolve = false
			} else {
				items = reacquired
			}
		}
		postings = append(postings, p)
	}
	return postings, nil
}

// acquire loads the listing and returns its items. An empty listing is not
// an error.
func (s *Scanner) acquire(ctx context.Context, page Page) (*goquery.Selection, error) {
	listURL := s.urls.Listing()
	if err := page.Navigate(ctx, listURL); err != nil {
		return nil, &NavigationError{URL: listURL, Err: err}
	}
	if loc, err := page.Location(ctx); err == nil && IsLoginURL(loc) {
		return nil, &NavigationError{URL: listURL, Err: ErrSessionExpired}
	}

	waitSel := strings.Join(listingItemSelectors, ", ")
	if err := page.WaitVisible(ctx, waitSel, s.timeouts.Navigation); err != nil {
		if ctx.Err() != nil {
			return nil, &NavigationError{URL: listURL, Err: ctx.Err()}
		}
		s.logger.Info("listing has no posting items", zap.Error(err))
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, &NavigationError{URL: listURL, Err: err}
	}
	doc, err := extract.Parse(html)
	if err != nil {
		return nil, &NavigationError{URL: listURL, Err: err}
	}

	for _, sel := range listingItemSelectors {
		if items := doc.Find(sel); items.Length() > 0 {
			return items, nil
		}
	}
	return doc.Find(listingItemSelectors[0]), nil
}

// resolveApplicantID opens the posting's applicant list and reports the
// posting ID the portal settled on. Any failure keeps the listing ID.
func (s *Scanner) resolveApplicantID(ctx context.Context, page Page, postingID string) string {
	target := s.urls.ApplicantList(postingID)
	if err := page.Navigate(ctx, target); err != nil {
		s.logger.Debug("applicant ID lookup failed", zap.String("posting_id", postingID), zap.Error(err))
		return postingID
	}
	loc, err := page.Location(ctx)
	if err != nil || IsLoginURL(loc) {
		return postingID
	}
	resolved := queryParam(loc, "GI_No", "Gno", "gno")
	if resolved == "" || !digitsOnly.MatchString(resolved) {
		return postingID
	}
	if resolved != postingID {
		s.logger.Warn("applicant-facing posting ID differs from listing ID",
			zap.String("posting_id", postingID),
			zap.String("applicant_posting_id", resolved))
	}
	return resolved
}
