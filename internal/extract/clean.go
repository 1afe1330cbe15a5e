// Package extract turns portal HTML into text and Markdown. Everything here
// works on goquery documents and has no browser dependency.
package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// noiseSelector removes elements that never carry posting content.
const noiseSelector = "script, style, noscript, nav, header, footer, aside, iframe, form, button, svg, " +
	".ad, .ads, .advertisement, [class*='banner'], [class*='advert'], [class^='ad-'], [class*=' ad-'], " +
	".popup, .sns, .share, .btnArea, .btn-area, #gnb, .gnb, .lnb, .cookie-banner, .sidebar"

// ContentSelectors locate the posting body, most specific first.
var ContentSelectors = []string{
	".artReadDetail",
	".artReadJobSum",
	"#devContentArea",
	".secReadDetail",
	".view-content",
	".detail-content",
	"#detail-content",
	".recruitment-content",
	"main",
	"article",
	".content",
	"#content",
}

var spaceRun = regexp.MustCompile(`[ \t\x{00A0}\x{3000}]+`)

// Parse parses html into a document.
func Parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// Clean strips noise elements in place and turns <br> into line breaks.
func Clean(doc *goquery.Document) {
	doc.Find(noiseSelector).Remove()
	doc.Find("br").ReplaceWithHtml("\n")
}

// MainContainer returns the first content container that exists, or body.
func MainContainer(doc *goquery.Document, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if found := doc.Find(sel); found.Length() > 0 {
			if strings.TrimSpace(found.First().Text()) != "" {
				return found.First()
			}
		}
	}
	return doc.Find("body")
}

// Normalize applies NFC, folds full-width forms and collapses spaces.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = width.Fold.String(s)
	s = spaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CleanWhitespace trims every line and drops empty ones.
func CleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = Normalize(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}

// MainText returns the cleaned text of the posting body.
func MainText(html string) (string, error) {
	doc, err := Parse(html)
	if err != nil {
		return "", err
	}
	Clean(doc)
	return CleanWhitespace(MainContainer(doc, ContentSelectors).Text()), nil
}

// HTMLForAI strips noise from html and caps it at maxBytes without
// splitting a UTF-8 sequence.
func HTMLForAI(html string, maxBytes int) (string, error) {
	doc, err := Parse(html)
	if err != nil {
		return "", err
	}
	doc.Find(noiseSelector).Remove()
	doc.Find("*").RemoveAttr("style").RemoveAttr("onclick")

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}
	return Truncate(out, maxBytes), nil
}

// Truncate cuts s to at most maxBytes on a rune boundary.
func Truncate(s string, maxBytes int) string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// TruncateRunes cuts s to at most n characters.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// isNoiseOnly reports lines made of digits, punctuation and symbols only.
func isNoiseOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && !unicode.IsPunct(r) && !unicode.IsSymbol(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
