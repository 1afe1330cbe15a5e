package extract

import (
	"regexp"
	"strings"
)

// inlineHeader finds section names embedded in running text, such as
// "... 담당업무: API 개발 자격요건: 3년 이상".
var inlineHeader = buildInlineHeader()

func buildInlineHeader() *regexp.Regexp {
	var alts []string
	for _, def := range vocabulary {
		for _, alias := range def.aliases {
			if len([]rune(alias)) < 4 {
				continue
			}
			alts = append(alts, regexp.QuoteMeta(alias))
		}
	}
	return regexp.MustCompile(`([■□●◆▶※\[【]?\s*(?:` + strings.Join(alts, "|") + `)\s*[\]】]?\s*[:：])`)
}

var sentenceBreak = regexp.MustCompile(`([.!?。])\s+`)

// Heuristic segments the flattened posting text by section keywords. It
// catches bodies rendered as one long text block where the structured walk
// finds no usable elements.
func Heuristic(html, postingID, title string) (Posting, error) {
	doc, err := Parse(html)
	if err != nil {
		return Posting{}, err
	}
	Clean(doc)
	if title == "" {
		title = documentTitle(doc)
	}

	text := CleanWhitespace(MainContainer(doc, ContentSelectors).Text())
	text = inlineHeader.ReplaceAllString(text, "\n$1")

	b := newSectionBuilder()
	for _, line := range strings.Split(text, "\n") {
		for _, piece := range splitLong(line) {
			b.feed(piece, false)
		}
	}

	p := Posting{ID: postingID, Title: title, Sections: b.sections()}
	if !p.HasNamedSections() {
		return Posting{ID: postingID, Title: title}, nil
	}
	return p, nil
}

// splitLong breaks overlong lines at sentence ends so they survive the
// length filter.
func splitLong(line string) []string {
	if len([]rune(line)) <= MaxLineLength {
		return []string{line}
	}
	marked := sentenceBreak.ReplaceAllString(line, "$1\n")
	return strings.Split(marked, "\n")
}
