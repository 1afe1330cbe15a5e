package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Section is a titled list of content lines.
type Section struct {
	Name  string
	Lines []string
}

// Posting is the structured form of a posting body.
type Posting struct {
	ID       string
	Title    string
	Sections []Section
}

// walkSelector lists the elements visited by the structured walk.
const walkSelector = "h1, h2, h3, h4, h5, h6, p, li, dt, dd, th, td"

// leafSelector marks container elements whose text is covered by children.
const leafSelector = "p, li, dt, dd, ul, ol, dl, table, h1, h2, h3, h4, h5, h6"

type sectionBuilder struct {
	order []string
	lines map[string][]string
	seen  map[string]map[string]bool
	cur   string
}

func newSectionBuilder() *sectionBuilder {
	return &sectionBuilder{
		lines: make(map[string][]string),
		seen:  make(map[string]map[string]bool),
		cur:   DefaultSection,
	}
}

func (b *sectionBuilder) start(name string) {
	b.cur = name
}

func (b *sectionBuilder) add(line string) {
	if b.seen[b.cur] == nil {
		b.seen[b.cur] = make(map[string]bool)
		b.order = append(b.order, b.cur)
	}
	if b.seen[b.cur][line] {
		return
	}
	b.seen[b.cur][line] = true
	b.lines[b.cur] = append(b.lines[b.cur], line)
}

func (b *sectionBuilder) sections() []Section {
	out := make([]Section, 0, len(b.order))
	for _, name := range b.order {
		if len(b.lines[name]) == 0 {
			continue
		}
		out = append(out, Section{Name: name, Lines: b.lines[name]})
	}
	return out
}

// feed classifies one line of text as a header or content.
func (b *sectionBuilder) feed(raw string, allowLong bool) {
	line := trimBullet(Normalize(raw))
	if line == "" {
		return
	}
	if name, ok := MatchSection(line); ok {
		b.start(name)
		return
	}
	if name, rest, ok := SplitInlineHeader(line); ok {
		b.start(name)
		line = trimBullet(rest)
	}
	if keepLine(line, allowLong) {
		b.add(line)
	}
}

// Structured walks the posting body's block elements and groups their text
// into sections. The result depends only on html, so repeated runs over the
// same document agree.
func Structured(html, postingID, title string) (Posting, error) {
	doc, err := Parse(html)
	if err != nil {
		return Posting{}, err
	}
	Clean(doc)

	if title == "" {
		title = documentTitle(doc)
	}

	b := newSectionBuilder()
	root := MainContainer(doc, ContentSelectors)
	root.Find(walkSelector).Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		isHeading := len(tag) == 2 && tag[0] == 'h'
		if !isHeading && s.Find(leafSelector).Length() > 0 {
			return
		}
		for _, line := range strings.Split(s.Text(), "\n") {
			b.feed(line, tag == "dd")
		}
	})

	return Posting{ID: postingID, Title: title, Sections: b.sections()}, nil
}

// documentTitle finds a title when the caller has none.
func documentTitle(doc *goquery.Document) string {
	for _, sel := range []string{".tit", "h1", "h2", "title"} {
		if t := Normalize(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

// HasNamedSections reports whether anything beyond the default bucket was found.
func (p Posting) HasNamedSections() bool {
	for _, s := range p.Sections {
		if s.Name != DefaultSection {
			return true
		}
	}
	return false
}
