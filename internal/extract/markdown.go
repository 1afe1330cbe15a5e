package extract

import (
	"strings"
)

func writeHeader(sb *strings.Builder, postingID, title string) {
	if title == "" {
		title = "채용공고_" + postingID
	}
	sb.WriteString("# ")
	sb.WriteString(title)
	sb.WriteString("\n\n**posting_id:** ")
	sb.WriteString(postingID)
	sb.WriteString("\n\n")
}

// Markdown renders the posting with up to MaxBullets lines per section.
func (p Posting) Markdown() string {
	var sb strings.Builder
	writeHeader(&sb, p.ID, p.Title)

	for _, s := range p.Sections {
		if len(s.Lines) == 0 {
			continue
		}
		sb.WriteString("## ")
		sb.WriteString(s.Name)
		sb.WriteString("\n\n")
		for i, line := range s.Lines {
			if i == MaxBullets {
				break
			}
			sb.WriteString("- ")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// ParseSections reads "## name" blocks from Markdown and returns each
// section's lines in order, with list markers removed. Text before the first
// section header is ignored.
func ParseSections(markdown string) map[string][]string {
	out := make(map[string][]string)
	cur := ""
	for _, raw := range strings.Split(markdown, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "## "):
			cur = strings.TrimSpace(strings.TrimPrefix(line, "## "))
			if _, ok := out[cur]; !ok {
				out[cur] = []string{}
			}
		case strings.HasPrefix(line, "# "):
			cur = ""
		case cur == "" || line == "":
		default:
			item := strings.TrimSpace(strings.TrimLeft(line, "-*+ "))
			if item != "" {
				out[cur] = append(out[cur], item)
			}
		}
	}
	return out
}
