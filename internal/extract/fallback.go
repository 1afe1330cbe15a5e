package extract

import (
	"fmt"
	"strings"
)

// RawTextLimit caps the text kept by the raw fallback.
const RawTextLimit = 2000

// RawMarkdown wraps the first RawTextLimit characters of the page text in
// a minimal two-section document. It is the last resort when nothing
// structured could be recovered.
func RawMarkdown(html, postingID, title string) (string, error) {
	doc, err := Parse(html)
	if err != nil {
		return "", err
	}
	Clean(doc)
	if title == "" {
		title = documentTitle(doc)
	}

	text := CleanWhitespace(doc.Find("body").Text())
	text = TruncateRunes(text, RawTextLimit)

	var sb strings.Builder
	writeHeader(&sb, postingID, title)
	sb.WriteString("## 공고 원문\n\n")
	if text == "" {
		sb.WriteString("(본문을 추출하지 못했습니다)\n\n")
	} else {
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	sb.WriteString("## 추출 정보\n\n")
	sb.WriteString(fmt.Sprintf("- 구조화 추출 실패로 원문 앞부분 %d자를 저장했습니다.\n", RawTextLimit))
	return sb.String(), nil
}
