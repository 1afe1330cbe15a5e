package artifacts

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ResumeMeta is printed at the top of a resume's Markdown.
type ResumeMeta struct {
	ApplicantName   string
	PostingID       string
	PostingTitle    string
	ResumeID        string
	PDFURL          string
	ApplicationDate string
}

// PDFText extracts the plain text embedded in a PDF.
func PDFText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract PDF text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}
	return buf.String(), nil
}

// ResumeMarkdown wraps extracted resume text in a small Markdown document.
func ResumeMarkdown(meta ResumeMeta, text string) string {
	var sb strings.Builder
	name := meta.ApplicantName
	if name == "" {
		name = "지원자"
	}
	fmt.Fprintf(&sb, "# %s 이력서\n\n", name)
	fmt.Fprintf(&sb, "- **채용공고:** %s (%s)\n", meta.PostingTitle, meta.PostingID)
	if meta.ResumeID != "" {
		fmt.Fprintf(&sb, "- **이력서 번호:** %s\n", meta.ResumeID)
	}
	if meta.ApplicationDate != "" {
		fmt.Fprintf(&sb, "- **지원일:** %s\n", meta.ApplicationDate)
	}
	if meta.PDFURL != "" {
		fmt.Fprintf(&sb, "- **PDF:** %s\n", meta.PDFURL)
	}
	sb.WriteString("\n## 이력서 원문\n\n")
	sb.WriteString(strings.TrimSpace(text))
	sb.WriteString("\n")
	return sb.String()
}

// PDFToMarkdown converts a resume PDF into its Markdown companion.
func PDFToMarkdown(data []byte, meta ResumeMeta) (string, error) {
	text, err := PDFText(data)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("PDF contains no extractable text")
	}
	return ResumeMarkdown(meta, text), nil
}
