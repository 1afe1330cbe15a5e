package llm

import (
	"context"
	"fmt"

	"github.com/recruit-ops/resume-collector/internal/extract"
	"github.com/recruit-ops/resume-collector/internal/prompts"
)

// MaxPostingHTMLBytes caps the HTML sent for posting extraction.
const MaxPostingHTMLBytes = 100_000

// PostingMarkdown asks the model to rewrite a posting page as sectioned
// Markdown. The HTML is stripped of noise and size-capped first.
func PostingMarkdown(ctx context.Context, client Client, html, postingID, title string) (string, error) {
	cleaned, err := extract.HTMLForAI(html, MaxPostingHTMLBytes)
	if err != nil {
		return "", err
	}
	if title == "" {
		title = "공고 제목"
	}

	prompt, err := prompts.Render(prompts.CollectorFile, "posting-markdown", map[string]string{
		"HTML":      cleaned,
		"PostingID": postingID,
		"Title":     title,
	})
	if err != nil {
		return "", err
	}

	out, err := client.GenerateContent(ctx, prompt, TierLite)
	if err != nil {
		return "", fmt.Errorf("posting extraction failed for %s: %w", postingID, err)
	}
	return StripCodeFence(out), nil
}
