package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/recruit-ops/resume-collector/internal/extract"
	"github.com/recruit-ops/resume-collector/internal/prompts"
)

// MaxResumeMarkdownChars caps the resume text included in a review prompt.
const MaxResumeMarkdownChars = 120_000

// DefaultScore is used when the response contains no number at all.
const DefaultScore = 50

const missing = "없음"

// ReviewInput is everything the review prompt is built from.
type ReviewInput struct {
	PostingMarkdown  string
	ResumeMarkdown   string
	ApplicantName    string
	ApplicantEmail   string
	ApplicantPhone   string
	EducationSummary string
	CareerSummary    string
	ApplicationDate  string
}

// Review is the parsed model response.
type Review struct {
	Score int    `json:"score"`
	Text  string `json:"review"`
	Raw   string `json:"rawResponse"`
}

// scorePatterns are tried in order; the first capture wins.
var scorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\*\*평가 점수:\*\*\s*(-?\d+)`),
	regexp.MustCompile(`평가 점수:\s*(-?\d+)`),
	regexp.MustCompile(`점수:\s*(-?\d+)`),
	regexp.MustCompile(`(\d+)점`),
}

var firstInteger = regexp.MustCompile(`\d+`)

var reviewPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)\*\*평가 결과:\*\*\s*(.+)`),
	regexp.MustCompile(`(?s)평가 결과:\s*(.+)`),
}

// ClampScore limits n to [0, 100].
func ClampScore(n int) int {
	switch {
	case n < 0:
		return 0
	case n > 100:
		return 100
	}
	return n
}

// ParseScore reads the fit score from a review response. Labelled scores
// are preferred, then the first integer anywhere, then DefaultScore.
func ParseScore(text string) int {
	for _, re := range scorePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return ClampScore(n)
			}
		}
	}
	if m := firstInteger.FindString(text); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			return ClampScore(n)
		}
		return 100
	}
	return DefaultScore
}

// ParseReviewText returns the labelled review section, or the whole text.
func ParseReviewText(text string) string {
	for _, re := range reviewPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if body := strings.TrimSpace(m[1]); body != "" {
				return body
			}
		}
	}
	return strings.TrimSpace(text)
}

func orMissing(s string) string {
	if strings.TrimSpace(s) == "" {
		return missing
	}
	return s
}

// ApplicantSummary renders the short applicant block of the review prompt.
func ApplicantSummary(in ReviewInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "이름: %s\n", orMissing(in.ApplicantName))
	fmt.Fprintf(&sb, "이메일: %s\n", orMissing(in.ApplicantEmail))
	fmt.Fprintf(&sb, "전화번호: %s\n", orMissing(in.ApplicantPhone))
	fmt.Fprintf(&sb, "학력요약: %s\n", orMissing(in.EducationSummary))
	fmt.Fprintf(&sb, "경력요약: %s\n", orMissing(in.CareerSummary))
	fmt.Fprintf(&sb, "지원일: %s\n", orMissing(in.ApplicationDate))
	return sb.String()
}

// BuildReviewPrompt fills the review template.
func BuildReviewPrompt(in ReviewInput) (string, error) {
	posting := in.PostingMarkdown
	if strings.TrimSpace(posting) == "" {
		posting = "공고 정보 없음"
	}
	resume := extract.TruncateRunes(in.ResumeMarkdown, MaxResumeMarkdownChars)
	if strings.TrimSpace(resume) == "" {
		resume = "이력서 Markdown 전문을 사용할 수 없습니다. 위 기본 정보만 참고하세요."
	}

	return prompts.Render(prompts.CollectorFile, "resume-review", map[string]string{
		"PostingMarkdown":  posting,
		"ApplicantSummary": ApplicantSummary(in),
		"ResumeMarkdown":   resume,
	})
}

// ReviewResume scores a resume against a posting.
func ReviewResume(ctx context.Context, client Client, in ReviewInput) (*Review, error) {
	prompt, err := BuildReviewPrompt(in)
	if err != nil {
		return nil, err
	}

	text, err := client.GenerateContent(ctx, prompt, TierStandard)
	if err != nil {
		return nil, fmt.Errorf("resume review failed: %w", err)
	}

	return &Review{
		Score: ParseScore(text),
		Text:  ParseReviewText(text),
		Raw:   text,
	}, nil
}
