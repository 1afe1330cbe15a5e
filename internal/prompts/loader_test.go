package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_CollectorPrompts(t *testing.T) {
	ClearCache()

	for _, key := range []string{"posting-markdown", "resume-review"} {
		prompt, err := Get(CollectorFile, key)
		require.NoError(t, err, key)
		assert.NotEmpty(t, prompt)
	}
}

func TestGet_InvalidFile(t *testing.T) {
	ClearCache()

	_, err := Get("nonexistent.json", "some-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	ClearCache()

	_, err := Get(CollectorFile, "nonexistent-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFormat(t *testing.T) {
	got := Format("Hello {{.Name}}, id {{.ID}} {{.Missing}}", map[string]string{
		"Name": "지원자",
		"ID":   "42",
	})
	assert.Equal(t, "Hello 지원자, id 42 {{.Missing}}", got)
}

func TestFormat_ValuesAreNotReexpanded(t *testing.T) {
	got := Format("{{.A}} {{.B}}", map[string]string{"A": "{{.B}}", "B": "b"})
	assert.Equal(t, "{{.B}} b", got)
}

func TestRender_ReviewPrompt(t *testing.T) {
	ClearCache()

	out, err := Render(CollectorFile, "resume-review", map[string]string{
		"PostingMarkdown":  "# 백엔드 개발자",
		"ApplicantSummary": "이름: 홍길동",
		"ResumeMarkdown":   "경력 5년",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "# 백엔드 개발자")
	assert.Contains(t, out, "이름: 홍길동")
	assert.Contains(t, out, "**평가 점수:**")
	assert.NotContains(t, out, "{{.")
}
