package portal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/recruit-ops/resume-collector/internal/artifacts"
	"github.com/recruit-ops/resume-collector/internal/extract"
	"github.com/recruit-ops/resume-collector/internal/llm"
)

const testBase = "https://portal.test"

func testURLs() URLs {
	return NewURLs(testBase)
}

func fastTimeouts() Timeouts {
	return Timeouts{
		Navigation: 50 * time.Millisecond,
		Probe:      10 * time.Millisecond,
		Login:      20 * time.Millisecond,
	}
}

type knownSet map[string]bool

func (k knownSet) Contains(id string) bool { return k[id] }

// mockLLM implements llm.Client for testing
type mockLLM struct {
	GenerateContentFunc func(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
	Prompts             []string
}

func (m *mockLLM) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, prompt, tier)
	}
	return "", errors.New("not implemented")
}

func (m *mockLLM) GetModel(llm.ModelTier) string { return "mock-model" }

func (m *mockLLM) Close() error { return nil }

func newArtifactStore(t *testing.T) (*artifacts.Store, string, string) {
	t.Helper()
	pdfDir, mdDir := t.TempDir(), t.TempDir()
	store, err := artifacts.NewStore(pdfDir, mdDir, "http://localhost:4001")
	require.NoError(t, err)
	return store, pdfDir, mdDir
}

// fragment parses html and returns the first match of sel.
func fragment(t *testing.T, html, sel string) *goquery.Selection {
	t.Helper()
	doc, err := extract.Parse(html)
	require.NoError(t, err)
	found := doc.Find(sel).First()
	require.Equal(t, 1, found.Length(), "fixture has no %s", sel)
	return found
}
