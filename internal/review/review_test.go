package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/recruit-ops/resume-collector/internal/artifacts"
	"github.com/recruit-ops/resume-collector/internal/db"
	"github.com/recruit-ops/resume-collector/internal/llm"
)

// MockStore implements Store for testing
type MockStore struct {
	GetResumeFunc     func(ctx context.Context, id uuid.UUID) (*db.Resume, error)
	GetJobPostingFunc func(ctx context.Context, postingID string) (*db.JobPosting, error)
	SaveReviewFunc    func(ctx context.Context, id uuid.UUID, score int, text string) (*db.Resume, error)
}

func (m *MockStore) GetResume(ctx context.Context, id uuid.UUID) (*db.Resume, error) {
	return m.GetResumeFunc(ctx, id)
}

func (m *MockStore) GetJobPosting(ctx context.Context, postingID string) (*db.JobPosting, error) {
	if m.GetJobPostingFunc != nil {
		return m.GetJobPostingFunc(ctx, postingID)
	}
	return nil, nil
}

func (m *MockStore) SaveReview(ctx context.Context, id uuid.UUID, score int, text string) (*db.Resume, error) {
	return m.SaveReviewFunc(ctx, id, score, text)
}

// MockLLMClient implements llm.Client for testing
type MockLLMClient struct {
	GenerateContentFunc func(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
}

func (m *MockLLMClient) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	return m.GenerateContentFunc(ctx, prompt, tier)
}

func (m *MockLLMClient) GetModel(llm.ModelTier) string { return "mock-model" }

func (m *MockLLMClient) Close() error { return nil }

func ptr[T any](v T) *T { return &v }

func newFiles(t *testing.T) *artifacts.Store {
	t.Helper()
	store, err := artifacts.NewStore(t.TempDir(), t.TempDir(), "http://localhost:4001")
	require.NoError(t, err)
	return store
}

func testResume(id uuid.UUID) *db.Resume {
	return &db.Resume{
		ID:              id,
		PostingID:       "100",
		ApplicantName:   "홍길동",
		ApplicantEmail:  "hong@example.com",
		ApplicationDate: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		Education:       db.Education{School: "한국대학교", Major: "컴퓨터공학과", Status: "졸업"},
		Career:          db.Career{Company: "가나다", Position: "개발자"},
	}
}

func TestReview(t *testing.T) {
	files := newFiles(t)
	md, err := files.SaveResumeMarkdown("resume_1.pdf", "# 홍길동 이력서\nGo 5년")
	require.NoError(t, err)

	id := uuid.New()
	resume := testResume(id)
	resume.MarkdownURL = &md.URL

	var saved struct {
		score int
		text  string
	}
	store := &MockStore{
		GetResumeFunc: func(context.Context, uuid.UUID) (*db.Resume, error) { return resume, nil },
		GetJobPostingFunc: func(_ context.Context, postingID string) (*db.JobPosting, error) {
			return &db.JobPosting{PostingID: postingID, DetailMarkdown: ptr("## 주요업무\n- 결제 API")}, nil
		},
		SaveReviewFunc: func(_ context.Context, _ uuid.UUID, score int, text string) (*db.Resume, error) {
			saved.score, saved.text = score, text
			out := *resume
			out.ReviewScore = &score
			return &out, nil
		},
	}

	var prompt string
	client := &MockLLMClient{GenerateContentFunc: func(_ context.Context, p string, _ llm.ModelTier) (string, error) {
		prompt = p
		return "**평가 점수:** 87\n**평가 결과:** 결제 도메인 경험이 공고와 잘 맞습니다.", nil
	}}

	svc := NewService(store, files, client, zap.NewNop())
	out, err := svc.Review(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, 87, out.Review.Score)
	assert.Equal(t, 87, saved.score)
	assert.Equal(t, "결제 도메인 경험이 공고와 잘 맞습니다.", saved.text)
	assert.Equal(t, 87, *out.Resume.ReviewScore)

	assert.Contains(t, prompt, "결제 API")
	assert.Contains(t, prompt, "Go 5년")
	assert.Contains(t, prompt, "한국대학교 (컴퓨터공학과) 졸업")
	assert.Contains(t, prompt, "2025-03-01")
}

func TestReview_MissingArtifacts(t *testing.T) {
	id := uuid.New()
	resume := testResume(id)
	resume.MarkdownURL = ptr("http://localhost:4001/api/resumes/markdown/resume_404.md")

	store := &MockStore{
		GetResumeFunc: func(context.Context, uuid.UUID) (*db.Resume, error) { return resume, nil },
		SaveReviewFunc: func(context.Context, uuid.UUID, int, string) (*db.Resume, error) {
			return resume, nil
		},
	}
	var prompt string
	client := &MockLLMClient{GenerateContentFunc: func(_ context.Context, p string, _ llm.ModelTier) (string, error) {
		prompt = p
		return "약 72% 적합", nil
	}}

	out, err := NewService(store, newFiles(t), client, zap.NewNop()).Review(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 72, out.Review.Score)
	assert.Equal(t, "약 72% 적합", out.Review.Text)
	assert.Contains(t, prompt, "공고 정보 없음")
}

func TestReview_NotConfigured(t *testing.T) {
	svc := NewService(&MockStore{}, newFiles(t), nil, zap.NewNop())
	_, err := svc.Review(context.Background(), uuid.New())
	assert.ErrorIs(t, err, llm.ErrNotConfigured)
}

func TestReview_ResumeNotFound(t *testing.T) {
	store := &MockStore{GetResumeFunc: func(context.Context, uuid.UUID) (*db.Resume, error) {
		return nil, fmt.Errorf("resume: %w", db.ErrNotFound)
	}}
	client := &MockLLMClient{GenerateContentFunc: func(context.Context, string, llm.ModelTier) (string, error) {
		t.Fatal("model must not be called")
		return "", nil
	}}

	_, err := NewService(store, newFiles(t), client, zap.NewNop()).Review(context.Background(), uuid.New())
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestReview_ModelError(t *testing.T) {
	id := uuid.New()
	store := &MockStore{
		GetResumeFunc: func(context.Context, uuid.UUID) (*db.Resume, error) { return testResume(id), nil },
		SaveReviewFunc: func(context.Context, uuid.UUID, int, string) (*db.Resume, error) {
			t.Fatal("nothing is saved when the model fails")
			return nil, nil
		},
	}
	client := &MockLLMClient{GenerateContentFunc: func(context.Context, string, llm.ModelTier) (string, error) {
		return "", errors.New("quota exceeded")
	}}

	_, err := NewService(store, newFiles(t), client, zap.NewNop()).Review(context.Background(), id)
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestPostingMarkdown(t *testing.T) {
	files := newFiles(t)
	_, err := files.SavePostingMarkdown("200", "## 주요업무\n- 파일에서 읽음")
	require.NoError(t, err)

	store := &MockStore{GetJobPostingFunc: func(_ context.Context, postingID string) (*db.JobPosting, error) {
		switch postingID {
		case "100":
			return &db.JobPosting{PostingID: "100", DetailMarkdown: ptr("## 주요업무\n- DB에서 읽음")}, nil
		case "200":
			return &db.JobPosting{PostingID: "200"}, nil
		}
		return nil, nil
	}}
	svc := NewService(store, files, nil, zap.NewNop())

	md, err := svc.PostingMarkdown(context.Background(), "100")
	require.NoError(t, err)
	assert.True(t, strings.Contains(md, "DB에서 읽음"))

	md, err = svc.PostingMarkdown(context.Background(), "200")
	require.NoError(t, err)
	assert.Contains(t, md, "파일에서 읽음")

	_, err = svc.PostingMarkdown(context.Background(), "300")
	assert.ErrorIs(t, err, artifacts.ErrNotFound)
}
