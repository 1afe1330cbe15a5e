// Package review scores stored resumes against their posting with the
// text-completion service.
package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/recruit-ops/resume-collector/internal/artifacts"
	"github.com/recruit-ops/resume-collector/internal/db"
	"github.com/recruit-ops/resume-collector/internal/llm"
)

// Store is the persistence the review service reads and writes.
type Store interface {
	GetResume(ctx context.Context, id uuid.UUID) (*db.Resume, error)
	GetJobPosting(ctx context.Context, postingID string) (*db.JobPosting, error)
	SaveReview(ctx context.Context, id uuid.UUID, score int, text string) (*db.Resume, error)
}

// Files reads stored artifacts.
type Files interface {
	Read(kind artifacts.Kind, filename string) ([]byte, error)
}

// Outcome is a completed review.
type Outcome struct {
	Resume *db.Resume  `json:"resume"`
	Review *llm.Review `json:"review"`
}

// Service runs reviews.
type Service struct {
	store  Store
	files  Files
	ai     llm.Client
	logger *zap.Logger
}

// NewService creates a review service. ai may be nil; Review then fails
// with llm.ErrNotConfigured.
func NewService(store Store, files Files, ai llm.Client, logger *zap.Logger) *Service {
	return &Service{store: store, files: files, ai: ai, logger: logger}
}

// PostingMarkdown returns a posting's detail Markdown from the database,
// falling back to the Markdown file written during collection.
// Returns artifacts.ErrNotFound when neither exists.
func (s *Service) PostingMarkdown(ctx context.Context, postingID string) (string, error) {
	p, err := s.store.GetJobPosting(ctx, postingID)
	if err != nil {
		return "", err
	}
	if p != nil && p.DetailMarkdown != nil && *p.DetailMarkdown != "" {
		return *p.DetailMarkdown, nil
	}

	data, err := s.files.Read(artifacts.KindMarkdown, artifacts.PostingMarkdownName(postingID))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Service) resumeMarkdown(r *db.Resume) string {
	if r.MarkdownURL == nil || *r.MarkdownURL == "" {
		return ""
	}
	name := artifacts.FilenameFromURL(*r.MarkdownURL)
	data, err := s.files.Read(artifacts.KindMarkdown, name)
	if err != nil {
		s.logger.Warn("resume markdown unavailable",
			zap.String("resume_id", r.ID.String()), zap.String("file", name), zap.Error(err))
		return ""
	}
	return string(data)
}

// Review scores resume id and stores the score and narrative on it.
func (s *Service) Review(ctx context.Context, id uuid.UUID) (*Outcome, error) {
	if s.ai == nil {
		return nil, llm.ErrNotConfigured
	}

	resume, err := s.store.GetResume(ctx, id)
	if err != nil {
		return nil, err
	}

	posting, err := s.PostingMarkdown(ctx, resume.PostingID)
	if err != nil && !errors.Is(err, artifacts.ErrNotFound) {
		return nil, fmt.Errorf("failed to load posting %s: %w", resume.PostingID, err)
	}

	in := llm.ReviewInput{
		PostingMarkdown:  posting,
		ResumeMarkdown:   s.resumeMarkdown(resume),
		ApplicantName:    resume.ApplicantName,
		ApplicantEmail:   resume.ApplicantEmail,
		ApplicantPhone:   resume.ApplicantPhone,
		EducationSummary: resume.Education.Summary(),
		CareerSummary:    resume.Career.Summary(),
	}
	if !resume.ApplicationDate.IsZero() {
		in.ApplicationDate = resume.ApplicationDate.Format(time.DateOnly)
	}

	start := time.Now()
	result, err := llm.ReviewResume(ctx, s.ai, in)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.SaveReview(ctx, id, result.Score, result.Text)
	if err != nil {
		return nil, err
	}

	s.logger.Info("resume reviewed",
		zap.String("resume_id", id.String()),
		zap.String("posting_id", resume.PostingID),
		zap.Int("score", result.Score),
		zap.Duration("duration", time.Since(start)))
	return &Outcome{Resume: updated, Review: result}, nil
}
