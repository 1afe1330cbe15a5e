// Package dedup keeps a collection run from storing the same applicant twice.
//
// A WorkingSet holds the resume IDs known for one posting: those already in
// the database when the posting is reached, plus those accepted during the
// run. The Gate wraps the insert and keeps the set current.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/recruit-ops/resume-collector/internal/db"
)

// DefaultSaveTimeout bounds a single insert.
const DefaultSaveTimeout = 30 * time.Second

// Store is the persistence the gate reads and writes.
type Store interface {
	KnownResumeIDs(ctx context.Context, postingID string, candidates []string) ([]string, error)
	InsertResume(ctx context.Context, in *db.ResumeInput) (uuid.UUID, error)
}

// WorkingSet is the set of known resume IDs for one posting.
type WorkingSet struct {
	postingID string
	ids       map[string]struct{}
}

// NewWorkingSet creates a set for postingID holding ids.
func NewWorkingSet(postingID string, ids ...string) *WorkingSet {
	s := &WorkingSet{postingID: postingID, ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Seed loads the IDs already stored for postingID with one query.
func Seed(ctx context.Context, store Store, postingID string) (*WorkingSet, error) {
	ids, err := store.KnownResumeIDs(ctx, postingID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load known resumes for posting %s: %w", postingID, err)
	}
	return NewWorkingSet(postingID, ids...), nil
}

func (s *WorkingSet) PostingID() string { return s.postingID }

// Contains reports whether id is known. The empty ID is never known.
func (s *WorkingSet) Contains(id string) bool {
	if id == "" {
		return false
	}
	_, ok := s.ids[id]
	return ok
}

// Add marks id as known.
func (s *WorkingSet) Add(id string) {
	if id != "" {
		s.ids[id] = struct{}{}
	}
}

func (s *WorkingSet) Len() int { return len(s.ids) }

// Result is what happened to a record offered to the gate.
type Result struct {
	ID      uuid.UUID
	Saved   bool
	Skipped bool // already known or already stored
}

// Gate stores resumes that are not known yet.
type Gate struct {
	store   Store
	timeout time.Duration
	logger  *zap.Logger
}

// NewGate creates a gate. A non-positive timeout uses DefaultSaveTimeout.
func NewGate(store Store, timeout time.Duration, logger *zap.Logger) *Gate {
	if timeout <= 0 {
		timeout = DefaultSaveTimeout
	}
	return &Gate{store: store, timeout: timeout, logger: logger}
}

// Save inserts in unless its resume ID is in set. A uniqueness conflict
// reported by the store is a skip, not an error. The ID joins set as soon as
// it is stored or found to be stored. Timeouts and other store errors are
// returned.
func (g *Gate) Save(ctx context.Context, set *WorkingSet, in *db.ResumeInput) (Result, error) {
	id := in.ResumeExternalID
	if set.Contains(id) {
		g.logger.Debug("resume already known, not saving",
			zap.String("posting_id", in.PostingID), zap.String("resume_id", id))
		return Result{Skipped: true}, nil
	}

	saveCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	rowID, err := g.store.InsertResume(saveCtx, in)
	switch {
	case err == nil:
		set.Add(id)
		return Result{ID: rowID, Saved: true}, nil
	case errors.Is(err, db.ErrAlreadyExists):
		set.Add(id)
		g.logger.Info("resume already stored, skipping",
			zap.String("posting_id", in.PostingID), zap.String("resume_id", id))
		return Result{Skipped: true}, nil
	case errors.Is(saveCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return Result{}, fmt.Errorf("saving resume %s timed out after %s: %w", id, g.timeout, err)
	default:
		return Result{}, fmt.Errorf("failed to save resume %s: %w", id, err)
	}
}
