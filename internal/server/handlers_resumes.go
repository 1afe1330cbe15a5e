package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/recruit-ops/resume-collector/internal/db"
	"github.com/recruit-ops/resume-collector/internal/logging"
)

var validate = validator.New()

// maxListLimit caps page size for resume listings.
const maxListLimit = 500

// StatusRequest is the body of PATCH /api/resumes/{id}/status.
type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func parseID(r *http.Request) (uuid.UUID, error) {
	raw := r.PathValue("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &ErrValidation{Field: "id", Message: "must be a UUID"}
	}
	return id, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &ErrValidation{Field: key, Message: "must be true or false"}
	}
	return b, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, &ErrValidation{Field: key, Message: "must be a non-negative integer"}
	}
	return n, nil
}

// parseResumeFilter reads the listing filters from the query string.
func parseResumeFilter(r *http.Request) (db.ResumeFilter, error) {
	q := r.URL.Query()
	f := db.ResumeFilter{
		PostingID:     q.Get("job_posting_id"),
		PostingTitle:  q.Get("job_posting_title"),
		ApplicantName: q.Get("applicant_name"),
	}

	if raw := q.Get("status"); raw != "" && raw != "all" {
		st, err := db.ParseStatus(raw)
		if err != nil {
			return f, &ErrValidation{Field: "status", Message: err.Error()}
		}
		f.Status = st
	}

	var err error
	if f.IncludeDeleted, err = queryBool(r, "include_deleted"); err != nil {
		return f, err
	}
	if f.DeletedOnly, err = queryBool(r, "deleted_only"); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(r, "limit", 0); err != nil {
		return f, err
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset, err = queryInt(r, "offset", 0); err != nil {
		return f, err
	}
	return f, nil
}

// handleListResumes handles GET /api/resumes
func (s *Server) handleListResumes(w http.ResponseWriter, r *http.Request) {
	f, err := parseResumeFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resumes, err := s.deps.Store.ListResumes(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if resumes == nil {
		resumes = []db.Resume{}
	}
	s.dataResponse(w, resumes)
}

// handleGetResume handles GET /api/resumes/{id}
func (s *Server) handleGetResume(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resume, err := s.deps.Store.GetResume(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.dataResponse(w, resume)
}

// handleUpdateStatus handles PATCH /api/resumes/{id}/status
func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, r, &ErrValidation{Field: "body", Message: "invalid JSON"})
		return
	}
	if err := validate.Struct(req); err != nil {
		s.fail(w, r, &ErrValidation{Field: "status", Message: "is required"})
		return
	}
	status, err := db.ParseStatus(req.Status)
	if err != nil {
		s.fail(w, r, &ErrValidation{Field: "status", Message: err.Error()})
		return
	}

	updated, err := s.deps.Store.UpdateStatus(r.Context(), id, status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("resume status updated",
		logging.OutcomeSuccess, zap.String("id", id.String()), zap.String("status", string(status)))
	s.dataResponse(w, updated)
}

// handleSoftDelete handles DELETE /api/resumes/{id}
func (s *Server) handleSoftDelete(w http.ResponseWriter, r *http.Request) {
	s.mutateResume(w, r, "resume deleted", s.deps.Store.SoftDelete)
}

// handleRestore handles POST /api/resumes/{id}/restore
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	s.mutateResume(w, r, "resume restored", s.deps.Store.Restore)
}

// handleDeletePermanent handles DELETE /api/resumes/{id}/permanent
func (s *Server) handleDeletePermanent(w http.ResponseWriter, r *http.Request) {
	s.mutateResume(w, r, "resume permanently deleted", s.deps.Store.DeletePermanent)
}

func (s *Server) mutateResume(w http.ResponseWriter, r *http.Request, msg string, op func(ctx context.Context, id uuid.UUID) (*db.Resume, error)) {
	id, err := parseID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resume, err := op(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info(msg, logging.OutcomeSuccess, zap.String("id", id.String()))
	s.dataResponse(w, resume)
}

// handleReview handles POST /api/resumes/{id}/review
func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.deps.Reviewer.Review(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.dataResponse(w, out)
}

// handleListJobPostings handles GET /api/job-postings
func (s *Server) handleListJobPostings(w http.ResponseWriter, r *http.Request) {
	postings, err := s.deps.Store.ListJobPostings(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if postings == nil {
		postings = []db.JobPosting{}
	}
	s.dataResponse(w, postings)
}

// handlePostingMarkdown handles GET /api/job-postings/{id}/markdown
func (s *Server) handlePostingMarkdown(w http.ResponseWriter, r *http.Request) {
	postingID := r.PathValue("id")
	md, err := s.deps.Reviewer.PostingMarkdown(r.Context(), postingID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.dataResponse(w, map[string]string{"postingId": postingID, "markdown": md})
}
