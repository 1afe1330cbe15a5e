package collector

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ResumeSummary describes one stored resume.
type ResumeSummary struct {
	ID            uuid.UUID `json:"id"`
	ResumeID      string    `json:"resumeId"`
	PostingID     string    `json:"jobPostingId"`
	ApplicantName string    `json:"applicantName"`
	PDFURL        string    `json:"pdfUrl"`
}

// PostingSummary describes what happened to one posting.
type PostingSummary struct {
	PostingID          string `json:"postingId"`
	ApplicantPostingID string `json:"applicantPostingId,omitempty"`
	Title              string `json:"title"`
	DetailSource       string `json:"detailSource,omitempty"`
	Seen               int    `json:"seen"`
	Saved              int    `json:"saved"`
	Skipped            int    `json:"skipped"`
	Failed             int    `json:"failed"`
	Error              string `json:"error,omitempty"`
}

// DetailCached is the detail source reported for postings whose detail was
// already stored.
const DetailCached = "cached"

// Result is the outcome of a collection run. Seen counts applicants that
// reached extraction, so Seen == Count + Skipped + Failed.
type Result struct {
	Success         bool             `json:"success"`
	JobPostingCount int              `json:"jobPostingCount"`
	Count           int              `json:"count"`
	Seen            int              `json:"seen"`
	Skipped         int              `json:"skipped"`
	Failed          int              `json:"failed"`
	Resumes         []ResumeSummary  `json:"resumes"`
	Postings        []PostingSummary `json:"postings"`
	Error           string           `json:"error,omitempty"`
	StartedAt       time.Time        `json:"startedAt"`
	Duration        time.Duration    `json:"-"`
}

func newResult(start time.Time) *Result {
	return &Result{
		Resumes:   []ResumeSummary{},
		Postings:  []PostingSummary{},
		StartedAt: start,
	}
}

func (r *Result) add(p PostingSummary) {
	r.Postings = append(r.Postings, p)
	r.Seen += p.Seen
	r.Count += p.Saved
	r.Skipped += p.Skipped
	r.Failed += p.Failed
}

type resultJSON struct {
	*resultAlias
	DurationMs int64 `json:"durationMs"`
}

type resultAlias Result

// MarshalJSON adds durationMs.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{resultAlias: (*resultAlias)(&r), DurationMs: r.Duration.Milliseconds()})
}

// UnmarshalJSON restores Duration from durationMs.
func (r *Result) UnmarshalJSON(data []byte) error {
	aux := resultJSON{resultAlias: (*resultAlias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Duration = time.Duration(aux.DurationMs) * time.Millisecond
	return nil
}
