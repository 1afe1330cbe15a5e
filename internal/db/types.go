package db

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is a resume's screening state, stored as the operator's label.
type Status string

// Status values.
const (
	StatusReceived     Status = "접수"
	StatusInterviewing Status = "면접"
	StatusRejected     Status = "불합격"
	StatusAccepted     Status = "합격"
)

var statusAliases = map[string]Status{
	"접수":           StatusReceived,
	"received":     StatusReceived,
	"unread":       StatusReceived,
	"면접":           StatusInterviewing,
	"interviewing": StatusInterviewing,
	"불합격":          StatusRejected,
	"rejected":     StatusRejected,
	"합격":           StatusAccepted,
	"accepted":     StatusAccepted,
}

// ParseStatus accepts a Korean label or English enum name.
func ParseStatus(s string) (Status, error) {
	if st, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st, nil
	}
	return "", fmt.Errorf("invalid status %q", s)
}

// Education is the first education entry on a resume.
type Education struct {
	School string `json:"school"`
	Major  string `json:"major"`
	Status string `json:"status"`
}

// Summary renders "school (major) status".
func (e Education) Summary() string {
	parts := []string{e.School}
	if e.Major != "" {
		parts = append(parts, "("+e.Major+")")
	}
	parts = append(parts, e.Status)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// Career is the most recent career entry on a resume.
type Career struct {
	Company  string `json:"company"`
	Position string `json:"position"`
}

// Summary renders "company (position)".
func (c Career) Summary() string {
	s := c.Company
	if c.Position != "" {
		s += " (" + c.Position + ")"
	}
	return strings.TrimSpace(s)
}

// JobPosting is a posting row.
type JobPosting struct {
	PostingID          string              `json:"posting_id"`
	Title              string              `json:"title"`
	DetailMarkdown     *string             `json:"detail_markdown,omitempty"`
	DetailHTML         *string             `json:"-"`
	DetailStruct       map[string][]string `json:"detail_struct,omitempty"`
	DetailSource       *string             `json:"detail_source,omitempty"`
	ApplicantPostingID *string             `json:"applicant_posting_id,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// JobPostingInput is the data upserted for a posting.
type JobPostingInput struct {
	PostingID          string
	Title              string
	DetailMarkdown     string
	DetailHTML         string
	DetailStruct       map[string][]string
	DetailSource       string
	ApplicantPostingID string
}

// Resume is a resume row.
type Resume struct {
	ID               uuid.UUID  `json:"id"`
	ResumeExternalID *string    `json:"resume_external_id,omitempty"`
	PostingID        string     `json:"job_posting_id"`
	JobPostingTitle  string     `json:"job_posting_title"`
	ApplicantName    string     `json:"applicant_name"`
	ApplicantPhone   string     `json:"applicant_phone"`
	ApplicantEmail   string     `json:"applicant_email"`
	ApplicationDate  time.Time  `json:"application_date"`
	Education        Education  `json:"education"`
	Career           Career     `json:"career"`
	PDFURL           string     `json:"pdf_url"`
	MarkdownURL      *string    `json:"markdown_url,omitempty"`
	Status           Status     `json:"status"`
	ReviewScore      *int       `json:"review_score,omitempty"`
	ReviewText       *string    `json:"review_text,omitempty"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ResumeInput is the data inserted for a new resume.
type ResumeInput struct {
	ResumeExternalID string
	PostingID        string
	JobPostingTitle  string
	ApplicantName    string
	ApplicantPhone   string
	ApplicantEmail   string
	ApplicationDate  time.Time
	Education        Education
	Career           Career
	PDFURL           string
	MarkdownURL      string
}

// ResumeFilter narrows ListResumes. Zero values mean no filter.
type ResumeFilter struct {
	Status         Status
	PostingID      string
	PostingTitle   string // substring match
	ApplicantName  string // substring match
	IncludeDeleted bool
	DeletedOnly    bool
	Limit          int
	Offset         int
}

func marshalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	return data, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
