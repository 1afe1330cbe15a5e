package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// requiredResumeColumns are never stripped on schema-drift retries.
var requiredResumeColumns = map[string]bool{
	"posting_id": true,
}

var undefinedColumn = regexp.MustCompile(`column "([^"]+)"`)

type insertColumn struct {
	name  string
	value any
}

func resumeInsertColumns(in *ResumeInput) ([]insertColumn, error) {
	edu, err := marshalJSON(in.Education)
	if err != nil {
		return nil, err
	}
	car, err := marshalJSON(in.Career)
	if err != nil {
		return nil, err
	}
	appDate := in.ApplicationDate
	if appDate.IsZero() {
		appDate = time.Now()
	}

	return []insertColumn{
		{"resume_external_id", nullIfEmpty(in.ResumeExternalID)},
		{"posting_id", in.PostingID},
		{"job_posting_title", in.JobPostingTitle},
		{"applicant_name", in.ApplicantName},
		{"applicant_phone", in.ApplicantPhone},
		{"applicant_email", in.ApplicantEmail},
		{"application_date", appDate},
		{"education", edu},
		{"career", car},
		{"pdf_url", in.PDFURL},
		{"markdown_url", nullIfEmpty(in.MarkdownURL)},
		{"status", string(StatusReceived)},
	}, nil
}

func buildResumeInsert(cols []insertColumn) (string, []any) {
	names := make([]string, len(cols))
	params := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		names[i] = c.name
		params[i] = fmt.Sprintf("$%d", i+1)
		args[i] = c.value
	}

	conflict := ""
	for _, c := range cols {
		if c.name == "resume_external_id" {
			conflict = " ON CONFLICT (resume_external_id, posting_id) WHERE deleted_at IS NULL DO NOTHING"
			break
		}
	}

	query := fmt.Sprintf(`INSERT INTO resumes (%s) VALUES (%s)%s RETURNING id`,
		strings.Join(names, ", "), strings.Join(params, ", "), conflict)
	return query, args
}

// missingColumn returns the column an undefined-column error names, if it
// is one that may be dropped from the insert.
func missingColumn(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeUndefinedColumn {
		return "", false
	}
	m := undefinedColumn.FindStringSubmatch(pgErr.Message)
	if m == nil || requiredResumeColumns[m[1]] {
		return "", false
	}
	return m[1], true
}

func withoutColumn(cols []insertColumn, name string) ([]insertColumn, bool) {
	out := make([]insertColumn, 0, len(cols))
	found := false
	for _, c := range cols {
		if c.name == name {
			found = true
			continue
		}
		out = append(out, c)
	}
	return out, found
}

// InsertResume stores a new resume. ErrAlreadyExists is returned when an
// active resume with the same external id and posting is stored already.
// If the table lacks one of the optional columns the insert is retried
// once without it.
func (db *DB) InsertResume(ctx context.Context, in *ResumeInput) (uuid.UUID, error) {
	cols, err := resumeInsertColumns(in)
	if err != nil {
		return uuid.Nil, err
	}

	id, err := db.insertResume(ctx, cols)
	if col, ok := missingColumn(err); ok {
		if stripped, found := withoutColumn(cols, col); found {
			id, err = db.insertResume(ctx, stripped)
		}
	}

	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, pgx.ErrNoRows), IsUniqueViolation(err):
		return uuid.Nil, fmt.Errorf("resume %s for posting %s: %w", in.ResumeExternalID, in.PostingID, ErrAlreadyExists)
	default:
		return uuid.Nil, fmt.Errorf("failed to insert resume: %w", err)
	}
}

func (db *DB) insertResume(ctx context.Context, cols []insertColumn) (uuid.UUID, error) {
	query, args := buildResumeInsert(cols)
	var id uuid.UUID
	err := db.pool.QueryRow(ctx, query, args...).Scan(&id)
	return id, err
}

// KnownResumeIDs returns the external ids stored for a posting, including
// soft-deleted ones. When candidates is non-empty only those are checked.
func (db *DB) KnownResumeIDs(ctx context.Context, postingID string, candidates []string) ([]string, error) {
	query := `SELECT DISTINCT resume_external_id FROM resumes
		WHERE posting_id = $1 AND resume_external_id IS NOT NULL`
	args := []any{postingID}
	if len(candidates) > 0 {
		query += " AND resume_external_id = ANY($2)"
		args = append(args, candidates)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query known resumes: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan known resumes: %w", err)
	}
	return ids, nil
}

const resumeColumns = `id, resume_external_id, posting_id, job_posting_title, applicant_name,
	applicant_phone, applicant_email, application_date, education, career, pdf_url,
	markdown_url, status, review_score, review_text, reviewed_at, deleted_at,
	created_at, updated_at`

func scanResume(row pgx.Row) (*Resume, error) {
	var r Resume
	var edu, car []byte
	var status string
	if err := row.Scan(&r.ID, &r.ResumeExternalID, &r.PostingID, &r.JobPostingTitle,
		&r.ApplicantName, &r.ApplicantPhone, &r.ApplicantEmail, &r.ApplicationDate,
		&edu, &car, &r.PDFURL, &r.MarkdownURL, &status, &r.ReviewScore, &r.ReviewText,
		&r.ReviewedAt, &r.DeletedAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = Status(status)
	if edu != nil {
		_ = json.Unmarshal(edu, &r.Education)
	}
	if car != nil {
		_ = json.Unmarshal(car, &r.Career)
	}
	return &r, nil
}

// buildResumeListQuery turns a filter into SQL and arguments.
func buildResumeListQuery(f ResumeFilter) (string, []any) {
	query := `SELECT ` + resumeColumns + ` FROM resumes WHERE 1=1`
	args := []any{}
	argNum := 1

	switch {
	case f.DeletedOnly:
		query += " AND deleted_at IS NOT NULL"
	case !f.IncludeDeleted:
		query += " AND deleted_at IS NULL"
	}
	if f.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(f.Status))
		argNum++
	}
	if f.PostingID != "" {
		query += fmt.Sprintf(" AND posting_id = $%d", argNum)
		args = append(args, f.PostingID)
		argNum++
	}
	if f.PostingTitle != "" {
		query += fmt.Sprintf(" AND job_posting_title ILIKE $%d", argNum)
		args = append(args, "%"+f.PostingTitle+"%")
		argNum++
	}
	if f.ApplicantName != "" {
		query += fmt.Sprintf(" AND applicant_name ILIKE $%d", argNum)
		args = append(args, "%"+f.ApplicantName+"%")
		argNum++
	}

	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, f.Limit)
		argNum++
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, f.Offset)
	}
	return query, args
}

// ListResumes returns resumes matching f, newest first.
func (db *DB) ListResumes(ctx context.Context, f ResumeFilter) ([]Resume, error) {
	query, args := buildResumeListQuery(f)
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list resumes: %w", err)
	}
	defer rows.Close()

	resumes := []Resume{}
	for rows.Next() {
		r, err := scanResume(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resume: %w", err)
		}
		resumes = append(resumes, *r)
	}
	return resumes, rows.Err()
}

// GetResume retrieves a resume, including soft-deleted ones.
func (db *DB) GetResume(ctx context.Context, id uuid.UUID) (*Resume, error) {
	r, err := scanResume(db.pool.QueryRow(ctx,
		`SELECT `+resumeColumns+` FROM resumes WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get resume: %w", err)
	}
	return r, nil
}

func (db *DB) updateResume(ctx context.Context, op string, id uuid.UUID, query string, args ...any) (*Resume, error) {
	r, err := scanResume(db.pool.QueryRow(ctx, query+` RETURNING `+resumeColumns, append([]any{id}, args...)...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to %s resume: %w", op, err)
	}
	return r, nil
}

// UpdateStatus sets a resume's screening status.
func (db *DB) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Resume, error) {
	return db.updateResume(ctx, "update status of", id,
		`UPDATE resumes SET status = $2, updated_at = NOW() WHERE id = $1`, string(status))
}

// SaveReview stores an AI review result.
func (db *DB) SaveReview(ctx context.Context, id uuid.UUID, score int, text string) (*Resume, error) {
	return db.updateResume(ctx, "save review for", id,
		`UPDATE resumes SET review_score = $2, review_text = $3, reviewed_at = NOW(), updated_at = NOW()
		 WHERE id = $1`, score, text)
}

// SoftDelete marks an active resume deleted.
func (db *DB) SoftDelete(ctx context.Context, id uuid.UUID) (*Resume, error) {
	return db.updateResume(ctx, "delete", id,
		`UPDATE resumes SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`)
}

// Restore clears a resume's deletion mark. Restoring fails with
// ErrAlreadyExists when an active copy of the same applicant was collected
// since.
func (db *DB) Restore(ctx context.Context, id uuid.UUID) (*Resume, error) {
	r, err := db.updateResume(ctx, "restore", id,
		`UPDATE resumes SET deleted_at = NULL, updated_at = NOW() WHERE id = $1 AND deleted_at IS NOT NULL`)
	if IsUniqueViolation(err) {
		return nil, fmt.Errorf("restore %s: %w", id, ErrAlreadyExists)
	}
	return r, err
}

// DeletePermanent removes a resume row.
func (db *DB) DeletePermanent(ctx context.Context, id uuid.UUID) (*Resume, error) {
	r, err := scanResume(db.pool.QueryRow(ctx,
		`DELETE FROM resumes WHERE id = $1 RETURNING `+resumeColumns, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to delete resume: %w", err)
	}
	return r, nil
}
