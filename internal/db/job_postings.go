package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// UpsertJobPosting creates or updates a posting by posting_id. Detail
// columns left empty in input keep their stored values.
func (db *DB) UpsertJobPosting(ctx context.Context, input *JobPostingInput) (*JobPosting, error) {
	var structJSON []byte
	if len(input.DetailStruct) > 0 {
		var err error
		if structJSON, err = marshalJSON(input.DetailStruct); err != nil {
			return nil, err
		}
	}

	row := db.pool.QueryRow(ctx,
		`INSERT INTO job_postings (posting_id, title, detail_markdown, detail_html,
		                           detail_struct, detail_source, applicant_posting_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (posting_id) DO UPDATE SET
		     title = EXCLUDED.title,
		     detail_markdown = COALESCE(EXCLUDED.detail_markdown, job_postings.detail_markdown),
		     detail_html = COALESCE(EXCLUDED.detail_html, job_postings.detail_html),
		     detail_struct = COALESCE(EXCLUDED.detail_struct, job_postings.detail_struct),
		     detail_source = COALESCE(EXCLUDED.detail_source, job_postings.detail_source),
		     applicant_posting_id = COALESCE(EXCLUDED.applicant_posting_id, job_postings.applicant_posting_id),
		     updated_at = NOW()
		 RETURNING `+postingColumns,
		input.PostingID, input.Title, nullIfEmpty(input.DetailMarkdown), nullIfEmpty(input.DetailHTML),
		structJSON, nullIfEmpty(input.DetailSource), nullIfEmpty(input.ApplicantPostingID),
	)

	p, err := scanJobPosting(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert job posting %s: %w", input.PostingID, err)
	}
	return p, nil
}

// GetJobPosting retrieves a posting. Returns nil, nil when it does not exist.
func (db *DB) GetJobPosting(ctx context.Context, postingID string) (*JobPosting, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+postingColumns+` FROM job_postings WHERE posting_id = $1`,
		postingID,
	)
	p, err := scanJobPosting(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job posting: %w", err)
	}
	return p, nil
}

// HasPostingDetail reports whether a posting with extracted detail is stored.
func (db *DB) HasPostingDetail(ctx context.Context, postingID string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM job_postings
		                WHERE posting_id = $1 AND detail_markdown IS NOT NULL)`,
		postingID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check job posting %s: %w", postingID, err)
	}
	return exists, nil
}

// ListJobPostings returns all postings, newest first.
func (db *DB) ListJobPostings(ctx context.Context) ([]JobPosting, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+postingColumns+` FROM job_postings ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list job postings: %w", err)
	}
	defer rows.Close()

	var postings []JobPosting
	for rows.Next() {
		p, err := scanJobPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job posting: %w", err)
		}
		postings = append(postings, *p)
	}
	return postings, rows.Err()
}

const postingColumns = `posting_id, title, detail_markdown, detail_html, detail_struct,
	detail_source, applicant_posting_id, created_at, updated_at`

func scanJobPosting(row pgx.Row) (*JobPosting, error) {
	var p JobPosting
	var structJSON []byte
	if err := row.Scan(&p.PostingID, &p.Title, &p.DetailMarkdown, &p.DetailHTML, &structJSON,
		&p.DetailSource, &p.ApplicantPostingID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if structJSON != nil {
		_ = json.Unmarshal(structJSON, &p.DetailStruct)
	}
	return &p, nil
}
