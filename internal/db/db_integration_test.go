//go:build integration

package db

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
)

func getTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	db, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return db
}

func testPostingID() string {
	return "it-" + uuid.New().String()[:8]
}

func cleanupPosting(t *testing.T, db *DB, postingID string) {
	t.Helper()
	ctx := context.Background()
	_, _ = db.pool.Exec(ctx, "DELETE FROM resumes WHERE posting_id = $1", postingID)
	_, _ = db.pool.Exec(ctx, "DELETE FROM job_postings WHERE posting_id = $1", postingID)
}

func TestIntegration_JobPosting_Upsert(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	id := testPostingID()
	defer cleanupPosting(t, db, id)

	if ok, err := db.HasPostingDetail(ctx, id); err != nil || ok {
		t.Fatalf("HasPostingDetail before insert = %v, %v", ok, err)
	}

	_, err := db.UpsertJobPosting(ctx, &JobPostingInput{
		PostingID:      id,
		Title:          "백엔드 개발자",
		DetailMarkdown: "# 백엔드 개발자",
		DetailStruct:   map[string][]string{"주요업무": {"API 개발"}},
		DetailSource:   "structured",
	})
	if err != nil {
		t.Fatalf("UpsertJobPosting failed: %v", err)
	}

	// a title-only upsert keeps the stored detail
	p, err := db.UpsertJobPosting(ctx, &JobPostingInput{PostingID: id, Title: "백엔드 개발자 (경력)"})
	if err != nil {
		t.Fatalf("second UpsertJobPosting failed: %v", err)
	}
	if p.Title != "백엔드 개발자 (경력)" {
		t.Errorf("Title = %q", p.Title)
	}
	if p.DetailMarkdown == nil || *p.DetailMarkdown != "# 백엔드 개발자" {
		t.Errorf("DetailMarkdown was not preserved: %v", p.DetailMarkdown)
	}
	if got := p.DetailStruct["주요업무"]; len(got) != 1 || got[0] != "API 개발" {
		t.Errorf("DetailStruct = %v", p.DetailStruct)
	}

	if ok, err := db.HasPostingDetail(ctx, id); err != nil || !ok {
		t.Errorf("HasPostingDetail after insert = %v, %v", ok, err)
	}
}

func TestIntegration_Resume_Lifecycle(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	postingID := testPostingID()
	defer cleanupPosting(t, db, postingID)

	input := &ResumeInput{
		ResumeExternalID: "R-1",
		PostingID:        postingID,
		JobPostingTitle:  "백엔드 개발자",
		ApplicantName:    "홍길동",
		Education:        Education{School: "한국대학교", Status: "졸업"},
		PDFURL:           "http://localhost/api/resumes/pdf/resume_1.pdf",
	}

	id, err := db.InsertResume(ctx, input)
	if err != nil {
		t.Fatalf("InsertResume failed: %v", err)
	}

	t.Run("duplicate insert is rejected", func(t *testing.T) {
		_, err := db.InsertResume(ctx, input)
		if !errors.Is(err, ErrAlreadyExists) {
			t.Errorf("InsertResume duplicate error = %v, want ErrAlreadyExists", err)
		}
	})

	t.Run("known ids", func(t *testing.T) {
		all, err := db.KnownResumeIDs(ctx, postingID, nil)
		if err != nil {
			t.Fatalf("KnownResumeIDs failed: %v", err)
		}
		if len(all) != 1 || all[0] != "R-1" {
			t.Errorf("KnownResumeIDs = %v", all)
		}

		some, err := db.KnownResumeIDs(ctx, postingID, []string{"R-2", "R-1"})
		if err != nil {
			t.Fatalf("KnownResumeIDs with candidates failed: %v", err)
		}
		if len(some) != 1 {
			t.Errorf("KnownResumeIDs candidates = %v", some)
		}
	})

	t.Run("status and review", func(t *testing.T) {
		r, err := db.UpdateStatus(ctx, id, StatusInterviewing)
		if err != nil {
			t.Fatalf("UpdateStatus failed: %v", err)
		}
		if r.Status != StatusInterviewing {
			t.Errorf("Status = %q", r.Status)
		}

		r, err = db.SaveReview(ctx, id, 82, "적합")
		if err != nil {
			t.Fatalf("SaveReview failed: %v", err)
		}
		if r.ReviewScore == nil || *r.ReviewScore != 82 || r.ReviewedAt == nil {
			t.Errorf("review not stored: %+v", r)
		}
	})

	t.Run("soft delete frees the slot", func(t *testing.T) {
		if _, err := db.SoftDelete(ctx, id); err != nil {
			t.Fatalf("SoftDelete failed: %v", err)
		}
		if _, err := db.SoftDelete(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("second SoftDelete error = %v, want ErrNotFound", err)
		}

		list, err := db.ListResumes(ctx, ResumeFilter{PostingID: postingID})
		if err != nil {
			t.Fatalf("ListResumes failed: %v", err)
		}
		if len(list) != 0 {
			t.Errorf("active list = %d, want 0", len(list))
		}

		// known ids still include the deleted resume
		known, _ := db.KnownResumeIDs(ctx, postingID, nil)
		if len(known) != 1 {
			t.Errorf("KnownResumeIDs after delete = %v", known)
		}

		second, err := db.InsertResume(ctx, input)
		if err != nil {
			t.Fatalf("re-insert after soft delete failed: %v", err)
		}

		if _, err := db.Restore(ctx, id); !errors.Is(err, ErrAlreadyExists) {
			t.Errorf("Restore with active copy error = %v, want ErrAlreadyExists", err)
		}

		if _, err := db.DeletePermanent(ctx, second); err != nil {
			t.Fatalf("DeletePermanent failed: %v", err)
		}
		if _, err := db.Restore(ctx, id); err != nil {
			t.Errorf("Restore failed: %v", err)
		}
	})

	t.Run("get missing", func(t *testing.T) {
		if _, err := db.GetResume(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetResume error = %v, want ErrNotFound", err)
		}
	})
}
