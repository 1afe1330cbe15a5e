package portal

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/recruit-ops/resume-collector/internal/artifacts"
	"github.com/recruit-ops/resume-collector/internal/db"
	"github.com/recruit-ops/resume-collector/internal/extract"
)

// NamePlaceholder is stored when the applicant's name cannot be read.
const NamePlaceholder = "이름 없음"

var mobileNumber = regexp.MustCompile(`01[016789][-.\s]?\d{3,4}[-.\s]?\d{4}`)

// ResumeArtifacts stores resume files.
type ResumeArtifacts interface {
	SaveResumePDF(data []byte) (artifacts.Artifact, error)
	SaveResumeMarkdown(pdfFilename, content string) (artifacts.Artifact, error)
	Remove(kind artifacts.Kind, filename string) error
}

// ResumeExtractor opens applicant resumes and builds their records.
type ResumeExtractor struct {
	timeouts  Timeouts
	artifacts ResumeArtifacts
	logger    *zap.Logger
	now       func() time.Time
}

// NewResumeExtractor creates a resume extractor writing files to store.
func NewResumeExtractor(timeouts Timeouts, store ResumeArtifacts, logger *zap.Logger) *ResumeExtractor {
	return &ResumeExtractor{
		timeouts:  timeouts.withDefaults(),
		artifacts: store,
		logger:    logger,
		now:       time.Now,
	}
}

// Extract opens a's resume from the applicant list on page and returns the
// record to store. The resume page is closed on every path.
//
// ErrSessionExpired means the portal sent us to the login page.
// ErrAlreadyKnown means the ID read from the resume URL is in known.
// Field extraction never fails the record; PDF generation does.
func (r *ResumeExtractor) Extract(ctx context.Context, page Page, a Applicant, posting Posting, known Known) (*db.ResumeInput, error) {
	view, err := page.OpenFrom(ctx, a.Link, r.timeouts.Navigation)
	if err != nil {
		return nil, &NavigationError{URL: a.Link, Err: err}
	}
	defer func() {
		if err := view.Close(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn("failed to close resume page", zap.String("resume_id", a.ResumeID), zap.Error(err))
		}
	}()

	loc, err := view.Location(ctx)
	if err != nil {
		return nil, &NavigationError{URL: a.Link, Err: err}
	}
	if IsLoginURL(loc) {
		r.logger.Warn("session expired while opening resume",
			zap.String("posting_id", posting.ID), zap.String("resume_id", a.ResumeID), zap.String("url", loc))
		return nil, ErrSessionExpired
	}

	resumeID := a.ResumeID
	if fromURL := queryParam(loc, resumeIDParams...); fromURL != "" {
		if fromURL != a.ResumeID {
			r.logger.Warn("resume ID in URL differs from list row",
				zap.String("posting_id", posting.ID),
				zap.String("resume_id", fromURL),
				zap.String("row_resume_id", a.ResumeID))
		}
		resumeID = fromURL
	}
	if known != nil && known.Contains(resumeID) {
		return nil, ErrAlreadyKnown
	}

	if err := view.WaitVisible(ctx, selResumeRoot, r.timeouts.Navigation); err != nil {
		r.logger.Debug("resume root not visible, reading what is there",
			zap.String("resume_id", resumeID), zap.Error(err))
	}

	in := &db.ResumeInput{
		ResumeExternalID: resumeID,
		PostingID:        posting.ID,
		JobPostingTitle:  posting.Title,
		ApplicantName:    NamePlaceholder,
		ApplicationDate:  r.now(),
	}
	if in.JobPostingTitle == "" {
		in.JobPostingTitle = "채용공고_" + posting.ID
	}

	if html, err := view.HTML(ctx); err != nil {
		r.logger.Warn("failed to read resume page", zap.String("resume_id", resumeID), zap.Error(err))
	} else if doc, err := extract.Parse(html); err == nil {
		readResumeFields(doc, in)
	}

	pdfData, err := view.PDF(ctx)
	if err != nil {
		return nil, &ExtractionError{What: "resume PDF " + resumeID, PostingID: posting.ID, Err: err}
	}
	pdfFile, err := r.artifacts.SaveResumePDF(pdfData)
	if err != nil {
		return nil, &ExtractionError{What: "resume PDF " + resumeID, PostingID: posting.ID, Err: err}
	}
	in.PDFURL = pdfFile.URL

	md, err := artifacts.PDFToMarkdown(pdfData, artifacts.ResumeMeta{
		ApplicantName:   in.ApplicantName,
		PostingID:       posting.ID,
		PostingTitle:    in.JobPostingTitle,
		ResumeID:        resumeID,
		PDFURL:          pdfFile.URL,
		ApplicationDate: in.ApplicationDate.Format("2006-01-02 15:04"),
	})
	if err != nil {
		r.logger.Warn("resume markdown conversion failed", zap.String("resume_id", resumeID), zap.Error(err))
	} else if mdFile, err := r.artifacts.SaveResumeMarkdown(pdfFile.Filename, md); err != nil {
		r.logger.Warn("resume markdown write failed", zap.String("resume_id", resumeID), zap.Error(err))
	} else {
		in.MarkdownURL = mdFile.URL
	}

	r.logger.Info("resume extracted",
		zap.String("posting_id", posting.ID),
		zap.String("resume_id", resumeID),
		zap.String("applicant", in.ApplicantName),
		zap.String("pdf", pdfFile.Filename))
	return in, nil
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if t := extract.Normalize(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

// readResumeFields fills in whatever fields the resume view exposes.
func readResumeFields(doc *goquery.Document, in *db.ResumeInput) {
	if name := firstText(doc, selResumeName, selResumeNameAlt); name != "" {
		in.ApplicantName = name
	}

	doc.Find(selResumeValues).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := mobileNumber.FindString(s.Text()); m != "" {
			in.ApplicantPhone = m
			return false
		}
		return true
	})

	if mail := doc.Find(selResumeEmail).First(); mail.Length() > 0 {
		addr := strings.TrimPrefix(mail.AttrOr("href", ""), "mailto:")
		if i := strings.IndexByte(addr, '?'); i >= 0 {
			addr = addr[:i]
		}
		if addr = strings.TrimSpace(addr); addr == "" {
			addr = strings.TrimSpace(mail.Text())
		}
		in.ApplicantEmail = addr
	}

	edu := doc.Find(selEduFirst).First()
	in.Education = db.Education{
		School: extract.Normalize(edu.Find(selEduName).First().Text()),
		Major:  extract.Normalize(edu.Find(selEduLine).First().Text()),
		Status: firstText(doc, selEduState),
	}
	in.Career = db.Career{
		Company:  firstText(doc, selCareerCompany),
		Position: firstText(doc, selCareerPosition),
	}
}

// Discard removes the files Extract wrote for in, for a record that was not
// stored.
func (r *ResumeExtractor) Discard(in *db.ResumeInput) {
	if in == nil {
		return
	}
	files := []struct {
		kind artifacts.Kind
		url  string
	}{
		{artifacts.KindPDF, in.PDFURL},
		{artifacts.KindMarkdown, in.MarkdownURL},
	}
	for _, f := range files {
		name := artifacts.FilenameFromURL(f.url)
		if name == "" {
			continue
		}
		if err := r.artifacts.Remove(f.kind, name); err != nil {
			r.logger.Warn("failed to remove unsaved resume file",
				zap.String("resume_id", in.ResumeExternalID), zap.String("file", name), zap.Error(err))
		}
	}
}
