// Package collector runs the resume collection pipeline: log in, walk the
// active postings, cache each posting's detail, and store every applicant
// resume not seen before.
package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/recruit-ops/resume-collector/internal/browser"
	"github.com/recruit-ops/resume-collector/internal/db"
	"github.com/recruit-ops/resume-collector/internal/dedup"
	"github.com/recruit-ops/resume-collector/internal/logging"
	"github.com/recruit-ops/resume-collector/internal/portal"
)

// Store is the persistence a run needs.
type Store interface {
	dedup.Store
	HasPostingDetail(ctx context.Context, postingID string) (bool, error)
	UpsertJobPosting(ctx context.Context, input *db.JobPostingInput) (*db.JobPosting, error)
}

// Session is a browser session with one main page.
type Session interface {
	Page() browser.Page
	Close() error
}

// Launcher opens the browser session for one run.
type Launcher func(ctx context.Context) (Session, error)

// Deps are the parts an Orchestrator drives.
type Deps struct {
	Launch     Launcher
	Auth       *portal.Authenticator
	Scanner    *portal.Scanner
	Details    *portal.DetailExtractor
	Applicants *portal.Enumerator
	Resumes    *portal.ResumeExtractor
	Store      Store
	Lock       Locker       // defaults to a MemoryLock
	Summaries  SummaryStore // defaults to MemorySummaries
	Logger     *zap.Logger
}

// Options tune a run.
type Options struct {
	ApplicantDelay time.Duration
	SaveTimeout    time.Duration
}

// Orchestrator sequences one collection run at a time.
type Orchestrator struct {
	deps  Deps
	opts  Options
	gate  *dedup.Gate
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates an orchestrator.
func New(deps Deps, opts Options) *Orchestrator {
	if deps.Lock == nil {
		deps.Lock = &MemoryLock{}
	}
	if deps.Summaries == nil {
		deps.Summaries = &MemorySummaries{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Orchestrator{
		deps:  deps,
		opts:  opts,
		gate:  dedup.NewGate(deps.Store, opts.SaveTimeout, deps.Logger),
		sleep: sleepCtx,
		now:   time.Now,
	}
}

// maxLoginsPerPosting bounds how often one posting may log in again after
// the session expires under it.
const maxLoginsPerPosting = 3

var errLoginAgain = errors.New("session expired and login failed")

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastResult returns the summary of the most recent finished run, or nil.
func (o *Orchestrator) LastResult(ctx context.Context) (*Result, error) {
	return o.deps.Summaries.Last(ctx)
}

// Run performs a collection run. It returns ErrRunInProgress if another run
// holds the lock. A run-fatal failure (browser start, login, listing) is
// returned as an error together with the partial Result; per-posting and
// per-applicant failures are only counted.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	release, err := o.deps.Lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := o.run(ctx)
	if err != nil {
		res.Success = false
		res.Error = err.Error()
	}
	if serr := o.deps.Summaries.SaveLast(context.WithoutCancel(ctx), res); serr != nil {
		o.deps.Logger.Warn("failed to store run summary", zap.Error(serr))
	}
	return res, err
}

func (o *Orchestrator) run(ctx context.Context) (res *Result, err error) {
	log := o.deps.Logger
	start := o.now()
	res = newResult(start)
	defer func() {
		res.Duration = o.now().Sub(start)
	}()

	log.Info("collection run started")

	session, err := o.deps.Launch(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.Warn("failed to close browser", zap.Error(cerr))
		}
	}()
	page := session.Page()

	if err := o.deps.Auth.Login(ctx, page); err != nil {
		return res, err
	}

	postings, err := o.deps.Scanner.Scan(ctx, page)
	if err != nil {
		return res, fmt.Errorf("failed to read posting list: %w", err)
	}
	res.JobPostingCount = len(postings)

	for _, p := range postings {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		summary, err := o.processPosting(ctx, page, p, res)
		res.add(summary)

		if errors.Is(err, errLoginAgain) {
			return res, err
		}
		if errors.Is(err, portal.ErrSessionExpired) {
			log.Warn("session expired, logging in again", zap.String("posting_id", p.ID))
			if lerr := o.deps.Auth.Login(ctx, page); lerr != nil {
				return res, fmt.Errorf("session expired and login failed: %w", lerr)
			}
		}
	}

	res.Success = true
	log.Info("collection run finished",
		logging.OutcomeSuccess,
		zap.Int("postings", res.JobPostingCount),
		zap.Int("saved", res.Count),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", o.now().Sub(start)))
	return res, nil
}

// processPosting handles one posting. Errors are recorded on the summary;
// the returned error is only for the caller to react to session expiry.
func (o *Orchestrator) processPosting(ctx context.Context, page browser.Page, p portal.Posting, res *Result) (PostingSummary, error) {
	log := o.deps.Logger.With(zap.String("posting_id", p.ID))
	summary := PostingSummary{PostingID: p.ID, Title: p.Title}
	if p.Diverged() {
		summary.ApplicantPostingID = p.ApplicantID
	}
	fail := func(err error) (PostingSummary, error) {
		summary.Error = err.Error()
		log.Error("posting failed", zap.Error(err))
		return summary, err
	}

	source, err := o.ensureDetail(ctx, page, p)
	if err != nil {
		if errors.Is(err, portal.ErrSessionExpired) || ctx.Err() != nil {
			return fail(err)
		}
		// Applicants are still collected without a cached detail.
		log.Warn("posting detail not cached", zap.Error(err))
		summary.Error = err.Error()
	}
	summary.DetailSource = source

	set, err := dedup.Seed(ctx, o.deps.Store, p.ID)
	if err != nil {
		return fail(err)
	}

	applicants, err := o.deps.Applicants.Enumerate(ctx, page, p.ApplicantPostingID(), set)
	if err != nil {
		return fail(err)
	}

	// Rows left unopened when the posting stops early still count as seen
	// and failed, so the summary always adds up.
	attempted := make(map[string]bool, len(applicants))
	abandon := func(rest []portal.Applicant) {
		for _, a := range rest {
			if !attempted[a.ResumeID] {
				attempted[a.ResumeID] = true
				summary.Seen++
				summary.Failed++
			}
		}
	}

	logins := 0
	for {
		expired := -1
		for i, a := range applicants {
			if attempted[a.ResumeID] {
				continue
			}
			if len(attempted) > 0 {
				if err := o.sleep(ctx, o.opts.ApplicantDelay); err != nil {
					abandon(applicants[i:])
					return fail(err)
				}
			}
			attempted[a.ResumeID] = true

			summary.Seen++
			saved, err := o.collectApplicant(ctx, page, p, a, set)
			switch {
			case err == nil && saved != nil:
				summary.Saved++
				res.Resumes = append(res.Resumes, *saved)
			case err == nil:
				summary.Skipped++
			default:
				summary.Failed++
				log.Error("applicant failed",
					zap.String("resume_id", a.ResumeID), zap.Int("row", a.Row), zap.Error(err))
				if ctx.Err() != nil {
					abandon(applicants[i+1:])
					return fail(ctx.Err())
				}
				if errors.Is(err, portal.ErrSessionExpired) {
					expired = i
				}
			}
			if expired >= 0 {
				break
			}
		}
		if expired < 0 {
			break
		}

		rest := applicants[expired+1:]
		if logins >= maxLoginsPerPosting {
			abandon(rest)
			return fail(portal.ErrSessionExpired)
		}
		logins++
		log.Warn("session expired while collecting, logging in again", zap.Int("attempt", logins))
		if err := o.deps.Auth.Login(ctx, page); err != nil {
			abandon(rest)
			return fail(fmt.Errorf("%w: %w", errLoginAgain, err))
		}

		// Saved applicants are in the set now, so the list only shows what is left.
		applicants, err = o.deps.Applicants.Enumerate(ctx, page, p.ApplicantPostingID(), set)
		if err != nil {
			abandon(rest)
			return fail(err)
		}
	}

	log.Info("posting done",
		zap.Int("seen", summary.Seen),
		zap.Int("saved", summary.Saved),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// ensureDetail stores the posting's detail unless it is already stored and
// returns the layer that produced it.
func (o *Orchestrator) ensureDetail(ctx context.Context, page browser.Page, p portal.Posting) (string, error) {
	cached, err := o.deps.Store.HasPostingDetail(ctx, p.ID)
	if err != nil {
		return "", fmt.Errorf("failed to check posting detail: %w", err)
	}
	if cached {
		o.deps.Logger.Debug("posting detail already stored", zap.String("posting_id", p.ID))
		return DetailCached, nil
	}

	input := &db.JobPostingInput{PostingID: p.ID, Title: p.Title}
	if p.Diverged() {
		input.ApplicantPostingID = p.ApplicantID
	}

	detail, extractErr := o.deps.Details.Extract(ctx, page, p.ID, p.Title)
	if extractErr == nil {
		input.DetailMarkdown = detail.Markdown
		input.DetailHTML = detail.HTML
		input.DetailStruct = detail.Struct
		input.DetailSource = detail.Source
	}

	// The posting row is written even without a detail so resumes have a title to join.
	if _, err := o.deps.Store.UpsertJobPosting(ctx, input); err != nil {
		return input.DetailSource, fmt.Errorf("failed to save posting: %w", err)
	}
	return input.DetailSource, extractErr
}

// collectApplicant extracts and saves one applicant. A nil summary with a
// nil error is a skip.
func (o *Orchestrator) collectApplicant(ctx context.Context, page browser.Page, p portal.Posting, a portal.Applicant, set *dedup.WorkingSet) (*ResumeSummary, error) {
	if err := o.deps.Applicants.Reacquire(ctx, page, a); err != nil {
		return nil, err
	}
	in, err := o.deps.Resumes.Extract(ctx, page, a, p, set)
	if errors.Is(err, portal.ErrAlreadyKnown) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	saved, err := o.gate.Save(ctx, set, in)
	if err != nil {
		o.deps.Resumes.Discard(in)
		return nil, err
	}
	if !saved.Saved {
		o.deps.Resumes.Discard(in)
		return nil, nil
	}
	return &ResumeSummary{
		ID:            saved.ID,
		ResumeID:      in.ResumeExternalID,
		PostingID:     in.PostingID,
		ApplicantName: in.ApplicantName,
		PDFURL:        in.PDFURL,
	}, nil
}
