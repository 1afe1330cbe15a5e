package portal

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/recruit-ops/resume-collector/internal/artifacts"
	"github.com/recruit-ops/resume-collector/internal/cascade"
	"github.com/recruit-ops/resume-collector/internal/extract"
	"github.com/recruit-ops/resume-collector/internal/llm"
)

// MinDetailLength is the character count a detail layer must reach to be accepted.
const MinDetailLength = 200

// Layer names recorded as a posting's detail_source.
const (
	LayerStructured = "structured"
	LayerHeuristic  = "heuristic"
	LayerAI         = "ai"
	LayerFallback   = "fallback"
)

// PostingArtifacts stores posting files.
type PostingArtifacts interface {
	SavePostingMarkdown(postingID, content string) (artifacts.Artifact, error)
	SavePostingHTML(postingID, html string) (artifacts.Artifact, error)
}

// Detail is the extracted body of a posting.
type Detail struct {
	PostingID string
	Title     string
	Markdown  string
	HTML      string
	Struct    map[string][]string
	Source    string // layer that produced Markdown
	Fallback  bool   // Markdown is the raw-text fallback
	Attempts  []cascade.Attempt
}

// Success reports whether any layer produced content.
func (d *Detail) Success() bool {
	return d != nil && d.Markdown != ""
}

// DetailExtractor turns a posting page into sectioned Markdown.
type DetailExtractor struct {
	urls      URLs
	timeouts  Timeouts
	ai        llm.Client
	artifacts PostingArtifacts
	logger    *zap.Logger
}

// NewDetailExtractor creates a detail extractor. ai may be nil, in which
// case the AI layer is skipped.
func NewDetailExtractor(urls URLs, timeouts Timeouts, ai llm.Client, store PostingArtifacts, logger *zap.Logger) *DetailExtractor {
	return &DetailExtractor{
		urls:      urls,
		timeouts:  timeouts.withDefaults(),
		ai:        ai,
		artifacts: store,
		logger:    logger,
	}
}

// Extract loads the posting and runs the extraction layers in order:
// structured walk, heuristic segmentation, AI rewrite and raw text. The
// first layer reaching MinDetailLength wins.
func (d *DetailExtractor) Extract(ctx context.Context, page Page, postingID, title string) (*Detail, error) {
	start := time.Now()
	html, err := d.load(ctx, page, postingID)
	if err != nil {
		return nil, &ExtractionError{What: "posting detail", PostingID: postingID, Err: err}
	}

	res := cascade.Run(ctx, MinDetailLength,
		cascade.Layer{Name: LayerStructured, Run: func(context.Context) (cascade.Output, error) {
			p, err := extract.Structured(html, postingID, title)
			if err != nil {
				return cascade.Output{}, err
			}
			return cascade.Output{Content: p.Markdown()}, nil
		}},
		cascade.Layer{Name: LayerHeuristic, Run: func(context.Context) (cascade.Output, error) {
			p, err := extract.Heuristic(html, postingID, title)
			if err != nil {
				return cascade.Output{}, err
			}
			if len(p.Sections) == 0 {
				return cascade.Output{}, nil
			}
			return cascade.Output{Content: p.Markdown()}, nil
		}},
		cascade.Layer{Name: LayerAI, Run: func(ctx context.Context) (cascade.Output, error) {
			if d.ai == nil {
				return cascade.Output{}, llm.ErrNotConfigured
			}
			md, err := llm.PostingMarkdown(ctx, d.ai, html, postingID, title)
			if err != nil {
				return cascade.Output{}, err
			}
			return cascade.Output{Content: md}, nil
		}},
		cascade.Layer{Name: LayerFallback, Run: func(context.Context) (cascade.Output, error) {
			md, err := extract.RawMarkdown(html, postingID, title)
			if err != nil {
				return cascade.Output{}, err
			}
			return cascade.Output{Content: md, Fallback: true}, nil
		}},
	)

	for _, a := range res.Attempts {
		if a.Err != nil && !errors.Is(a.Err, llm.ErrNotConfigured) {
			d.logger.Warn("detail layer failed",
				zap.String("posting_id", postingID), zap.String("layer", a.Layer), zap.Error(a.Err))
		}
	}
	if res.Content == "" {
		return nil, &ExtractionError{What: "posting detail", PostingID: postingID, Err: errors.New("every extraction layer came back empty")}
	}

	detail := &Detail{
		PostingID: postingID,
		Title:     title,
		Markdown:  res.Content,
		HTML:      html,
		Struct:    extract.ParseSections(res.Content),
		Source:    res.Layer,
		Fallback:  res.Fallback,
		Attempts:  res.Attempts,
	}

	if d.artifacts != nil {
		if _, err := d.artifacts.SavePostingHTML(postingID, html); err != nil {
			d.logger.Warn("posting HTML backup failed", zap.String("posting_id", postingID), zap.Error(err))
		}
		if _, err := d.artifacts.SavePostingMarkdown(postingID, res.Content); err != nil {
			d.logger.Warn("posting markdown file write failed", zap.String("posting_id", postingID), zap.Error(err))
		}
	}

	d.logger.Info("posting detail extracted",
		zap.String("posting_id", postingID),
		zap.String("layer", res.Layer),
		zap.Bool("fallback", res.Fallback),
		zap.Int("length", cascade.Len(res.Content)),
		zap.Duration("duration", time.Since(start)))
	return detail, nil
}

// load fetches the content-only view, falling back to the full posting page
// when the content view fails or is nearly empty.
func (d *DetailExtractor) load(ctx context.Context, page Page, postingID string) (string, error) {
	var best string
	var bestLen int
	var lastErr error

	for _, u := range []string{d.urls.PostingContent(postingID), d.urls.PostingRead(postingID)} {
		html, err := d.fetch(ctx, page, u)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			d.logger.Debug("posting view failed", zap.String("url", u), zap.Error(err))
			continue
		}

		text, _ := extract.MainText(html)
		n := cascade.Len(text)
		if n >= MinDetailLength {
			return html, nil
		}
		if best == "" || n > bestLen {
			best, bestLen = html, n
		}
	}

	if best != "" {
		return best, nil
	}
	return "", lastErr
}

func (d *DetailExtractor) fetch(ctx context.Context, page Page, u string) (string, error) {
	if err := page.Navigate(ctx, u); err != nil {
		return "", &NavigationError{URL: u, Err: err}
	}
	if loc, err := page.Location(ctx); err == nil && IsLoginURL(loc) {
		return "", ErrSessionExpired
	}
	if err := page.WaitVisible(ctx, "body", d.timeouts.Probe); err != nil {
		d.logger.Debug("posting page not ready, reading what is there", zap.String("url", u), zap.Error(err))
	}
	return page.HTML(ctx)
}
