// Package artifacts stores generated PDF, Markdown and HTML files and serves
// them back by filename.
package artifacts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	// ErrInvalidFilename is returned for names that could escape the artifact directory.
	ErrInvalidFilename = errors.New("invalid filename")
	// ErrNotFound is returned when the artifact file does not exist.
	ErrNotFound = errors.New("artifact not found")
)

// Kind selects the directory an artifact lives in.
type Kind string

const (
	KindPDF      Kind = "pdf"
	KindMarkdown Kind = "markdown"
)

// Artifact describes a written file.
type Artifact struct {
	Filename string
	Path     string
	URL      string
}

// Store writes artifacts under two directories and builds their public URLs.
type Store struct {
	pdfDir      string
	markdownDir string
	baseURL     string

	mu     sync.Mutex
	lastMs int64
	now    func() time.Time
}

// NewStore creates the artifact directories if needed.
func NewStore(pdfDir, markdownDir, publicBaseURL string) (*Store, error) {
	for _, dir := range []string{pdfDir, markdownDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
		}
	}
	return &Store{
		pdfDir:      pdfDir,
		markdownDir: markdownDir,
		baseURL:     strings.TrimRight(publicBaseURL, "/"),
		now:         time.Now,
	}, nil
}

// ValidateFilename rejects names with path separators or parent references.
func ValidateFilename(name string) error {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return nil
}

// stamp returns a millisecond timestamp that is unique within this store.
func (s *Store) stamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms := s.now().UnixMilli()
	if ms <= s.lastMs {
		ms = s.lastMs + 1
	}
	s.lastMs = ms
	return ms
}

func (s *Store) dir(kind Kind) string {
	if kind == KindPDF {
		return s.pdfDir
	}
	return s.markdownDir
}

// URL is the public address the API serves an artifact at.
func (s *Store) URL(kind Kind, filename string) string {
	return fmt.Sprintf("%s/api/resumes/%s/%s", s.baseURL, kind, filename)
}

func (s *Store) write(kind Kind, filename string, data []byte) (Artifact, error) {
	if err := ValidateFilename(filename); err != nil {
		return Artifact{}, err
	}
	path := filepath.Join(s.dir(kind), filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return Artifact{Filename: filename, Path: path, URL: s.URL(kind, filename)}, nil
}

// SaveResumePDF writes a resume PDF as resume_<unix-ms>.pdf.
func (s *Store) SaveResumePDF(data []byte) (Artifact, error) {
	if len(data) == 0 {
		return Artifact{}, fmt.Errorf("empty PDF")
	}
	return s.write(KindPDF, fmt.Sprintf("resume_%d.pdf", s.stamp()), data)
}

// SaveResumeMarkdown writes the Markdown companion of a resume PDF. The name
// follows the PDF's so the pair is easy to match.
func (s *Store) SaveResumeMarkdown(pdfFilename, content string) (Artifact, error) {
	name := strings.TrimSuffix(pdfFilename, filepath.Ext(pdfFilename)) + ".md"
	return s.write(KindMarkdown, name, []byte(content))
}

// SavePostingMarkdown writes job_posting_<id>.md.
func (s *Store) SavePostingMarkdown(postingID, content string) (Artifact, error) {
	return s.write(KindMarkdown, PostingMarkdownName(postingID), []byte(content))
}

// SavePostingHTML writes the raw HTML backup job_posting_<id>.html.
func (s *Store) SavePostingHTML(postingID, html string) (Artifact, error) {
	return s.write(KindMarkdown, fmt.Sprintf("job_posting_%s.html", postingID), []byte(html))
}

// PostingMarkdownName is the file name of a posting's Markdown.
func PostingMarkdownName(postingID string) string {
	return fmt.Sprintf("job_posting_%s.md", postingID)
}

// Path resolves a stored artifact, checking the name and that it exists.
func (s *Store) Path(kind Kind, filename string) (string, error) {
	if err := ValidateFilename(filename); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir(kind), filename)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	return path, nil
}

// Read returns a stored artifact's content.
func (s *Store) Read(kind Kind, filename string) ([]byte, error) {
	path, err := s.Path(kind, filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return data, nil
}

// Remove deletes a stored artifact. A file that is already gone is not an error.
func (s *Store) Remove(kind Kind, filename string) error {
	if err := ValidateFilename(filename); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir(kind), filename)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", filename, err)
	}
	return nil
}

// FilenameFromURL returns the last path segment of an artifact URL.
func FilenameFromURL(u string) string {
	if u == "" {
		return ""
	}
	if i := strings.LastIndex(u, "/"); i >= 0 {
		return u[i+1:]
	}
	return u
}
