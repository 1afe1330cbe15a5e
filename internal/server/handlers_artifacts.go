package server

import (
	"fmt"
	"net/http"
	"os"

	"github.com/recruit-ops/resume-collector/internal/artifacts"
)

// serveArtifact streams a stored file with the given headers.
func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, kind artifacts.Kind, contentType, disposition string) {
	name := r.PathValue("filename")
	path, err := s.deps.Files.Path(kind, name)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: %s", artifacts.ErrNotFound, name))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// handlePDF handles GET /api/resumes/pdf/{filename}
func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, artifacts.KindPDF, "application/pdf", "inline")
}

// handleMarkdownDownload handles GET /api/resumes/markdown/{filename}
func (s *Server) handleMarkdownDownload(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, artifacts.KindMarkdown, "text/markdown; charset=utf-8", "attachment")
}

// handleMarkdownView handles GET /api/resumes/markdown/{filename}/view
func (s *Server) handleMarkdownView(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	data, err := s.deps.Files.Read(artifacts.KindMarkdown, name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.dataResponse(w, map[string]string{"filename": name, "content": string(data)})
}
