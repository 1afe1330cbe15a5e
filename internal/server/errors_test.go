package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/recruit-ops/resume-collector/internal/artifacts"
	"github.com/recruit-ops/resume-collector/internal/collector"
	"github.com/recruit-ops/resume-collector/internal/db"
	"github.com/recruit-ops/resume-collector/internal/llm"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &ErrValidation{Field: "status", Message: "is required"}, http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("parse: %w", &ErrValidation{Field: "limit"}), http.StatusBadRequest},
		{"invalid filename", fmt.Errorf("%w: %q", artifacts.ErrInvalidFilename, "../x"), http.StatusBadRequest},
		{"resume not found", fmt.Errorf("get resume: %w", db.ErrNotFound), http.StatusNotFound},
		{"artifact not found", artifacts.ErrNotFound, http.StatusNotFound},
		{"run in progress", collector.ErrRunInProgress, http.StatusConflict},
		{"duplicate", db.ErrAlreadyExists, http.StatusConflict},
		{"no model", llm.ErrNotConfigured, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrValidation_Error(t *testing.T) {
	err := &ErrValidation{Field: "id", Message: "must be a UUID"}
	assert.Equal(t, "validation error: id - must be a UUID", err.Error())
}
