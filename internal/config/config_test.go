package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadConfig_ValidYAML(t *testing.T) {
	content := `
env: dev
server:
  port: 5050
portal:
  username: corp-user
  password: secret
  headless: false
collector:
  applicant_delay: 750ms
  max_postings: 3
  schedule: "@every 6h"
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, 5050, cfg.Server.Port)
	assert.Equal(t, "corp-user", cfg.Portal.Username)
	assert.False(t, cfg.Portal.Headless)
	assert.Equal(t, 750*time.Millisecond, cfg.Collector.ApplicantDelay)
	assert.Equal(t, 3, cfg.Collector.MaxPostings)
	assert.Equal(t, "@every 6h", cfg.Collector.Schedule)

	// untouched fields keep their defaults
	assert.Equal(t, "https://www.jobkorea.co.kr", cfg.Portal.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Collector.NavigationTimeout)
	assert.Equal(t, "pdfs", cfg.Storage.PDFDir)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("server: [unclosed"), 0644))

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config YAML")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestApplyEnv_Overrides(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"JOBKOREA_ID":       "env-user",
		"JOBKOREA_PW":       "env-pass",
		"DATABASE_URL":      "postgres://localhost/resumes",
		"GOOGLE_AI_API_KEY": "fallback-key",
		"PORT":              "8088",
		"HEADLESS":          "false",
		"COLLECT_SCHEDULE":  "@hourly",
	}))
	require.NoError(t, err)

	assert.Equal(t, "env-user", cfg.Portal.Username)
	assert.Equal(t, "env-pass", cfg.Portal.Password)
	assert.Equal(t, "postgres://localhost/resumes", cfg.Database.URL)
	assert.Equal(t, "fallback-key", cfg.Gemini.APIKey)
	assert.Equal(t, 8088, cfg.Server.Port)
	assert.False(t, cfg.Portal.Headless)
	assert.Equal(t, "@hourly", cfg.Collector.Schedule)
}

func TestApplyEnv_GeminiKeyPrecedence(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{
		"GEMINI_API_KEY":    "primary",
		"GOOGLE_AI_API_KEY": "secondary",
	})))
	assert.Equal(t, "primary", cfg.Gemini.APIKey)
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad port", map[string]string{"PORT": "abc"}, "PORT must be an integer"},
		{"bad headless", map[string]string{"HEADLESS": "maybe"}, "HEADLESS must be a boolean"},
		{"bad rate limit", map[string]string{"RATE_LIMIT_ENABLED": "x"}, "RATE_LIMIT_ENABLED must be a boolean"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			err := cfg.ApplyEnv(envMap(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults are valid", func(_ *Config) {}, false},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, true},
		{"page size too large", func(c *Config) { c.Collector.PageSize = 500 }, true},
		{"zero navigation timeout", func(c *Config) { c.Collector.NavigationTimeout = 0 }, true},
		{"unknown env", func(c *Config) { c.Env = "staging" }, true},
		{"missing pdf dir", func(c *Config) { c.Storage.PDFDir = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "config error")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRequireCollector(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.RequireCollector())

	cfg.Portal.Username = "u"
	cfg.Portal.Password = "p"
	err := cfg.RequireCollector()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	cfg.Database.URL = "postgres://x"
	assert.NoError(t, cfg.RequireCollector())
}
