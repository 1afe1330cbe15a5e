// Package config provides configuration loading and validation for the collector.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is read when no explicit --config flag is given and the file exists.
const DefaultConfigPath = "config.yaml"

// Config represents the full runtime configuration.
// Values are layered: defaults, then the YAML file, then environment variables.
type Config struct {
	Env       string          `yaml:"env" validate:"omitempty,oneof=dev prod"`
	Server    ServerConfig    `yaml:"server"`
	Portal    PortalConfig    `yaml:"portal"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Storage   StorageConfig   `yaml:"storage"`
	Collector CollectorConfig `yaml:"collector"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port          int    `yaml:"port" validate:"min=1,max=65535"`
	PublicBaseURL string `yaml:"public_base_url" validate:"omitempty,url"` // Used to build artifact URLs stored on records
	RateLimit     bool   `yaml:"rate_limit"`
}

// PortalConfig holds recruiting portal credentials and browser behaviour.
type PortalConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	BaseURL  string `yaml:"base_url" validate:"required,url"`
	Headless bool   `yaml:"headless"`
	ExecPath string `yaml:"exec_path"` // Optional Chrome binary override
}

// DatabaseConfig configures PostgreSQL access.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig configures the optional Redis run lock. Empty URL disables it.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// GeminiConfig configures the text-completion service.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model" validate:"required"`
}

// StorageConfig configures where generated artifacts are written.
type StorageConfig struct {
	PDFDir      string `yaml:"pdf_dir" validate:"required"`
	MarkdownDir string `yaml:"markdown_dir" validate:"required"`
}

// CollectorConfig tunes the scraping pipeline.
type CollectorConfig struct {
	ApplicantDelay      time.Duration `yaml:"applicant_delay" validate:"min=0"`
	NavigationTimeout   time.Duration `yaml:"navigation_timeout" validate:"gt=0"`
	ProbeTimeout        time.Duration `yaml:"probe_timeout" validate:"gt=0"`
	LoginTimeout        time.Duration `yaml:"login_timeout" validate:"gt=0"`
	SaveTimeout         time.Duration `yaml:"save_timeout" validate:"gt=0"`
	MaxPostings         int           `yaml:"max_postings" validate:"min=0"` // 0 means no limit
	PageSize            int           `yaml:"page_size" validate:"min=10,max=100"`
	ResolveApplicantIDs bool          `yaml:"resolve_applicant_ids"`
	Schedule            string        `yaml:"schedule"` // cron spec; empty disables scheduled runs
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Env: "prod",
		Server: ServerConfig{
			Port:          4001,
			PublicBaseURL: "http://localhost:4001",
			RateLimit:     true,
		},
		Portal: PortalConfig{
			BaseURL:  "https://www.jobkorea.co.kr",
			Headless: true,
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.0-flash",
		},
		Storage: StorageConfig{
			PDFDir:      "pdfs",
			MarkdownDir: "markdowns",
		},
		Collector: CollectorConfig{
			ApplicantDelay:      500 * time.Millisecond,
			NavigationTimeout:   30 * time.Second,
			ProbeTimeout:        3 * time.Second,
			LoginTimeout:        15 * time.Second,
			SaveTimeout:         30 * time.Second,
			PageSize:            100,
			ResolveApplicantIDs: true,
		},
	}
}

// LoadConfig loads configuration from a YAML file on top of the defaults.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	return &cfg, nil
}

// Load builds the effective configuration. An empty path falls back to
// DefaultConfigPath when that file exists, otherwise defaults are used.
// Environment variables always win.
func Load(path string) (*Config, error) {
	var cfg *Config
	switch {
	case path != "":
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case fileExists(DefaultConfigPath):
		loaded, err := LoadConfig(DefaultConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	default:
		d := Default()
		cfg = &d
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables resolved by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	str(&c.Env, "APP_ENV")
	str(&c.Portal.Username, "JOBKOREA_ID")
	str(&c.Portal.Password, "JOBKOREA_PW")
	str(&c.Portal.ExecPath, "CHROME_PATH")
	str(&c.Database.URL, "DATABASE_URL")
	str(&c.Redis.URL, "REDIS_URL")
	str(&c.Gemini.APIKey, "GEMINI_API_KEY", "GOOGLE_AI_API_KEY")
	str(&c.Gemini.Model, "GEMINI_MODEL")
	str(&c.Server.PublicBaseURL, "PUBLIC_BASE_URL")
	str(&c.Storage.PDFDir, "PDF_DIR")
	str(&c.Storage.MarkdownDir, "MARKDOWN_DIR")
	str(&c.Collector.Schedule, "COLLECT_SCHEDULE")

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config error: PORT must be an integer, got %q", v)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("HEADLESS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config error: HEADLESS must be a boolean, got %q", v)
		}
		c.Portal.Headless = b
	}
	if v, ok := lookup("RATE_LIMIT_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config error: RATE_LIMIT_ENABLED must be a boolean, got %q", v)
		}
		c.Server.RateLimit = b
	}
	return nil
}

var validate = validator.New()

// Validate checks that the configuration has valid values.
// Credentials are not required here; see RequireCollector.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config error: '%s' failed '%s' validation", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// RequireCollector checks the fields a collection run cannot start without.
func (c *Config) RequireCollector() error {
	if c.Portal.Username == "" || c.Portal.Password == "" {
		return fmt.Errorf("config error: portal credentials are required (JOBKOREA_ID / JOBKOREA_PW)")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("config error: DATABASE_URL is required")
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
