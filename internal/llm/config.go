// Package llm wraps the text-completion service used for posting extraction
// and resume review.
package llm

// ModelTier represents the capability level a call needs.
type ModelTier string

const (
	// TierLite is for bulk HTML-to-Markdown extraction
	TierLite ModelTier = "lite"
	// TierStandard is for resume review
	TierStandard ModelTier = "standard"
)

// Provider represents an LLM provider
type Provider string

// ProviderGemini is the Google Gemini provider
const ProviderGemini Provider = "gemini"

// DefaultModel is used for every tier unless configured otherwise.
const DefaultModel = "gemini-2.0-flash"

// Config holds the model configuration for the application
type Config struct {
	Provider    Provider
	Models      map[ModelTier]string
	Temperature float32
}

// DefaultConfig returns the default Gemini configuration
func DefaultConfig() *Config {
	return ConfigForModel(DefaultModel)
}

// ConfigForModel uses model for every tier.
func ConfigForModel(model string) *Config {
	if model == "" {
		model = DefaultModel
	}
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     model,
			TierStandard: model,
		},
		Temperature: 0.1,
	}
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := &Config{
		Provider:    c.Provider,
		Models:      make(map[ModelTier]string, len(c.Models)+1),
		Temperature: c.Temperature,
	}
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	newConfig.Models[tier] = model
	return newConfig
}
