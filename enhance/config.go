package enhance

import "time"

// Provider identifiers accepted in Config.Provider.
const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

const (
	DefaultTriggerPhrase = "hey"
	DefaultMaxAttempts   = 3
	DefaultBaseTimeout   = 30 * time.Second
	DefaultBaseDelay     = time.Second
	DefaultMinInterval   = time.Second
)

// Config is an immutable snapshot of the enhancement surface, rebuilt from the
// settings store at call time. A request never reads a value that changes
// mid-flight.
type Config struct {
	Enabled  bool
	Provider string
	APIKey   string
	Model    string
	// BaseURL overrides the provider endpoint; empty selects the default.
	BaseURL string

	// Template is the active instruction template (user-authored or
	// predefined mode). Empty selects the built-in cleanup template.
	Template string
	// TriggerPhrase switches to the conversational-assistant template when
	// the transcript starts with it followed by a separator.
	TriggerPhrase string

	UseClipboardContext bool
	UseScreenContext    bool

	MaxAttempts int
	BaseTimeout time.Duration
	BaseDelay   time.Duration
	MinInterval time.Duration
}

// withDefaults fills the zero values a caller left unset.
func (c Config) withDefaults() Config {
	if c.TriggerPhrase == "" {
		c.TriggerPhrase = DefaultTriggerPhrase
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseTimeout <= 0 {
		c.BaseTimeout = DefaultBaseTimeout
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MinInterval <= 0 {
		c.MinInterval = DefaultMinInterval
	}
	return c
}

// Configured reports whether the snapshot names a usable provider. The local
// provider needs no API key.
func (c Config) Configured() bool {
	switch c.Provider {
	case ProviderOllama:
		return true
	case ProviderOpenAI, ProviderGemini, ProviderAnthropic:
		return c.APIKey != ""
	}
	return false
}
