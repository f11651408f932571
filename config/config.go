// Package config is the process-wide settings store. Values may change
// between sessions; callers take immutable snapshots at request-construction
// time and never read a value that changes mid-flight.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"murmur/enhance"
)

type Store struct {
	mu sync.RWMutex
	v  *viper.Viper
}

// Load reads murmur.yaml (explicit path, working directory, or the user
// config directory) plus a sibling .env for API keys, with MURMUR_* env
// overrides. A missing config file is not an error; defaults apply.
func Load(path string) (*Store, error) {
	v := viper.New()
	v.SetConfigName("murmur")
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix("MURMUR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if env := filepath.Join(filepath.Dir(path), ".env"); fileExists(env) {
			_ = godotenv.Load(env)
		}
	} else {
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			appDir := filepath.Join(dir, "murmur")
			v.AddConfigPath(appDir)
			if env := filepath.Join(appDir, ".env"); fileExists(env) {
				_ = godotenv.Load(env)
			}
		}
		if fileExists(".env") {
			_ = godotenv.Load()
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && path != "" {
			return nil, err
		}
	}

	return &Store{v: v}, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model", "")
	v.SetDefault("prompt", "")
	v.SetDefault("auto_copy", true)
	v.SetDefault("paste_enabled", true)
	v.SetDefault("replacements", map[string]string{})
	v.SetDefault("silence_auto_stop", true)

	v.SetDefault("enhance.enabled", false)
	v.SetDefault("enhance.provider", "")
	v.SetDefault("enhance.api_key", "")
	v.SetDefault("enhance.model", "")
	v.SetDefault("enhance.base_url", "")
	v.SetDefault("enhance.template", "")
	v.SetDefault("enhance.trigger_phrase", enhance.DefaultTriggerPhrase)
	v.SetDefault("enhance.clipboard_context", false)
	v.SetDefault("enhance.screen_context", false)
	v.SetDefault("enhance.timeout", enhance.DefaultBaseTimeout)
}

// ModelID returns the configured transcription model, "" when unset.
func (s *Store) ModelID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetString("model")
}

// Prompt is the context prompt handed to the engine at transcription time.
func (s *Store) Prompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetString("prompt")
}

func (s *Store) AutoCopy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetBool("auto_copy")
}

func (s *Store) PasteEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetBool("paste_enabled")
}

// Replacements is the word-replacement dictionary applied to raw transcripts.
func (s *Store) Replacements() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetStringMapString("replacements")
}

// SilenceAutoStop gates the watchdog that ends a recording after prolonged
// silence.
func (s *Store) SilenceAutoStop() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetBool("silence_auto_stop")
}

func (s *Store) ClipboardContext() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetBool("enhance.clipboard_context")
}

func (s *Store) ScreenContext() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetBool("enhance.screen_context")
}

// Set mutates one setting. Only takes effect for sessions started afterwards;
// in-flight requests hold their own snapshot.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(key, value)
}

// Enhancement builds the immutable per-call snapshot of the enhancement
// surface. The API key falls back to the provider's conventional env var when
// the store has none.
func (s *Store) Enhancement() enhance.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()

	provider := s.v.GetString("enhance.provider")
	apiKey := s.v.GetString("enhance.api_key")
	if apiKey == "" {
		apiKey = envKeyFor(provider)
	}

	timeout := s.v.GetDuration("enhance.timeout")
	if timeout <= 0 {
		timeout = enhance.DefaultBaseTimeout
	}

	return enhance.Config{
		Enabled:             s.v.GetBool("enhance.enabled"),
		Provider:            provider,
		APIKey:              apiKey,
		Model:               s.v.GetString("enhance.model"),
		BaseURL:             s.v.GetString("enhance.base_url"),
		Template:            s.v.GetString("enhance.template"),
		TriggerPhrase:       s.v.GetString("enhance.trigger_phrase"),
		UseClipboardContext: s.v.GetBool("enhance.clipboard_context"),
		UseScreenContext:    s.v.GetBool("enhance.screen_context"),
		MaxAttempts:         enhance.DefaultMaxAttempts,
		BaseTimeout:         timeout,
		BaseDelay:           enhance.DefaultBaseDelay,
		MinInterval:         enhance.DefaultMinInterval,
	}
}

func envKeyFor(provider string) string {
	switch provider {
	case enhance.ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case enhance.ProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	case enhance.ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return ""
}
