package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/kwcat/internal/aicat"
	"github.com/starford/kwcat/internal/persist"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// AI providers.
const (
	ProviderNone      = "none"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Auth     AuthConfig        `yaml:"auth"`
	AI       AIConfig          `yaml:"ai"`
	Persist  PersistConfig     `yaml:"persist"`
	Fallback FallbackConfig    `yaml:"fallback"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("ai: %w", err)
	}
	if err := c.Persist.Validate(); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	return c.Fallback.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// AIConfig selects and tunes the AI categorization provider. An empty
// APIKey disables AI categorization; every run then uses the rule-based
// fallback.
type AIConfig struct {
	Provider        string        `yaml:"provider"`
	APIKey          string        `yaml:"api_key"`
	Model           string        `yaml:"model"`
	Endpoint        string        `yaml:"endpoint"`
	Timeout         time.Duration `yaml:"timeout"`
	Temperature     float64       `yaml:"temperature"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	SampleLimit     int           `yaml:"sample_limit"`
}

// Validate validates the AI configuration.
func (c *AIConfig) Validate() error {
	if c.Provider == "" {
		c.Provider = ProviderGemini
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.In(ProviderNone, ProviderGemini, ProviderAnthropic)),
		validation.Field(&c.Model, validation.When(c.Enabled(), validation.Required)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.Temperature, validation.Min(0.0), validation.Max(2.0)),
		validation.Field(&c.MaxOutputTokens, validation.Required, validation.Min(256)),
		validation.Field(&c.SampleLimit, validation.Required, validation.Min(1)),
	)
}

// Enabled reports whether AI categorization should be attempted.
func (c *AIConfig) Enabled() bool {
	return c.Provider != ProviderNone && c.APIKey != ""
}

// PersistConfig tunes result persistence.
//
// ReportActualStatus makes saved_to_db reflect whether every write
// succeeded. When false, saved_to_db is always true.
type PersistConfig struct {
	BatchSize          int  `yaml:"batch_size"`
	ReportActualStatus bool `yaml:"report_actual_status"`
}

// Validate validates the persistence configuration.
func (c *PersistConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BatchSize, validation.Required, validation.Min(1), validation.Max(1000)),
	)
}

// FallbackConfig points to an optional rules file for the rule-based
// categorizer.
type FallbackConfig struct {
	RulesPath string `yaml:"rules_path"`
	Watch     bool   `yaml:"watch"`
}

// Validate validates the fallback configuration.
func (c *FallbackConfig) Validate() error {
	if c.Watch && c.RulesPath == "" {
		return fmt.Errorf("fallback: watch is enabled but rules_path is empty")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./kwcat.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		AI: AIConfig{
			Provider:        ProviderGemini,
			Model:           "gemini-2.0-flash",
			Timeout:         60 * time.Second,
			Temperature:     0.3,
			MaxOutputTokens: 8192,
			SampleLimit:     aicat.DefaultSampleLimit,
		},
		Persist: PersistConfig{
			BatchSize: persist.DefaultBatchSize,
		},
	}
}
