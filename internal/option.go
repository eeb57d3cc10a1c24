package internal

import "github.com/starford/kwcat/internal/aicat"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config   *Config
	version  string
	provider aicat.Provider
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithAIProvider overrides the provider built from the ai config section.
func WithAIProvider(p aicat.Provider) Option {
	return func(a *application) {
		a.provider = p
	}
}
