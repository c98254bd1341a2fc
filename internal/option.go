package internal

type application struct {
	config *Config
	mcp    bool
}

// Option configures the application at startup.
type Option func(*application)

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(app *application) {
		app.config = cfg
	}
}

// WithMCP runs the MCP stdio server instead of the HTTP server.
func WithMCP() Option {
	return func(app *application) {
		app.mcp = true
	}
}
