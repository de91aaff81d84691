package internal

import "io"

// Mode selects what Run does.
type Mode string

// Run modes.
const (
	// ModeBuild compiles once, writes the output and exits.
	ModeBuild Mode = "build"
	// ModeWatch rebuilds on every change to the content tree.
	ModeWatch Mode = "watch"
	// ModeServe watches and serves the read API.
	ModeServe Mode = "serve"
	// ModeMCP watches and serves the MCP tools over stdio.
	ModeMCP Mode = "mcp"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	mode      Mode
	version   string
	logOutput io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithMode sets the run mode. The default is ModeServe.
func WithMode(m Mode) Option {
	return func(a *application) {
		a.mode = m
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithLogOutput redirects the JSON log. It defaults to stdout, or stderr
// in MCP mode where stdout carries the protocol.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}
