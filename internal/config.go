package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/kiln/internal/annotation"
	"github.com/starford/kiln/internal/build"
	"github.com/starford/kiln/internal/collection"
	"github.com/starford/kiln/internal/schema"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig       `yaml:"app"`
	Content     ContentConfig           `yaml:"content"`
	Build       BuildConfig             `yaml:"build"`
	Markdown    MarkdownConfig          `yaml:"markdown"`
	SQLite      SQLiteConfig            `yaml:"sqlite"`
	Auth        AuthConfig              `yaml:"auth"`
	Collections []collection.Definition `yaml:"collections"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Content.Validate(); err != nil {
		return err
	}
	if err := c.Build.Validate(); err != nil {
		return err
	}
	if err := c.Markdown.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.validateCollections()
}

func (c *Config) validateCollections() error {
	if len(c.Collections) == 0 {
		return fmt.Errorf("collections: at least one collection is required")
	}
	seen := make(map[string]bool, len(c.Collections))
	for i, def := range c.Collections {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("collections[%d]: %w", i, err)
		}
		if seen[def.Name] {
			return fmt.Errorf("collections[%d]: duplicate name %q", i, def.Name)
		}
		seen[def.Name] = true
	}
	return nil
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

// ContentConfig locates the content tree and the output directory.
type ContentConfig struct {
	Root   string `yaml:"root"`
	Output string `yaml:"output"`
}

// Validate validates the content configuration. The output directory must
// not contain the content root.
func (c *ContentConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Output, validation.Required),
	); err != nil {
		return err
	}
	root, _ := filepath.Abs(c.Root)
	out, _ := filepath.Abs(c.Output)
	if rel, err := filepath.Rel(out, root); err == nil && !strings.HasPrefix(rel, "..") {
		return fmt.Errorf("content: output %q contains the content root", c.Output)
	}
	return nil
}

// BuildConfig tunes compilation.
type BuildConfig struct {
	Concurrency      int           `yaml:"concurrency"`
	Production       bool          `yaml:"production"`
	ValidationPolicy schema.Policy `yaml:"validation_policy"`
	GitTimeout       time.Duration `yaml:"git_timeout"`
	Debounce         time.Duration `yaml:"debounce"`
}

// Validate validates the build configuration.
func (c *BuildConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Concurrency, validation.Min(0), validation.Max(256)),
		validation.Field(&c.ValidationPolicy, validation.Required,
			validation.In(schema.PolicyDrop, schema.PolicyWarn, schema.PolicyFail)),
		validation.Field(&c.GitTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// MarkdownConfig configures the Markdown processor.
type MarkdownConfig struct {
	// LanguageAliases maps fence languages to the language highlighted.
	LanguageAliases map[string]string `yaml:"language_aliases"`
	CalloutAnchor   annotation.Anchor `yaml:"callout_anchor"`
}

// Validate validates the Markdown configuration.
func (c *MarkdownConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CalloutAnchor, validation.In(annotation.AnchorMidpoint, annotation.AnchorStart)),
	)
}

// SQLiteConfig holds SQLite database configuration. An empty path
// disables the search index.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether the index is configured.
func (c *SQLiteConfig) Enabled() bool {
	return c.Path != ""
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
	// Normalise empty mode to "disabled" for backward compatibility.
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Content: ContentConfig{
			Root:   "./content",
			Output: "./.kiln",
		},
		Build: BuildConfig{
			Concurrency:      build.DefaultConcurrency,
			ValidationPolicy: schema.PolicyDrop,
			GitTimeout:       5 * time.Second,
			Debounce:         build.DefaultDebounce,
		},
		Markdown: MarkdownConfig{
			CalloutAnchor: annotation.AnchorMidpoint,
		},
		SQLite: SQLiteConfig{
			Path: "./kiln.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Collections: collection.Defaults(),
	}
}
