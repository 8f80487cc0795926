// Package config provides user configuration management,
// including reading and writing the ghrest configuration file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ghrest.dev/ghrest/internal/transport"
)

// Author is the identity recorded on commits ghrest creates
type Author struct {
	Name  string `yaml:"name,omitempty"`
	Email string `yaml:"email,omitempty"`
}

// Config represents the user configuration
type Config struct {
	APIURL             string        `yaml:"api_url,omitempty"`
	Token              string        `yaml:"token,omitempty"`
	Username           string        `yaml:"username,omitempty"`
	Password           string        `yaml:"password,omitempty"`
	UserAgent          string        `yaml:"user_agent,omitempty"`
	UseETags           *bool         `yaml:"use_etags,omitempty"`
	DegradePatch       bool          `yaml:"degrade_patch,omitempty"`
	Timeout            time.Duration `yaml:"timeout,omitempty"`
	BooleanTrueStatus  int           `yaml:"boolean_true_status,omitempty"`
	BooleanFalseStatus int           `yaml:"boolean_false_status,omitempty"`
	BlobConcurrency    int           `yaml:"blob_concurrency,omitempty"`
	Author             Author        `yaml:"author,omitempty"`

	// Repo and Branch are the defaults for --repo and --branch
	Repo   string `yaml:"repo,omitempty"`
	Branch string `yaml:"branch,omitempty"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		APIURL:             transport.DefaultBaseURL,
		UserAgent:          transport.DefaultUserAgent,
		BooleanTrueStatus:  http.StatusNoContent,
		BooleanFalseStatus: http.StatusNotFound,
		Branch:             "main",
	}
}

// DefaultPath returns $GHREST_CONFIG, or config.yaml in the user config directory
func DefaultPath() string {
	if p := os.Getenv("GHREST_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "ghrest", "config.yaml")
}

// Load reads the configuration file at path and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// ReadFile reads the configuration file at path without environment overrides
func ReadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Config doesn't exist - keep defaults
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Save writes the configuration to path, creating its directory
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.Token = v
	}
	if v := os.Getenv("GHREST_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("GHREST_USERNAME"); v != "" {
		c.Username = v
	}
	if v := os.Getenv("GHREST_PASSWORD"); v != "" {
		c.Password = v
	}
}

// ETagsEnabled reports whether conditional requests are on. They default to on.
func (c *Config) ETagsEnabled() bool {
	return c.UseETags == nil || *c.UseETags
}

// TransportConfig converts the configuration into transport settings
func (c *Config) TransportConfig(logger *slog.Logger) transport.Config {
	return transport.Config{
		BaseURL:      c.APIURL,
		Token:        c.Token,
		Username:     c.Username,
		Password:     c.Password,
		UserAgent:    c.UserAgent,
		UseETags:     c.ETagsEnabled(),
		DegradePatch: c.DegradePatch,
		TrueStatus:   c.BooleanTrueStatus,
		FalseStatus:  c.BooleanFalseStatus,
		Timeout:      c.Timeout,
		Logger:       logger,
	}
}

// SplitRepo parses "owner/name"
func SplitRepo(s string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(s, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid repository %q: expected owner/name", s)
	}
	return owner, name, nil
}

// Keys lists the settable configuration keys
var Keys = []string{
	"api-url", "token", "username", "user-agent", "use-etags", "degrade-patch",
	"timeout", "blob-concurrency", "author.name", "author.email", "repo", "branch",
}

// Get returns the value of a configuration key as a string
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api-url":
		return c.APIURL, nil
	case "token":
		if c.Token == "" {
			return "", nil
		}
		return "********", nil
	case "username":
		return c.Username, nil
	case "user-agent":
		return c.UserAgent, nil
	case "use-etags":
		return strconv.FormatBool(c.ETagsEnabled()), nil
	case "degrade-patch":
		return strconv.FormatBool(c.DegradePatch), nil
	case "timeout":
		return c.Timeout.String(), nil
	case "blob-concurrency":
		return strconv.Itoa(c.BlobConcurrency), nil
	case "author.name":
		return c.Author.Name, nil
	case "author.email":
		return c.Author.Email, nil
	case "repo":
		return c.Repo, nil
	case "branch":
		return c.Branch, nil
	}
	return "", fmt.Errorf("unknown configuration key: %s", key)
}

// Set parses value and stores it under key
func (c *Config) Set(key, value string) error {
	switch key {
	case "api-url":
		c.APIURL = value
	case "token":
		c.Token = value
	case "username":
		c.Username = value
	case "user-agent":
		c.UserAgent = value
	case "use-etags":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for use-etags: %s (must be 'true' or 'false')", value)
		}
		c.UseETags = &enabled
	case "degrade-patch":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for degrade-patch: %s (must be 'true' or 'false')", value)
		}
		c.DegradePatch = enabled
	case "timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid value for timeout: %w", err)
		}
		c.Timeout = d
	case "blob-concurrency":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid value for blob-concurrency: %s (must be a non-negative integer)", value)
		}
		c.BlobConcurrency = n
	case "author.name":
		c.Author.Name = value
	case "author.email":
		c.Author.Email = value
	case "repo":
		if _, _, err := SplitRepo(value); err != nil {
			return err
		}
		c.Repo = value
	case "branch":
		c.Branch = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
