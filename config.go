// Package pdfmcp provides the configuration surface shared by the PDF MCP
// server: resource-directory sandboxing, download limits, cache sizing, and
// image rendering bounds.
package pdfmcp

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default limits applied when a Config field is left zero.
const (
	DefaultMaxDownloadBytes  = 100 * 1024 * 1024 // 100 MiB
	DefaultCacheMaxEntries   = 50
	DefaultCacheMaxBytes     = 500 * 1024 * 1024 // 500 MiB
	DefaultImageMaxWidth     = 4000
	DefaultImageDefaultWidth = 1200
)

// Config holds the server-wide settings.
//
// An empty ResourceDirs list disables path sandboxing: any filesystem path
// may be read or written. When one or more directories are listed, every
// path argument must canonicalize to a location inside one of them.
type Config struct {
	// ResourceDirs restricts file access to these directories when non-empty.
	ResourceDirs []string `yaml:"resource_dirs"`

	// AllowPrivateURLs permits fetching PDFs from private, loopback, and
	// link-local addresses. Off by default to prevent SSRF.
	AllowPrivateURLs bool `yaml:"allow_private_urls"`

	// MaxDownloadBytes caps the size of a PDF fetched over HTTP.
	MaxDownloadBytes int64 `yaml:"max_download_bytes"`

	// CacheMaxEntries and CacheMaxBytes bound the in-memory document cache.
	CacheMaxEntries int   `yaml:"cache_max_entries"`
	CacheMaxBytes   int64 `yaml:"cache_max_bytes"`

	// ImageMaxWidth caps requested render widths; ImageDefaultWidth is used
	// when a render request does not specify one.
	ImageMaxWidth     int `yaml:"image_max_width"`
	ImageDefaultWidth int `yaml:"image_default_width"`
}

// Option configures a Config.
type Option func(*Config)

// WithResourceDirs restricts file access to the given directories.
func WithResourceDirs(dirs ...string) Option {
	return func(c *Config) {
		c.ResourceDirs = append(c.ResourceDirs, dirs...)
	}
}

// WithAllowPrivateURLs permits downloads from private network addresses.
func WithAllowPrivateURLs(allow bool) Option {
	return func(c *Config) {
		c.AllowPrivateURLs = allow
	}
}

// WithMaxDownloadBytes sets the download size cap.
func WithMaxDownloadBytes(n int64) Option {
	return func(c *Config) {
		c.MaxDownloadBytes = n
	}
}

// WithCacheLimits sets the document cache entry and byte caps.
func WithCacheLimits(entries int, bytes int64) Option {
	return func(c *Config) {
		c.CacheMaxEntries = entries
		c.CacheMaxBytes = bytes
	}
}

// NewConfig returns a Config with defaults applied, then the given options.
func NewConfig(opts ...Option) Config {
	c := Config{
		MaxDownloadBytes:  DefaultMaxDownloadBytes,
		CacheMaxEntries:   DefaultCacheMaxEntries,
		CacheMaxBytes:     DefaultCacheMaxBytes,
		ImageMaxWidth:     DefaultImageMaxWidth,
		ImageDefaultWidth: DefaultImageDefaultWidth,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LoadConfig reads a YAML config file and fills unset fields with defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("pdfmcp: reading config %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("pdfmcp: parsing config %s: %w", path, err)
	}
	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.MaxDownloadBytes <= 0 {
		c.MaxDownloadBytes = DefaultMaxDownloadBytes
	}
	if c.CacheMaxEntries <= 0 {
		c.CacheMaxEntries = DefaultCacheMaxEntries
	}
	if c.CacheMaxBytes <= 0 {
		c.CacheMaxBytes = DefaultCacheMaxBytes
	}
	if c.ImageMaxWidth <= 0 {
		c.ImageMaxWidth = DefaultImageMaxWidth
	}
	if c.ImageDefaultWidth <= 0 {
		c.ImageDefaultWidth = DefaultImageDefaultWidth
	}
}
