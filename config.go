package starcms

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eringen/starcms/storage"
)

// SiteConfig holds all configuration for a starcms site.
type SiteConfig struct {
	Name        string `yaml:"name"`        // Site name (default "Star CMS")
	URL         string `yaml:"url"`         // Canonical URL (default "http://localhost:3000")
	Description string `yaml:"description"` // Site description for RSS and meta tags
	Author      string `yaml:"author"`

	Addr         string `yaml:"addr"`          // Listen address (default ":3000")
	DatabasePath string `yaml:"database_path"` // SQLite path (default "data/starcms.db")

	AdminPassword string `yaml:"admin_password"` // Required: admin login password
	SessionSecret string `yaml:"session_secret"` // Required: session encryption secret
	CookieSecure  bool   `yaml:"cookie_secure"`  // Set true for HTTPS

	ContentCacheTTL time.Duration `yaml:"content_cache_ttl"` // Public page cache TTL (default 5min)
	FormSessionTTL  time.Duration `yaml:"form_session_ttl"`  // Idle editor sessions expire after this (default 2h)
	UploadRetention time.Duration `yaml:"upload_retention"`  // Finished upload tasks stay pollable this long (default 10min)

	Storage StorageConfig `yaml:"storage"`
	Uploads UploadConfig  `yaml:"uploads"`
}

// StorageConfig selects where uploaded media goes.
type StorageConfig struct {
	Backend       string           `yaml:"backend"` // "s3", "local" or "memory" (default "local")
	S3            storage.S3Config `yaml:"s3"`
	LocalDir      string           `yaml:"local_dir"`       // default "public/media"
	PublicBaseURL string           `yaml:"public_base_url"` // local backend only, default URL + "/public/media"
}

// UploadConfig tunes the upload pipeline.
type UploadConfig struct {
	MaxSizeMB        int `yaml:"max_size_mb"`       // default 10
	MaxImageWidth    int `yaml:"max_image_width"`   // 0 disables re-encoding
	BatchConcurrency int `yaml:"batch_concurrency"` // default 4
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Star CMS"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/starcms.db"
	}
	if c.ContentCacheTTL == 0 {
		c.ContentCacheTTL = 5 * time.Minute
	}
	if c.FormSessionTTL == 0 {
		c.FormSessionTTL = 2 * time.Hour
	}
	if c.UploadRetention == 0 {
		c.UploadRetention = 10 * time.Minute
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "local"
	}
	if c.Storage.LocalDir == "" {
		c.Storage.LocalDir = "public/media"
	}
	if c.Storage.PublicBaseURL == "" {
		c.Storage.PublicBaseURL = BuildURL(c.URL, "public", "media")
	}
	if c.Uploads.MaxSizeMB == 0 {
		c.Uploads.MaxSizeMB = 10
	}
	if c.Uploads.BatchConcurrency == 0 {
		c.Uploads.BatchConcurrency = 4
	}
}

// LoadConfigFile reads a YAML file over cfg. Fields missing from the file
// keep their current values.
func LoadConfigFile(path string, cfg *SiteConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("starcms: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("starcms: parse config %s: %w", path, err)
	}
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the Echo instance before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithLogger sets the logger used by the app and its request log.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}

// WithObjectStore replaces the configured storage backend.
func WithObjectStore(s storage.ObjectStore) Option {
	return func(a *App) {
		a.objects = s
	}
}
