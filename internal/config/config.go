package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/vango-dev/splitroute/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "splitroute.json"

	// DefaultPort is the default web server port.
	DefaultPort = 60987

	// DefaultProgressSeconds is the default progress indicator time constant.
	DefaultProgressSeconds = 0.25

	// DefaultSiteName is the site name used in page titles.
	DefaultSiteName = "SITE NAME"

	// DefaultTagline is appended after the site name in page titles.
	DefaultTagline = "The best site for doing X"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Asset source kinds.
const (
	SourceDir = "dir"
	SourceS3  = "s3"
)

// Config represents the complete splitroute.json configuration.
type Config struct {
	// Env is the environment name (development, production, test).
	Env string `json:"env,omitempty"`

	// Web contains HTTP server configuration.
	Web WebConfig `json:"web,omitempty"`

	// SSR enables server-side rendering of page bodies.
	// A nil value means the default (enabled).
	SSR *bool `json:"ssr,omitempty"`

	// Site contains the document head defaults.
	Site SiteConfig `json:"site,omitempty"`

	// Progress contains progress indicator tuning.
	Progress ProgressConfig `json:"progress,omitempty"`

	// Assets contains page module and chunk storage configuration.
	Assets AssetsConfig `json:"assets,omitempty"`

	// Live contains live session configuration.
	Live LiveConfig `json:"live,omitempty"`

	// Log contains logging configuration.
	Log LogConfig `json:"log,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// WebConfig contains HTTP server settings.
type WebConfig struct {
	// Port is the port to listen on.
	Port int `json:"port,omitempty"`

	// Host is the public host (with port if non-standard).
	Host string `json:"host,omitempty"`

	// LinkHost is the scheme+host used for absolute links (canonical URLs).
	// Derived from Host when empty.
	LinkHost string `json:"linkHost,omitempty"`

	// StaticDir is the directory served under /public/.
	StaticDir string `json:"staticDir,omitempty"`

	// ShutdownTimeout is the graceful shutdown window (e.g., "10s").
	ShutdownTimeout string `json:"shutdownTimeout,omitempty"`
}

// SiteConfig contains document head defaults.
type SiteConfig struct {
	Name         string `json:"name,omitempty"`
	Tagline      string `json:"tagline,omitempty"`
	Description  string `json:"description,omitempty"`
	FacebookPage string `json:"facebookPage,omitempty"`
}

// ProgressConfig contains progress indicator tuning.
type ProgressConfig struct {
	// Seconds is the easing time constant.
	Seconds float64 `json:"seconds,omitempty"`
}

// AssetsConfig contains page module storage settings.
type AssetsConfig struct {
	// Source is "dir" or "s3".
	Source string `json:"source,omitempty"`

	// Dir is the directory holding page modules when Source is "dir".
	Dir string `json:"dir,omitempty"`

	// Bucket, Prefix, Region and Endpoint locate page modules in S3.
	Bucket   string `json:"bucket,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
	Region   string `json:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`

	// Manifest is the chunk manifest (chunk name to fingerprinted file).
	Manifest string `json:"manifest,omitempty"`

	// Routes is the YAML route manifest of asset-backed pages.
	Routes string `json:"routes,omitempty"`

	// LoadTimeout bounds a server-side page module fetch (e.g., "5s").
	LoadTimeout string `json:"loadTimeout,omitempty"`
}

// LiveConfig contains live session settings.
type LiveConfig struct {
	// ReadTimeout is the idle timeout of a live connection (e.g., "60s").
	ReadTimeout string `json:"readTimeout,omitempty"`

	// QueueSize is the per-session event loop queue length.
	QueueSize int `json:"queueSize,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level,omitempty"`

	// Path is the production log file. Empty logs to stderr only.
	Path string `json:"path,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from the specified directory.
// A missing splitroute.json is not an error: defaults and the environment
// are used instead.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	cfg, err := LoadFile(path)
	if err != nil {
		if errors.Code(err) != "E100" {
			return nil, err
		}
		cfg = &Config{configPath: path}
		cfg.applyEnv(dir)
		cfg.applyDefaults()
	}
	return cfg, cfg.Validate()
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E100").
				WithDetail("No " + ConfigFileName + " found in " + filepath.Dir(path)).
				WithSuggestion("Create " + ConfigFileName + " or rely on environment variables")
		}
		return nil, errors.New("E101").Wrap(err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E101").
			WithDetail("Failed to parse " + ConfigFileName + ": " + err.Error()).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON")
	}

	cfg.configPath = path
	cfg.applyEnv(filepath.Dir(path))
	cfg.applyDefaults()

	return cfg, nil
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E101").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E101").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// envFileName returns the environment file for env, defaulting to the
// development file for unknown names.
func envFileName(env string) string {
	files := map[string]string{
		EnvDevelopment: ".env.webdev",
		EnvProduction:  ".env.webprod",
		EnvTest:        ".env.webtest",
	}
	if f, ok := files[env]; ok {
		return f
	}
	return files[EnvDevelopment]
}

// applyEnv overlays environment files and process environment variables.
// Process variables win over file entries.
func (c *Config) applyEnv(dir string) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = c.Env
	}
	if env == "" {
		env = EnvDevelopment
	}
	c.Env = env

	vars := map[string]string{}
	if fileVars, err := godotenv.Read(filepath.Join(dir, envFileName(env))); err == nil {
		vars = fileVars
	}
	lookup := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return vars[key]
	}

	if v := lookup("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Web.Port = port
		}
	}
	if v := lookup("WEB_HOST"); v != "" {
		c.Web.Host = v
	}
	if v := lookup("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := lookup("ASSETS_SOURCE"); v != "" {
		c.Assets.Source = v
	}
	if v := lookup("ASSETS_BUCKET"); v != "" {
		c.Assets.Bucket = v
	}
	if v := lookup("ASSETS_REGION"); v != "" {
		c.Assets.Region = v
	}
	if v := lookup("ASSETS_ENDPOINT"); v != "" {
		c.Assets.Endpoint = v
	}
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Env == "" {
		c.Env = EnvDevelopment
	}
	if c.Web.Port == 0 {
		c.Web.Port = DefaultPort
	}
	if c.Web.Host == "" {
		c.Web.Host = "localhost:" + strconv.Itoa(DefaultPort)
	}
	if c.Web.LinkHost == "" {
		c.Web.LinkHost = linkHostFor(c.Web.Host)
	}
	if c.Web.StaticDir == "" {
		c.Web.StaticDir = "public"
	}
	if c.Web.ShutdownTimeout == "" {
		c.Web.ShutdownTimeout = "10s"
	}
	if c.SSR == nil {
		ssr := true
		c.SSR = &ssr
	}
	if c.Site.Name == "" {
		c.Site.Name = DefaultSiteName
	}
	if c.Site.Tagline == "" {
		c.Site.Tagline = DefaultTagline
	}
	if c.Progress.Seconds == 0 {
		c.Progress.Seconds = DefaultProgressSeconds
	}
	if c.Assets.Source == "" {
		c.Assets.Source = SourceDir
	}
	if c.Assets.Dir == "" {
		c.Assets.Dir = "pages"
	}
	if c.Assets.Region == "" {
		c.Assets.Region = "us-east-1"
	}
	if c.Assets.LoadTimeout == "" {
		c.Assets.LoadTimeout = "5s"
	}
	if c.Live.ReadTimeout == "" {
		c.Live.ReadTimeout = "60s"
	}
	if c.Live.QueueSize == 0 {
		c.Live.QueueSize = 64
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
		if c.Env == EnvDevelopment {
			c.Log.Level = "debug"
		}
	}
}

// linkHostFor derives the absolute link host from a public host. Hosts on
// the default development port are plain http; everything else is https.
func linkHostFor(host string) string {
	isHTTP := regexp.MustCompile(":" + strconv.Itoa(DefaultPort) + "$").MatchString(host)
	if isHTTP {
		return "http://" + host
	}
	return "https://" + host
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return errors.New("E102").
			WithDetail("Port " + strconv.Itoa(c.Web.Port) + " is out of range")
	}
	switch c.Assets.Source {
	case SourceDir:
	case SourceS3:
		if c.Assets.Bucket == "" {
			return errors.New("E104").
				WithDetail("assets.source is s3 but assets.bucket is empty").
				WithSuggestion("Set assets.bucket or ASSETS_BUCKET")
		}
	default:
		return errors.New("E104").
			WithDetail("Unknown assets.source " + strconv.Quote(c.Assets.Source))
	}
	for name, v := range map[string]string{
		"web.shutdownTimeout": c.Web.ShutdownTimeout,
		"assets.loadTimeout":  c.Assets.LoadTimeout,
		"live.readTimeout":    c.Live.ReadTimeout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return errors.New("E101").
				WithDetail(name + ": " + err.Error())
		}
	}
	return nil
}

// IsProduction reports whether the production environment is active.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// ShouldServerSideRender reports whether page bodies are rendered on the server.
func (c *Config) ShouldServerSideRender() bool {
	return c.SSR == nil || *c.SSR
}

// Address returns the listen address.
func (c *Config) Address() string {
	return ":" + strconv.Itoa(c.Web.Port)
}

// ShutdownTimeout returns the parsed graceful shutdown window.
func (c *Config) ShutdownTimeout() time.Duration {
	return mustDuration(c.Web.ShutdownTimeout, 10*time.Second)
}

// LoadTimeout returns the parsed server-side page fetch timeout.
func (c *Config) LoadTimeout() time.Duration {
	return mustDuration(c.Assets.LoadTimeout, 5*time.Second)
}

// LiveReadTimeout returns the parsed live connection idle timeout.
func (c *Config) LiveReadTimeout() time.Duration {
	return mustDuration(c.Live.ReadTimeout, 60*time.Second)
}

// ResolvePath resolves path relative to the config directory.
func (c *Config) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

func mustDuration(v string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
