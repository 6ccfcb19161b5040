package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vango-dev/splitroute/internal/errors"
)

// clearEnv unsets the variables applyEnv reads for the duration of a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "PORT", "WEB_HOST", "LOG_LEVEL",
		"ASSETS_SOURCE", "ASSETS_BUCKET", "ASSETS_REGION", "ASSETS_ENDPOINT",
	} {
		if v, ok := os.LookupEnv(key); ok {
			os.Unsetenv(key)
			t.Cleanup(func() { os.Setenv(key, v) })
		}
	}
}

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Web.Port != DefaultPort {
		t.Errorf("Web.Port = %d, want %d", cfg.Web.Port, DefaultPort)
	}
	if cfg.Web.LinkHost != "http://localhost:60987" {
		t.Errorf("Web.LinkHost = %q", cfg.Web.LinkHost)
	}
	if !cfg.ShouldServerSideRender() {
		t.Error("SSR should default to enabled")
	}
	if cfg.Progress.Seconds != DefaultProgressSeconds {
		t.Errorf("Progress.Seconds = %v, want %v", cfg.Progress.Seconds, DefaultProgressSeconds)
	}
	if cfg.Site.Name != DefaultSiteName {
		t.Errorf("Site.Name = %q, want %q", cfg.Site.Name, DefaultSiteName)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug in development", cfg.Log.Level)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Env != EnvDevelopment {
		t.Errorf("Env = %q, want %q", cfg.Env, EnvDevelopment)
	}
	if cfg.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", cfg.Dir(), dir)
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	configJSON := `{
  "env": "production",
  "web": { "port": 8080, "host": "example.com" },
  "ssr": false,
  "site": { "name": "Demo", "tagline": "Fast pages" },
  "assets": { "source": "s3", "bucket": "pages-bucket", "prefix": "pages/" }
}
`
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if !cfg.IsProduction() {
		t.Error("expected production env")
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("Web.Port = %d, want 8080", cfg.Web.Port)
	}
	if cfg.Web.LinkHost != "https://example.com" {
		t.Errorf("Web.LinkHost = %q, want https://example.com", cfg.Web.LinkHost)
	}
	if cfg.ShouldServerSideRender() {
		t.Error("SSR should be disabled")
	}
	if cfg.Assets.Bucket != "pages-bucket" || cfg.Assets.Prefix != "pages/" {
		t.Errorf("Assets = %+v", cfg.Assets)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info in production", cfg.Log.Level)
	}
	if cfg.Path() != path {
		t.Errorf("Path() = %q, want %q", cfg.Path(), path)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("{nope"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir)
	if errors.Code(err) != "E101" {
		t.Fatalf("Load error = %v, want E101", err)
	}
}

func TestEnvFileAndOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	envFile := "PORT=7000\nWEB_HOST=staging.example.com\nLOG_LEVEL=warn\n"
	if err := os.WriteFile(filepath.Join(dir, ".env.webtest"), []byte(envFile), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("APP_ENV", EnvTest)
	t.Setenv("PORT", "7100")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Env != EnvTest {
		t.Errorf("Env = %q, want test", cfg.Env)
	}
	if cfg.Web.Port != 7100 {
		t.Errorf("process env should win: Web.Port = %d, want 7100", cfg.Web.Port)
	}
	if cfg.Web.Host != "staging.example.com" {
		t.Errorf("Web.Host = %q from env file", cfg.Web.Host)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		wantCode string
	}{
		{"defaults", func(*Config) {}, ""},
		{"port out of range", func(c *Config) { c.Web.Port = 70000 }, "E102"},
		{"s3 without bucket", func(c *Config) { c.Assets.Source = SourceS3 }, "E104"},
		{"unknown source", func(c *Config) { c.Assets.Source = "ftp" }, "E104"},
		{"bad duration", func(c *Config) { c.Live.ReadTimeout = "soon" }, "E101"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if got := errors.Code(err); got != tt.wantCode {
				t.Errorf("Validate() code = %q, want %q (err %v)", got, tt.wantCode, err)
			}
		})
	}
}

func TestDurations(t *testing.T) {
	cfg := New()
	if cfg.ShutdownTimeout() != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.ShutdownTimeout())
	}
	if cfg.LoadTimeout() != 5*time.Second {
		t.Errorf("LoadTimeout = %v", cfg.LoadTimeout())
	}
	cfg.Live.ReadTimeout = "bogus"
	if cfg.LiveReadTimeout() != 60*time.Second {
		t.Errorf("LiveReadTimeout fallback = %v", cfg.LiveReadTimeout())
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfg := New()
	cfg.Site.Name = "Saved"

	path := filepath.Join(dir, ConfigFileName)
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo error: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if loaded.Site.Name != "Saved" {
		t.Errorf("Site.Name = %q, want Saved", loaded.Site.Name)
	}
}

func TestResolvePath(t *testing.T) {
	cfg := &Config{configPath: "/srv/app/splitroute.json"}
	if got := cfg.ResolvePath("pages"); got != "/srv/app/pages" {
		t.Errorf("ResolvePath(relative) = %q", got)
	}
	if got := cfg.ResolvePath("/abs"); got != "/abs" {
		t.Errorf("ResolvePath(abs) = %q", got)
	}
}
