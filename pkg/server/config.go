package server

import "time"

// Config holds HTTP server settings.
type Config struct {
	// Address is the listen address (e.g., ":60987").
	Address string

	// Dev enables development behaviour: 500 responses include the error.
	Dev bool

	// SSR renders page bodies on the server. When false the body is left
	// empty and the client renders through the live session.
	SSR bool

	// Env is exposed to the client in window.__CONFIG__.
	Env string

	// StaticDir is served under StaticPrefix. Empty disables static files.
	StaticDir string

	// StaticPrefix is the URL prefix for static files. Default "/public/".
	StaticPrefix string

	// LivePath is where the live handler is mounted. Default "/live".
	LivePath string

	// LoadTimeout bounds the page module fetch of one request.
	LoadTimeout time.Duration

	// ProgressSeconds is the progress bar time constant.
	ProgressSeconds float64

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// ShutdownTimeout is the graceful shutdown window.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the default server settings.
func DefaultConfig() Config {
	return Config{
		Address:           ":60987",
		SSR:               true,
		StaticPrefix:      "/public/",
		LivePath:          "/live",
		LoadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Address == "" {
		c.Address = d.Address
	}
	if c.StaticPrefix == "" {
		c.StaticPrefix = d.StaticPrefix
	}
	if c.LivePath == "" {
		c.LivePath = d.LivePath
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = d.LoadTimeout
	}
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = d.ReadHeaderTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}
