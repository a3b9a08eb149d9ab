package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/okriva/opgate/internal/server"
)

// opgated config.toml key mapping to runtime settings.
type fileConfig struct {
	ListenAddr       string   `toml:"listen_addr"`
	Backlog          int      `toml:"backlog"`
	CertFile         string   `toml:"cert_file"`
	KeyFile          string   `toml:"key_file"`
	MaxRequestBytes  int      `toml:"max_request_bytes"`
	MaxResponseBytes int      `toml:"max_response_bytes"`
	HandshakeTimeout string   `toml:"handshake_timeout"`
	ReadTimeout      string   `toml:"read_timeout"`
	WriteTimeout     string   `toml:"write_timeout"`
	DrainTimeout     string   `toml:"drain_timeout"`
	AdminListenAddr  string   `toml:"admin_listen_addr"`
	CorsOrigins      []string `toml:"cors_origins"`
}

type runtimeConfig struct {
	Server          server.Config
	AdminListenAddr string
	CorsOrigins     []string
}

// loadConfig overlays config.toml values onto defaults; keys absent from the
// file keep their default.
func loadConfig(path string) (runtimeConfig, error) {
	cfg := runtimeConfig{Server: server.DefaultConfig()}
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return runtimeConfig{}, fmt.Errorf("load opgated config: %w", err)
	}

	if meta.IsDefined("listen_addr") {
		cfg.Server.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("backlog") {
		cfg.Server.Backlog = raw.Backlog
	}
	if meta.IsDefined("cert_file") {
		cfg.Server.CertFile = strings.TrimSpace(raw.CertFile)
	}
	if meta.IsDefined("key_file") {
		cfg.Server.KeyFile = strings.TrimSpace(raw.KeyFile)
	}
	if meta.IsDefined("max_request_bytes") {
		cfg.Server.MaxRequestBytes = raw.MaxRequestBytes
	}
	if meta.IsDefined("max_response_bytes") {
		cfg.Server.MaxResponseBytes = raw.MaxResponseBytes
	}
	if meta.IsDefined("handshake_timeout") {
		if cfg.Server.HandshakeTimeout, err = parseTimeout("handshake_timeout", raw.HandshakeTimeout); err != nil {
			return runtimeConfig{}, err
		}
	}
	if meta.IsDefined("read_timeout") {
		if cfg.Server.ReadTimeout, err = parseTimeout("read_timeout", raw.ReadTimeout); err != nil {
			return runtimeConfig{}, err
		}
	}
	if meta.IsDefined("write_timeout") {
		if cfg.Server.WriteTimeout, err = parseTimeout("write_timeout", raw.WriteTimeout); err != nil {
			return runtimeConfig{}, err
		}
	}
	if meta.IsDefined("drain_timeout") {
		if cfg.Server.DrainTimeout, err = parseTimeout("drain_timeout", raw.DrainTimeout); err != nil {
			return runtimeConfig{}, err
		}
	}
	if meta.IsDefined("admin_listen_addr") {
		cfg.AdminListenAddr = strings.TrimSpace(raw.AdminListenAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}

	return cfg, nil
}

func parseTimeout(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("opgated config %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("opgated config %s: negative duration", key)
	}
	return d, nil
}
