package server

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okriva/opgate/internal/wire"
)

var (
	ErrListenAddrRequired  = errors.New("server: listen addr required")
	ErrCertificateRequired = errors.New("server: tls certificate required")
)

// Config defines the listener and per-connection transport settings. The
// certificate may be supplied pre-loaded or as file paths; a pre-loaded
// certificate takes precedence.
type Config struct {
	ListenAddr string

	// Backlog is the requested OS accept-queue depth. The Go runtime sizes
	// the real queue from the kernel somaxconn setting, so this is advisory;
	// it is logged at startup and carried for config compatibility.
	Backlog int

	Certificate *tls.Certificate
	CertFile    string
	KeyFile     string

	MaxRequestBytes  int
	MaxResponseBytes int

	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration

	// DrainTimeout bounds how long Stop waits for in-flight connections.
	// Zero means wait indefinitely.
	DrainTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:       ":7100",
		Backlog:          100,
		MaxRequestBytes:  wire.DefaultMaxBytes,
		MaxResponseBytes: wire.DefaultMaxBytes,
		HandshakeTimeout: 5 * time.Second,
		ReadTimeout:      15 * time.Second,
		WriteTimeout:     15 * time.Second,
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.Backlog <= 0 {
		c.Backlog = def.Backlog
	}
	if c.MaxRequestBytes <= 0 {
		c.MaxRequestBytes = def.MaxRequestBytes
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = def.MaxResponseBytes
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	return c
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return ErrListenAddrRequired
	}
	if c.Certificate == nil {
		if strings.TrimSpace(c.CertFile) == "" || strings.TrimSpace(c.KeyFile) == "" {
			return ErrCertificateRequired
		}
	}
	return nil
}

func (c Config) limits() wire.Limits {
	return wire.Limits{
		MaxRequestBytes:  c.MaxRequestBytes,
		MaxResponseBytes: c.MaxResponseBytes,
	}
}

// tlsConfig builds the server-side TLS policy: server cert only, client
// certificates not required.
func (c Config) tlsConfig() (*tls.Config, error) {
	cert := c.Certificate
	if cert == nil {
		loaded, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("server: load key pair: %w", err)
		}
		cert = &loaded
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{*cert},
		ClientAuth:   tls.NoClientCert,
	}, nil
}
