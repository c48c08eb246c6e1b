// Package config loads the settings a spantree link needs to
// introduce itself to an uplink: its own identity, the credentials
// the uplink expects, and where to listen for administrative
// introspection.
package config

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// Config is the full set of settings consumed by cmd/spantreed.
type Config struct {
	// Link identifies and authenticates this pseudo-server to its
	// uplink.
	Link struct {
		SID        string `yaml:"sid" toml:"sid" json:"sid" env:"SPANTREE_SID"`
		Hostname   string `yaml:"hostname" toml:"hostname" json:"hostname" env:"SPANTREE_HOSTNAME"`
		SendPass   string `yaml:"sendpass" toml:"sendpass" json:"sendpass" env:"SPANTREE_SENDPASS"`
		RecvPass   string `yaml:"recvpass" toml:"recvpass" json:"recvpass" env:"SPANTREE_RECVPASS"`
		ServerDesc string `yaml:"serverdesc" toml:"serverdesc" json:"serverdesc" env:"SPANTREE_SERVERDESC"`
		Nicklen    int    `yaml:"nicklen" toml:"nicklen" json:"nicklen" env:"SPANTREE_NICKLEN"`
	} `yaml:"link" toml:"link" json:"link"`

	// Uplink is the single remote InspIRCd server this process dials.
	Uplink struct {
		Address      string        `yaml:"address" toml:"address" json:"address" env:"SPANTREE_UPLINK_ADDRESS"`
		PingInterval time.Duration `yaml:"ping_interval" toml:"ping_interval" json:"ping_interval" env:"SPANTREE_PING_INTERVAL"`
		PongTimeout  time.Duration `yaml:"pong_timeout" toml:"pong_timeout" json:"pong_timeout" env:"SPANTREE_PONG_TIMEOUT"`
		TLS          struct {
			Enabled            bool   `yaml:"enabled" toml:"enabled" json:"enabled" env:"SPANTREE_UPLINK_TLS_ENABLED"`
			InsecureSkipVerify bool   `yaml:"insecure_skip_verify" toml:"insecure_skip_verify" json:"insecure_skip_verify" env:"SPANTREE_UPLINK_TLS_INSECURE_SKIP_VERIFY"`
			ServerName         string `yaml:"server_name" toml:"server_name" json:"server_name" env:"SPANTREE_UPLINK_TLS_SERVER_NAME"`
			CertFile           string `yaml:"cert_file" toml:"cert_file" json:"cert_file" env:"SPANTREE_UPLINK_TLS_CERT_FILE"`
			KeyFile            string `yaml:"key_file" toml:"key_file" json:"key_file" env:"SPANTREE_UPLINK_TLS_KEY_FILE"`
		} `yaml:"tls" toml:"tls" json:"tls"`
	} `yaml:"uplink" toml:"uplink" json:"uplink"`

	// Admin exposes a read-only HTTP introspection surface over the
	// Network Store (adminhttp.go).
	Admin struct {
		Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled" env:"SPANTREE_ADMIN_ENABLED"`
		Host    string `yaml:"host" toml:"host" json:"host" env:"SPANTREE_ADMIN_HOST"`
		Port    int    `yaml:"port" toml:"port" json:"port" env:"SPANTREE_ADMIN_PORT"`
	} `yaml:"admin" toml:"admin" json:"admin"`

	// Metrics exposes a Prometheus /metrics endpoint.
	Metrics struct {
		Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled" env:"SPANTREE_METRICS_ENABLED"`
		Host    string `yaml:"host" toml:"host" json:"host" env:"SPANTREE_METRICS_HOST"`
		Port    int    `yaml:"port" toml:"port" json:"port" env:"SPANTREE_METRICS_PORT"`
	} `yaml:"metrics" toml:"metrics" json:"metrics"`

	// Source records where this configuration was loaded from, for Reload.
	Source string
}

// Load reads configuration from a local file path or an http(s) URL,
// applying defaults first and environment overrides last.
func Load(source string) (*Config, error) {
	cfg := &Config{Source: source}
	setDefaults(cfg)

	if err := cfg.loadFromSource(source); err != nil {
		return nil, err
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment variables: %w", err)
	}
	return cfg, nil
}

// Reload re-reads configuration from the original source (or
// newSource if given), replacing the receiver's contents in place.
func (c *Config) Reload(newSource string) error {
	if newSource != "" {
		c.Source = newSource
	}

	next := &Config{}
	setDefaults(next)
	if err := next.loadFromSource(c.Source); err != nil {
		return err
	}
	if err := env.Parse(next); err != nil {
		return fmt.Errorf("config: parse environment variables: %w", err)
	}
	*c = *next
	return nil
}

func setDefaults(cfg *Config) {
	cfg.Link.Hostname = "services.local"
	cfg.Link.ServerDesc = "spantree linking service"
	cfg.Link.Nicklen = 30
	cfg.Uplink.PingInterval = 60 * time.Second
	cfg.Uplink.PongTimeout = 180 * time.Second
	cfg.Admin.Host = "127.0.0.1"
	cfg.Admin.Port = 8067
	cfg.Metrics.Host = "127.0.0.1"
	cfg.Metrics.Port = 9067
}

func (c *Config) loadFromSource(source string) error {
	var data []byte
	var err error

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		resp, err := http.Get(source)
		if err != nil {
			return fmt.Errorf("config: fetch %s: %w", source, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("config: fetch %s: status %s", source, resp.Status)
		}
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("config: read response body: %w", err)
		}
	} else {
		data, err = os.ReadFile(source)
		if err != nil {
			return fmt.Errorf("config: read %s: %w", source, err)
		}
	}

	switch {
	case strings.HasSuffix(source, ".toml"):
		err = toml.Unmarshal(data, c)
	case strings.HasSuffix(source, ".json"):
		err = json.Unmarshal(data, c)
	default:
		err = yaml.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", source, err)
	}

	c.Source = source
	return nil
}

// AdminAddr returns the formatted listen address for the admin HTTP server.
func (c *Config) AdminAddr() string {
	return fmt.Sprintf("%s:%d", c.Admin.Host, c.Admin.Port)
}

// MetricsAddr returns the formatted listen address for the metrics server.
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.Metrics.Host, c.Metrics.Port)
}

// UplinkTLSConfig builds the *tls.Config the link transport should
// dial with, or nil if the uplink isn't configured for TLS at all.
// A client certificate is loaded only when both CertFile and KeyFile
// are set; InsecureSkipVerify and ServerName pass straight through
// for self-signed or split-horizon uplinks.
func (c *Config) UplinkTLSConfig() (*tls.Config, error) {
	if !c.Uplink.TLS.Enabled {
		return nil, nil
	}
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.Uplink.TLS.InsecureSkipVerify,
		ServerName:         c.Uplink.TLS.ServerName,
	}
	if c.Uplink.TLS.CertFile != "" && c.Uplink.TLS.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.Uplink.TLS.CertFile, c.Uplink.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("config: load uplink TLS keypair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}
