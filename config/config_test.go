package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/presbrey/spantree/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUplinkTLSConfigDisabledByDefault(t *testing.T) {
	cfg := &config.Config{}
	tlsConfig, err := cfg.UplinkTLSConfig()
	require.NoError(t, err)
	assert.Nil(t, tlsConfig)
}

func TestUplinkTLSConfigEnabledWithoutKeypair(t *testing.T) {
	cfg := &config.Config{}
	cfg.Uplink.TLS.Enabled = true
	cfg.Uplink.TLS.InsecureSkipVerify = true
	cfg.Uplink.TLS.ServerName = "irc.uplink.example.net"

	tlsConfig, err := cfg.UplinkTLSConfig()
	require.NoError(t, err)
	require.NotNil(t, tlsConfig)
	assert.True(t, tlsConfig.InsecureSkipVerify)
	assert.Equal(t, "irc.uplink.example.net", tlsConfig.ServerName)
	assert.Empty(t, tlsConfig.Certificates)
}

func TestUplinkTLSConfigRejectsBadKeypair(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certPath, []byte("not a cert"), 0o600))
	require.NoError(t, os.WriteFile(keyPath, []byte("not a key"), 0o600))

	cfg := &config.Config{}
	cfg.Uplink.TLS.Enabled = true
	cfg.Uplink.TLS.CertFile = certPath
	cfg.Uplink.TLS.KeyFile = keyPath

	_, err := cfg.UplinkTLSConfig()
	assert.Error(t, err)
}

func TestLoadAppliesUplinkTLSEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(sourcePath, []byte("link:\n  sid: \"1AA\"\nuplink:\n  address: \"irc.uplink:7000\"\n"), 0o600))

	t.Setenv("SPANTREE_UPLINK_TLS_ENABLED", "true")
	t.Setenv("SPANTREE_UPLINK_TLS_SERVER_NAME", "irc.uplink.example.net")

	cfg, err := config.Load(sourcePath)
	require.NoError(t, err)
	assert.True(t, cfg.Uplink.TLS.Enabled)
	assert.Equal(t, "irc.uplink.example.net", cfg.Uplink.TLS.ServerName)
}
