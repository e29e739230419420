package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/poanet/pkg/network"
	"github.com/cuemby/poanet/pkg/types"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "ethereum/client-go:alltools-v1.11.5", cfg.Image)
	assert.Empty(t, cfg.HostIP)
	assert.Equal(t, RosterBackendFile, cfg.Roster.Backend)
	assert.Equal(t, []string{"docker", "compose"}, cfg.Runtime.Compose)
	assert.Equal(t, "moby", cfg.Runtime.ContainerdNamespace)
	assert.Equal(t, 500*time.Millisecond, cfg.Runtime.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.Runtime.StartTimeout)
	assert.Equal(t, KeygenModeNative, cfg.Keygen.Mode)
	assert.False(t, cfg.Keygen.LightScrypt)
	assert.Equal(t, 30303, cfg.Ports.P2PBase)
	assert.Equal(t, 8545, cfg.Ports.RPCBase)
	assert.Equal(t, 3, cfg.Node.Verbosity)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":3000", cfg.API.Addr)
	assert.Equal(t, 30*time.Second, cfg.Reconcile.Interval)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poanet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data-dir: /var/lib/poanet
roster:
  backend: bolt
runtime:
  compose: [docker-compose]
  start-timeout: 2m
keygen:
  mode: docker
ports:
  p2p-base: 40000
log:
  level: debug
  json: true
`), 0644))

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/poanet", cfg.DataDir)
	assert.Equal(t, RosterBackendBolt, cfg.Roster.Backend)
	assert.Equal(t, []string{"docker-compose"}, cfg.Runtime.Compose)
	assert.Equal(t, 2*time.Minute, cfg.Runtime.StartTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Runtime.PollInterval)
	assert.Equal(t, KeygenModeDocker, cfg.Keygen.Mode)
	assert.Equal(t, 40000, cfg.Ports.P2PBase)
	assert.Equal(t, 8545, cfg.Ports.RPCBase)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("POANET_DATA_DIR", "/srv/poanet")
	t.Setenv("POANET_ROSTER_BACKEND", "bolt")
	t.Setenv("POANET_RUNTIME_POLL_INTERVAL", "1s")
	t.Setenv("POANET_API_ADDR", "127.0.0.1:8080")

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "/srv/poanet", cfg.DataDir)
	assert.Equal(t, RosterBackendBolt, cfg.Roster.Backend)
	assert.Equal(t, time.Second, cfg.Runtime.PollInterval)
	assert.Equal(t, "127.0.0.1:8080", cfg.API.Addr)
}

func TestLoad_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poanet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\nimage: from-file\n"), 0644))
	t.Setenv("POANET_IMAGE", "from-env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("log-level", "info", "")
	fs.String("image", "", "")
	fs.String("unrelated", "", "")
	require.NoError(t, fs.Parse([]string{"--log-level", "error"}))

	v := New()
	require.NoError(t, BindFlags(v, fs))
	cfg, err := Load(v, path)
	require.NoError(t, err)

	// changed flag beats file; env beats file; unchanged flag does not apply
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "from-env", cfg.Image)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(New(), "")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"unknown backend", func(c *Config) { c.Roster.Backend = "etcd" }},
		{"unknown keygen", func(c *Config) { c.Keygen.Mode = "hsm" }},
		{"no compose command", func(c *Config) { c.Runtime.Compose = nil }},
		{"zero poll interval", func(c *Config) { c.Runtime.PollInterval = 0 }},
		{"negative start timeout", func(c *Config) { c.Runtime.StartTimeout = -time.Second }},
		{"zero reconcile interval", func(c *Config) { c.Reconcile.Interval = 0 }},
		{"p2p base out of range", func(c *Config) { c.Ports.P2PBase = 70000 }},
		{"rpc base zero", func(c *Config) { c.Ports.RPCBase = 0 }},
		{"p2p range past 65535", func(c *Config) { c.Ports.P2PBase = 60000 }},
		{"rpc range past 65535", func(c *Config) { c.Ports.RPCBase = 65535 - network.PortSpan + 2 }},
		{"verbosity too high", func(c *Config) { c.Node.Verbosity = 9 }},
		{"unknown log level", func(c *Config) { c.Log.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, types.ErrValidation)
		})
	}

	assert.NoError(t, valid().Validate())

	edge := valid()
	edge.Ports.RPCBase = 65536 - network.PortSpan
	assert.NoError(t, edge.Validate())
}
