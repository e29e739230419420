package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cuemby/poanet/pkg/log"
	"github.com/cuemby/poanet/pkg/manifest"
	"github.com/cuemby/poanet/pkg/network"
	"github.com/cuemby/poanet/pkg/types"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. POANET_DATA_DIR
const EnvPrefix = "POANET"

const (
	RosterBackendFile = "file"
	RosterBackendBolt = "bolt"

	KeygenModeNative = "native"
	KeygenModeDocker = "docker"
)

// Config is the complete poanet configuration
type Config struct {
	Server    string          `mapstructure:"server"`
	DataDir   string          `mapstructure:"data-dir"`
	Image     string          `mapstructure:"image"`
	HostIP    string          `mapstructure:"host-ip"`
	Roster    RosterConfig    `mapstructure:"roster"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Keygen    KeygenConfig    `mapstructure:"keygen"`
	Ports     PortsConfig     `mapstructure:"ports"`
	Node      NodeConfig      `mapstructure:"node"`
	Log       LogConfig       `mapstructure:"log"`
	API       APIConfig       `mapstructure:"api"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
}

type RosterConfig struct {
	Backend string `mapstructure:"backend"`
}

type RuntimeConfig struct {
	Compose             []string      `mapstructure:"compose"`
	ContainerdSocket    string        `mapstructure:"containerd-socket"`
	ContainerdNamespace string        `mapstructure:"containerd-namespace"`
	PollInterval        time.Duration `mapstructure:"poll-interval"`
	StartTimeout        time.Duration `mapstructure:"start-timeout"`
}

type KeygenConfig struct {
	Mode        string `mapstructure:"mode"`
	LightScrypt bool   `mapstructure:"light-scrypt"`
}

type PortsConfig struct {
	P2PBase int `mapstructure:"p2p-base"`
	RPCBase int `mapstructure:"rpc-base"`
}

type NodeConfig struct {
	Verbosity int `mapstructure:"verbosity"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type APIConfig struct {
	Addr string `mapstructure:"addr"`
}

type ReconcileConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// defaults lists every key with its default value. Keys missing here are
// invisible to environment overrides.
var defaults = map[string]any{
	"server":                       "",
	"data-dir":                     "./data",
	"image":                        manifest.DefaultImage,
	"host-ip":                      "",
	"roster.backend":               RosterBackendFile,
	"runtime.compose":              []string{"docker", "compose"},
	"runtime.containerd-socket":    "",
	"runtime.containerd-namespace": "moby",
	"runtime.poll-interval":        500 * time.Millisecond,
	"runtime.start-timeout":        30 * time.Second,
	"keygen.mode":                  KeygenModeNative,
	"keygen.light-scrypt":          false,
	"ports.p2p-base":               network.DefaultP2PBase,
	"ports.rpc-base":               network.DefaultRPCBase,
	"node.verbosity":               3,
	"log.level":                    "info",
	"log.json":                     false,
	"api.addr":                     ":3000",
	"reconcile.interval":           30 * time.Second,
}

// FlagKeys maps command-line flag names to configuration keys
var FlagKeys = map[string]string{
	"server":             "server",
	"data-dir":           "data-dir",
	"image":              "image",
	"host-ip":            "host-ip",
	"roster":             "roster.backend",
	"compose":            "runtime.compose",
	"containerd-socket":  "runtime.containerd-socket",
	"start-timeout":      "runtime.start-timeout",
	"keygen":             "keygen.mode",
	"light-scrypt":       "keygen.light-scrypt",
	"p2p-base":           "ports.p2p-base",
	"rpc-base":           "ports.rpc-base",
	"verbosity":          "node.verbosity",
	"log-level":          "log.level",
	"log-json":           "log.json",
	"addr":               "api.addr",
	"reconcile-interval": "reconcile.interval",
}

// New returns a viper instance carrying the defaults and the POANET_*
// environment overrides.
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds every flag of fs that has a configuration key. Flags only
// override the file and environment when set explicitly.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		key, ok := FlagKeys[f.Name]
		if !ok {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			errs = append(errs, fmt.Errorf("failed to bind flag %s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}

// Load reads the optional config file into v and decodes the result. An
// empty file path skips the file.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerations and ranges
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{types.ErrValidation}, args...)...))
	}

	if c.DataDir == "" {
		invalid("data-dir is required")
	}
	if !slices.Contains([]string{RosterBackendFile, RosterBackendBolt}, c.Roster.Backend) {
		invalid("roster.backend must be %q or %q, got %q", RosterBackendFile, RosterBackendBolt, c.Roster.Backend)
	}
	if !slices.Contains([]string{KeygenModeNative, KeygenModeDocker}, c.Keygen.Mode) {
		invalid("keygen.mode must be %q or %q, got %q", KeygenModeNative, KeygenModeDocker, c.Keygen.Mode)
	}
	if len(c.Runtime.Compose) == 0 {
		invalid("runtime.compose must name a command")
	}
	if c.Runtime.PollInterval <= 0 || c.Runtime.StartTimeout <= 0 {
		invalid("runtime.poll-interval and runtime.start-timeout must be positive")
	}
	if c.Reconcile.Interval <= 0 {
		invalid("reconcile.interval must be positive")
	}
	for key, port := range map[string]int{"ports.p2p-base": c.Ports.P2PBase, "ports.rpc-base": c.Ports.RPCBase} {
		if port < 1 || port+network.PortSpan-1 > 65535 {
			invalid("%s must leave room for %d ports below 65536, got %d", key, network.PortSpan, port)
		}
	}
	if _, err := log.ParseLevel(log.Level(c.Log.Level)); err != nil {
		invalid("log.level: %v", err)
	}
	if c.Node.Verbosity < 0 || c.Node.Verbosity > 5 {
		invalid("node.verbosity must be between 0 and 5, got %d", c.Node.Verbosity)
	}
	return errors.Join(errs...)
}
