package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/poanet/pkg/api"
	"github.com/cuemby/poanet/pkg/client"
	"github.com/cuemby/poanet/pkg/config"
	"github.com/cuemby/poanet/pkg/events"
	"github.com/cuemby/poanet/pkg/geth"
	"github.com/cuemby/poanet/pkg/log"
	"github.com/cuemby/poanet/pkg/manager"
	"github.com/cuemby/poanet/pkg/metrics"
	"github.com/cuemby/poanet/pkg/network"
	"github.com/cuemby/poanet/pkg/reconciler"
	"github.com/cuemby/poanet/pkg/runtime"
	"github.com/cuemby/poanet/pkg/storage"
	"github.com/cuemby/poanet/pkg/types"
	"github.com/cuemby/poanet/pkg/volume"
	dockerclient "github.com/docker/docker/client"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// cfg is loaded once per invocation by the root pre-run hook
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "poanet",
	Short: "poanet - private proof-of-authority Ethereum networks on one host",
	Long: `poanet provisions private Ethereum networks that run clique
proof-of-authority consensus. Each network is a docker compose project with a
bootnode and any number of signer, member, bootstrap and rpc nodes.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := config.New()
		if err := config.BindFlags(v, cmd.Flags()); err != nil {
			return err
		}
		configFile, _ := cmd.Flags().GetString("config")

		loaded, err := config.Load(v, configFile)
		if err != nil {
			return err
		}
		cfg = loaded

		log.Init(log.Config{
			Level:      log.Level(cfg.Log.Level),
			JSONOutput: cfg.Log.JSON,
		})
		metrics.SetVersion(Version)
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"poanet version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (YAML)")
	flags.String("server", "", "Drive a running 'poanet serve' at this address instead of the local state")
	flags.String("data-dir", "./data", "Data directory; networks live under <data-dir>/networks")
	flags.String("roster", config.RosterBackendFile, "Roster backend: file or bolt")
	flags.String("image", "", "Node container image")
	flags.String("host-ip", "", "Host IP announced by the bootnode (autodetected when empty)")
	flags.StringSlice("compose", []string{"docker", "compose"}, "Compose command")
	flags.String("containerd-socket", "", "Confirm container state through this containerd socket")
	flags.Duration("start-timeout", 0, "Bound for the bootnode running-state poll")
	flags.String("keygen", config.KeygenModeNative, "Key generation: native or docker")
	flags.Bool("light-scrypt", false, "Use light scrypt parameters for account key files")
	flags.Int("p2p-base", network.DefaultP2PBase, "Base host port for p2p allocation")
	flags.Int("rpc-base", network.DefaultRPCBase, "Base host port for rpc allocation")
	flags.Int("verbosity", geth.DefaultVerbosity, "Geth verbosity for new nodes")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Output logs in JSON format")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(networkCmd)
	rootCmd.AddCommand(nodeCmd)
}

// backend is what the network and node commands drive: the local manager,
// or a remote server through the API client.
type backend struct {
	api.Manager
	api.DriftChecker
	close func()
}

func newBackend() (*backend, error) {
	if cfg.Server != "" {
		c, err := client.NewClient(cfg.Server)
		if err != nil {
			return nil, err
		}
		return &backend{Manager: c, DriftChecker: c, close: func() { _ = c.Close() }}, nil
	}

	a, err := newApp()
	if err != nil {
		return nil, err
	}
	recon := reconciler.NewReconciler(&reconciler.Config{
		Store:   a.store,
		Driver:  a.driver,
		Runtime: a.runtime,
	})
	return &backend{Manager: a.manager, DriftChecker: recon, close: a.Close}, nil
}

// Close releases the backend
func (b *backend) Close() {
	b.close()
}

// ListStatuses returns the running services of every network
func (b *backend) ListStatuses(ctx context.Context) ([]*types.NetworkStatus, error) {
	if m, ok := b.Manager.(*manager.Manager); ok {
		return m.ListStatuses(ctx)
	}

	networks, err := b.ListNetworks()
	if err != nil {
		return nil, err
	}
	statuses := make([]*types.NetworkStatus, 0, len(networks))
	for _, n := range networks {
		status, err := b.NetworkStatus(ctx, n.Name)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// app holds the wired components of one invocation
type app struct {
	driver  *volume.LocalDriver
	store   storage.Store
	runtime runtime.Runtime
	docker  *dockerclient.Client
	probe   *runtime.ContainerdProbe
	events  *events.Broker
	manager *manager.Manager
}

// newApp wires the roster, runtime, keygen and manager from cfg
func newApp() (*app, error) {
	a := &app{}

	driver, err := volume.NewLocalDriver(filepath.Join(cfg.DataDir, "networks"))
	if err != nil {
		return nil, err
	}
	a.driver = driver

	switch cfg.Roster.Backend {
	case config.RosterBackendBolt:
		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		a.store = store
	default:
		a.store = storage.NewFileStore(driver.RosterPath())
	}

	docker, err := runtime.NewDockerClient()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.docker = docker

	opts := []runtime.ComposeOption{runtime.WithCommand(cfg.Runtime.Compose)}
	if cfg.Runtime.ContainerdSocket != "" {
		probe, err := runtime.NewContainerdProbe(cfg.Runtime.ContainerdSocket, cfg.Runtime.ContainerdNamespace)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.probe = probe
		opts = append(opts, runtime.WithStateProbe(probe))
	}
	a.runtime = runtime.NewCompose(docker, opts...)

	var keygen geth.Keygen
	if cfg.Keygen.Mode == config.KeygenModeDocker {
		keygen = geth.NewDockerKeygen(cfg.Image, runtime.ExecRunner)
	} else {
		keygen = geth.NewNativeKeygen(cfg.Keygen.LightScrypt)
	}

	a.events = events.NewBroker()
	a.events.Start()

	mgr, err := manager.NewManager(&manager.Config{
		Driver:       a.driver,
		Store:        a.store,
		Runtime:      a.runtime,
		Keygen:       keygen,
		Events:       a.events,
		Image:        cfg.Image,
		HostIP:       cfg.HostIP,
		P2PBase:      cfg.Ports.P2PBase,
		RPCBase:      cfg.Ports.RPCBase,
		Verbosity:    cfg.Node.Verbosity,
		PollInterval: cfg.Runtime.PollInterval,
		StartTimeout: cfg.Runtime.StartTimeout,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.manager = mgr
	return a, nil
}

// Close releases every connection opened by newApp
func (a *app) Close() {
	if a.events != nil {
		a.events.Stop()
	}
	if a.probe != nil {
		_ = a.probe.Close()
	}
	if a.docker != nil {
		_ = a.docker.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}
