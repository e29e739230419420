package volume

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultNetworksPath is the base directory for network state
	DefaultNetworksPath = "./data/networks"

	// RosterFile is the roster file name at the networks root
	RosterFile = "networks.json"

	// GenesisFile is the genesis document inside a network directory
	GenesisFile = "genesis.json"

	// PasswordFile is the account password inside a node directory
	PasswordFile = "password.txt"

	// KeystoreDir is where geth writes account key files
	KeystoreDir = "keystore"

	// BootnodeDir holds the bootnode key
	BootnodeDir = "bootnode"
)

// LocalDriver lays out network and node state on the local filesystem:
//
//	<base>/networks.json
//	<base>/<network>/<network>_docker-compose.yml
//	<base>/<network>/genesis.json
//	<base>/<network>/bootnode/boot.key
//	<base>/<network>/<node>/password.txt
//	<base>/<network>/<node>/keystore/UTC--...
type LocalDriver struct {
	basePath string
}

// NewLocalDriver creates a new local driver rooted at basePath
func NewLocalDriver(basePath string) (*LocalDriver, error) {
	if basePath == "" {
		basePath = DefaultNetworksPath
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create networks directory: %w", err)
	}

	return &LocalDriver{
		basePath: basePath,
	}, nil
}

// BasePath returns the networks root
func (d *LocalDriver) BasePath() string {
	return d.basePath
}

// RosterPath returns the roster file path
func (d *LocalDriver) RosterPath() string {
	return filepath.Join(d.basePath, RosterFile)
}

// NetworkPath returns the directory of a network
func (d *LocalDriver) NetworkPath(network string) string {
	return filepath.Join(d.basePath, network)
}

// ManifestPath returns the compose file of a network
func (d *LocalDriver) ManifestPath(network string) string {
	return filepath.Join(d.NetworkPath(network), network+"_docker-compose.yml")
}

// GenesisPath returns the genesis document of a network
func (d *LocalDriver) GenesisPath(network string) string {
	return filepath.Join(d.NetworkPath(network), GenesisFile)
}

// BootnodePath returns the bootnode directory of a network
func (d *LocalDriver) BootnodePath(network string) string {
	return filepath.Join(d.NetworkPath(network), BootnodeDir)
}

// NodePath returns the state directory of a node
func (d *LocalDriver) NodePath(network, node string) string {
	return filepath.Join(d.NetworkPath(network), node)
}

// PasswordPath returns the password file of a node
func (d *LocalDriver) PasswordPath(network, node string) string {
	return filepath.Join(d.NodePath(network, node), PasswordFile)
}

// KeystorePath returns the keystore directory of a node
func (d *LocalDriver) KeystorePath(network, node string) string {
	return filepath.Join(d.NodePath(network, node), KeystoreDir)
}

// CreateNetwork creates the network and bootnode directories
func (d *LocalDriver) CreateNetwork(network string) error {
	if err := os.MkdirAll(d.BootnodePath(network), 0755); err != nil {
		return fmt.Errorf("failed to create network directory: %w", err)
	}
	return nil
}

// DeleteNetwork removes a network directory and all contents
func (d *LocalDriver) DeleteNetwork(network string) error {
	return removeDir(d.NetworkPath(network))
}

// CreateNode creates the node directory and writes its password file
func (d *LocalDriver) CreateNode(network, node, password string) error {
	if err := os.MkdirAll(d.NodePath(network, node), 0755); err != nil {
		return fmt.Errorf("failed to create node directory: %w", err)
	}
	if err := os.WriteFile(d.PasswordPath(network, node), []byte(password), 0600); err != nil {
		return fmt.Errorf("failed to write password file: %w", err)
	}
	return nil
}

// DeleteNode removes a node directory and all contents
func (d *LocalDriver) DeleteNode(network, node string) error {
	return removeDir(d.NodePath(network, node))
}

func removeDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Already deleted
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to delete directory %s: %w", path, err)
	}
	return nil
}

// HostPath returns path as an absolute, forward-slash path usable as a
// bind-mount source.
func HostPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return filepath.ToSlash(abs), nil
}

// WriteFile writes data to a temp file next to path and renames it over path
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
