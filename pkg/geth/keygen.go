package geth

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuemby/poanet/pkg/types"
	"github.com/cuemby/poanet/pkg/volume"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
)

// BootKeyFile is the bootnode key file name
const BootKeyFile = "boot.key"

// Keygen creates node key material
type Keygen interface {
	// GenerateBootnodeKey writes boot.key into dir and returns the node's
	// public key as 128 hex characters.
	GenerateBootnodeKey(ctx context.Context, dir string) (string, error)

	// NewAccount creates an encrypted account key file in dataDir/keystore,
	// protected by the first line of passwordFile.
	NewAccount(ctx context.Context, dataDir, passwordFile string) error
}

// NativeKeygen generates keys in process with go-ethereum
type NativeKeygen struct {
	scryptN int
	scryptP int
}

// NewNativeKeygen creates a native key generator. Light scrypt parameters
// are much faster and meant for throwaway test networks.
func NewNativeKeygen(lightScrypt bool) *NativeKeygen {
	if lightScrypt {
		return &NativeKeygen{scryptN: keystore.LightScryptN, scryptP: keystore.LightScryptP}
	}
	return &NativeKeygen{scryptN: keystore.StandardScryptN, scryptP: keystore.StandardScryptP}
}

// GenerateBootnodeKey writes a fresh secp256k1 node key as hex
func (k *NativeKeygen) GenerateBootnodeKey(ctx context.Context, dir string) (string, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("%w: failed to generate node key: %w", types.ErrExternalProcess, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create bootnode directory: %w", err)
	}
	if err := crypto.SaveECDSA(filepath.Join(dir, BootKeyFile), key); err != nil {
		return "", fmt.Errorf("%w: failed to save node key: %w", types.ErrExternalProcess, err)
	}
	return hex.EncodeToString(crypto.FromECDSAPub(&key.PublicKey)[1:]), nil
}

// NewAccount writes a new keystore file
func (k *NativeKeygen) NewAccount(ctx context.Context, dataDir, passwordFile string) error {
	password, err := readPassword(passwordFile)
	if err != nil {
		return err
	}
	if _, err := keystore.StoreKey(filepath.Join(dataDir, volume.KeystoreDir), password, k.scryptN, k.scryptP); err != nil {
		return fmt.Errorf("%w: failed to store account key: %w", types.ErrExternalProcess, err)
	}
	return nil
}

// readPassword returns the first line of a password file, as geth does
func readPassword(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read password file: %w", err)
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return strings.TrimRight(line, "\r"), nil
}
