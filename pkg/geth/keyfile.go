package geth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cuemby/poanet/pkg/genesis"
	"github.com/cuemby/poanet/pkg/types"
)

// KeyfileMarker is the substring geth puts in every keystore file name
const KeyfileMarker = "UTC--"

// FindKeyfile returns the newest key file in keystoreDir
func FindKeyfile(keystoreDir string) (string, error) {
	entries, err := os.ReadDir(keystoreDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s does not exist", types.ErrKeyfileNotFound, keystoreDir)
		}
		return "", fmt.Errorf("failed to read keystore %s: %w", keystoreDir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.Contains(e.Name(), KeyfileMarker) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: no %s file in %s", types.ErrKeyfileNotFound, KeyfileMarker, keystoreDir)
	}

	// File names start with a UTC timestamp, so lexical order is creation order
	sort.Strings(names)
	return filepath.Join(keystoreDir, names[len(names)-1]), nil
}

// ReadKeyfileAddress returns the 0x-prefixed lowercase account address
// stored in a keystore file.
func ReadKeyfileAddress(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read keyfile: %w", err)
	}

	var key struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(data, &key); err != nil {
		return "", fmt.Errorf("failed to parse keyfile %s: %w", path, err)
	}
	return genesis.NormalizeAddress(key.Address)
}
