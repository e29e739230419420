package genesis

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/cuemby/poanet/pkg/types"
	"github.com/cuemby/poanet/pkg/volume"
	"github.com/ethereum/go-ethereum/params"
)

const (
	// EpochLength is the clique checkpoint interval
	EpochLength = 30000

	// Difficulty is the genesis block difficulty
	Difficulty = "1"

	// GasLimit is the genesis block gas limit
	GasLimit = "8000000"
)

// Document is the geth genesis file for a clique network
type Document struct {
	Config     *params.ChainConfig    `json:"config"`
	Difficulty string                 `json:"difficulty"`
	GasLimit   string                 `json:"gasLimit"`
	ExtraData  string                 `json:"extraData"`
	Alloc      map[string]types.Funds `json:"alloc"`
}

// BuildConsensusConfig assembles the genesis document. Every fork up to
// London is active from block 0.
func BuildConsensusConfig(chainID int64, period uint64, extraData string, alloc map[string]types.Funds) *Document {
	zero := func() *big.Int { return big.NewInt(0) }

	funds := make(map[string]types.Funds, len(alloc))
	for addr, f := range alloc {
		funds[addr] = f
	}

	return &Document{
		Config: &params.ChainConfig{
			ChainID:             big.NewInt(chainID),
			HomesteadBlock:      zero(),
			EIP150Block:         zero(),
			EIP155Block:         zero(),
			EIP158Block:         zero(),
			ByzantiumBlock:      zero(),
			ConstantinopleBlock: zero(),
			PetersburgBlock:     zero(),
			IstanbulBlock:       zero(),
			BerlinBlock:         zero(),
			LondonBlock:         zero(),
			Clique: &params.CliqueConfig{
				Period: period,
				Epoch:  EpochLength,
			},
		},
		Difficulty: Difficulty,
		GasLimit:   GasLimit,
		ExtraData:  extraData,
		Alloc:      funds,
	}
}

// FromNetwork regenerates the full genesis document from the current roster
// state: the signer-role addresses in roster order and the complete alloc.
func FromNetwork(n *types.Network) (*Document, error) {
	extra, err := EncodeAuthoritySet(n.Signers())
	if err != nil {
		return nil, fmt.Errorf("failed to encode signers of %s: %w", n.Name, err)
	}
	return BuildConsensusConfig(n.ChainID, n.BlockTime, extra, n.Alloc), nil
}

// Signers decodes the authority set carried by the document
func (d *Document) Signers() ([]string, error) {
	return DecodeAuthoritySet(d.ExtraData)
}

// Write persists the document as indented JSON, atomically
func Write(path string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal genesis: %w", err)
	}
	if err := volume.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: failed to write genesis %s: %w", types.ErrPersistence, path, err)
	}
	return nil
}

// Read loads a genesis document from disk
func Read(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read genesis %s: %w", path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrCorruptGenesis, path, err)
	}
	return &doc, nil
}
