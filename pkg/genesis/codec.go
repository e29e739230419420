package genesis

import (
	"fmt"
	"strings"

	"github.com/cuemby/poanet/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	// VanityLength is the reserved prefix of clique extraData
	VanityLength = 32

	// SealLength is the reserved signature suffix of clique extraData
	SealLength = 65
)

// NormalizeAddress strips an optional 0x prefix, lower-cases the address and
// returns it with a 0x prefix. Anything that is not 20 bytes of hex fails.
func NormalizeAddress(addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("%w: %q", types.ErrInvalidAddress, addr)
	}
	return "0x" + strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X")), nil
}

// EncodeAuthoritySet builds the clique extraData field for the ordered signer
// set: 32 zero bytes, each signer's 20 bytes in input order, 65 zero bytes.
// The result is lowercase hex with a 0x prefix.
func EncodeAuthoritySet(signers []string) (string, error) {
	buf := make([]byte, VanityLength, VanityLength+len(signers)*common.AddressLength+SealLength)
	for _, s := range signers {
		if !common.IsHexAddress(s) {
			return "", fmt.Errorf("%w: %q", types.ErrInvalidAddress, s)
		}
		buf = append(buf, common.HexToAddress(s).Bytes()...)
	}
	buf = append(buf, make([]byte, SealLength)...)
	return hexutil.Encode(buf), nil
}

// DecodeAuthoritySet extracts the signer addresses from clique extraData
func DecodeAuthoritySet(extraData string) ([]string, error) {
	buf, err := hexutil.Decode(extraData)
	if err != nil {
		return nil, fmt.Errorf("%w: extraData is not hex: %v", types.ErrValidation, err)
	}
	if len(buf) < VanityLength+SealLength {
		return nil, fmt.Errorf("%w: extraData too short (%d bytes)", types.ErrValidation, len(buf))
	}
	section := buf[VanityLength : len(buf)-SealLength]
	if len(section)%common.AddressLength != 0 {
		return nil, fmt.Errorf("%w: signer section of %d bytes", types.ErrInvalidAddress, len(section))
	}

	signers := make([]string, 0, len(section)/common.AddressLength)
	for i := 0; i < len(section); i += common.AddressLength {
		signers = append(signers, hexutil.Encode(section[i:i+common.AddressLength]))
	}
	return signers, nil
}

// EncodedLength returns the hex length, prefix included, of the extraData
// for n signers.
func EncodedLength(n int) int {
	return 2*(VanityLength+common.AddressLength*n+SealLength) + 2
}
