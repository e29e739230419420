package genesis

import (
	"encoding/hex"
	"fmt"
	"net"
	"strings"

	"github.com/cuemby/poanet/pkg/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/p2p/enode"
)

// PublicKeyHexLength is the length of an uncompressed secp256k1 public key
// without its 0x04 marker, in hex.
const PublicKeyHexLength = 128

// Enode composes the bootstrap contact address of a bootnode
func Enode(pubkeyHex, ip string, port int) (string, error) {
	pubkeyHex = strings.TrimPrefix(strings.TrimSpace(pubkeyHex), "0x")
	if len(pubkeyHex) != PublicKeyHexLength {
		return "", fmt.Errorf("%w: public key must be %d hex characters, got %d",
			types.ErrValidation, PublicKeyHexLength, len(pubkeyHex))
	}
	raw, err := hex.DecodeString(pubkeyHex)
	if err != nil {
		return "", fmt.Errorf("%w: public key is not hex: %v", types.ErrValidation, err)
	}
	pub, err := crypto.UnmarshalPubkey(append([]byte{0x04}, raw...))
	if err != nil {
		return "", fmt.Errorf("%w: invalid public key: %v", types.ErrValidation, err)
	}
	if !crypto.S256().IsOnCurve(pub.X, pub.Y) {
		return "", fmt.Errorf("%w: public key is not a secp256k1 point", types.ErrValidation)
	}

	addr := net.ParseIP(ip)
	if addr == nil {
		return "", fmt.Errorf("%w: invalid IP address %q", types.ErrValidation, ip)
	}

	return enode.NewV4(pub, addr, port, port).URLv4(), nil
}
