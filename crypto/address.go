package crypto

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
)

// Prefix is the human-readable part used for principal addresses.
const Prefix = "esc"

// EncodeAddress renders a principal as a bech32 string with the esc prefix.
func EncodeAddress(addr [20]byte) (string, error) {
	converted, err := bech32.ConvertBits(addr[:], 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("encode bech32 address: %w", err)
	}
	encoded, err := bech32.Encode(Prefix, converted)
	if err != nil {
		return "", fmt.Errorf("encode bech32 address: %w", err)
	}
	return encoded, nil
}

// MustEncodeAddress is EncodeAddress for callers holding a known-good value.
func MustEncodeAddress(addr [20]byte) string {
	encoded, err := EncodeAddress(addr)
	if err != nil {
		panic(err)
	}
	return encoded
}

// ParseAddress decodes a bech32 principal address.
func ParseAddress(addr string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return out, fmt.Errorf("decode bech32 address: address required")
	}
	hrp, data, err := bech32.Decode(trimmed)
	if err != nil {
		return out, fmt.Errorf("decode bech32 address: %w", err)
	}
	if hrp != Prefix {
		return out, fmt.Errorf("decode bech32 address: unsupported hrp %q", hrp)
	}
	decoded, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return out, fmt.Errorf("decode bech32 address: %w", err)
	}
	if len(decoded) != len(out) {
		return out, fmt.Errorf("decode bech32 address: invalid length %d", len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}
