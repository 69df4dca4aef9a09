package main

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"os"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

const (
	base58KeypairEnvName = "BS58_KEYPAIR"
	jsonKeypairEnvName   = "KEYPAIR"
)

var errNoKeypair = errors.Errorf("either %s or %s must be set", base58KeypairEnvName, jsonKeypairEnvName)

// loadKeypair reads the payer keypair from the environment. A base58 encoded
// keypair takes precedence over a JSON byte array, which is the format the
// Solana CLI writes keypair files in.
func loadKeypair() (ed25519.PrivateKey, error) {
	if encoded := os.Getenv(base58KeypairEnvName); len(encoded) > 0 {
		return parseBase58Keypair(encoded)
	}
	if encoded := os.Getenv(jsonKeypairEnvName); len(encoded) > 0 {
		return parseJSONKeypair(encoded)
	}
	return nil, errNoKeypair
}

func parseBase58Keypair(encoded string) (ed25519.PrivateKey, error) {
	decoded, err := base58.Decode(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "invalid base58 keypair")
	}
	return toPrivateKey(decoded)
}

func parseJSONKeypair(encoded string) (ed25519.PrivateKey, error) {
	var values []int
	if err := json.Unmarshal([]byte(encoded), &values); err != nil {
		return nil, errors.Wrap(err, "invalid json keypair")
	}

	raw := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, errors.Errorf("invalid keypair byte at index %d: %d", i, v)
		}
		raw[i] = byte(v)
	}
	return toPrivateKey(raw)
}

func toPrivateKey(raw []byte) (ed25519.PrivateKey, error) {
	if len(raw) != ed25519.PrivateKeySize {
		return nil, errors.Errorf("invalid keypair length: %d", len(raw))
	}

	// The trailing half must be the public key derived from the seed
	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !bytes.Equal(derived, raw) {
		return nil, errors.New("keypair public key does not match its seed")
	}
	return derived, nil
}
