package secrets

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// PrivateKeyField is the JSON field holding the base58 secret key in a signer secret.
const PrivateKeyField = "private_key"

// ErrNoKeySource is returned when no key material is configured.
var ErrNoKeySource = errors.New("no signer key configured")

// KeySource lists the places a signer key may come from, in priority order:
// base58 string, keypair file, Secrets Manager secret.
type KeySource struct {
	PrivateKey string
	Path       string
	SecretName string
}

// LoadSigner returns the signer described by src. resolver is only consulted for
// SecretName and may be nil otherwise.
func LoadSigner(ctx context.Context, src KeySource, resolver *Resolver[solana.PrivateKey]) (solana.PrivateKey, error) {
	switch {
	case src.PrivateKey != "":
		return ParseBase58Key(src.PrivateKey)
	case src.Path != "":
		return LoadKeypairFile(src.Path)
	case src.SecretName != "":
		if resolver == nil {
			return nil, errors.New("secret key source configured without a secrets provider")
		}
		return resolver.Resolve(ctx, src.SecretName, ParseKeySecret)
	default:
		return nil, ErrNoKeySource
	}
}

// ParseBase58Key decodes a 64-byte base58 secret key.
func ParseBase58Key(s string) (solana.PrivateKey, error) {
	key, err := solana.PrivateKeyFromBase58(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode base58 private key: %w", err)
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key is %d bytes, want %d", len(key), ed25519.PrivateKeySize)
	}
	return key, nil
}

// LoadKeypairFile reads a JSON byte-array keypair file. Only the first 32 bytes
// are used, as the ed25519 seed.
func LoadKeypairFile(path string) (solana.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair file: %w", err)
	}
	var raw []byte
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, fmt.Errorf("parse keypair file %s: %w", path, err)
	}
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("keypair file %s: byte %d out of range: %d", path, i, v)
		}
		raw = append(raw, byte(v))
	}
	if len(raw) < ed25519.SeedSize {
		return nil, fmt.Errorf("keypair file %s: %d bytes, need at least %d", path, len(raw), ed25519.SeedSize)
	}
	return solana.PrivateKey(ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])), nil
}

// ParseKeySecret extracts the signer from a secret map.
func ParseKeySecret(m map[string]string) (solana.PrivateKey, error) {
	v, ok := m[PrivateKeyField]
	if !ok || v == "" {
		return nil, fmt.Errorf("missing %q", PrivateKeyField)
	}
	return ParseBase58Key(v)
}
