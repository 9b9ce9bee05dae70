package p2pnet

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"golang.org/x/crypto/sha3"

	"github.com/peermesh/bootnode/internal/config"
)

// secretKeySize is the ed25519 seed width; raw imported keys must decode to
// exactly this many bytes.
const secretKeySize = 32

// Keypair derives the node identity from the secret-key configuration.
//
//   - nil (or empty) secret: fresh random identity.
//   - seed: SHA3-256 digest of the seed as deterministic key material, so
//     identical seeds always yield identical peer IDs.
//   - key: raw ed25519 secret key as exactly 64 hex characters.
func Keypair(secret *config.SecretKey) (crypto.PrivKey, peer.ID, error) {
	var (
		priv crypto.PrivKey
		err  error
	)

	switch {
	case secret != nil && secret.Seed != "":
		digest := sha3.Sum256([]byte(secret.Seed))
		priv, _, err = crypto.GenerateEd25519Key(bytes.NewReader(digest[:]))
		if err != nil {
			return nil, "", fmt.Errorf("failed to derive keypair from seed: %w", err)
		}

	case secret != nil && secret.Key != "":
		raw, decodeErr := hex.DecodeString(secret.Key)
		if decodeErr != nil {
			return nil, "", fmt.Errorf("failed to decode secret key: %w", decodeErr)
		}
		if len(raw) != secretKeySize {
			return nil, "", fmt.Errorf("secret key must be %d bytes, got %d", secretKeySize, len(raw))
		}
		priv, _, err = crypto.GenerateEd25519Key(bytes.NewReader(raw))
		if err != nil {
			return nil, "", fmt.Errorf("failed to import secret key: %w", err)
		}

	default:
		priv, _, err = crypto.GenerateEd25519Key(rand.Reader)
		if err != nil {
			return nil, "", fmt.Errorf("failed to generate keypair: %w", err)
		}
	}

	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return nil, "", fmt.Errorf("failed to derive peer ID: %w", err)
	}
	return priv, id, nil
}
