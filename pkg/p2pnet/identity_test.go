package p2pnet

import (
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/peermesh/bootnode/internal/config"
)

func TestKeypair_SeedDeterministic(t *testing.T) {
	secret := &config.SecretKey{Seed: "well-known-bootstrap-1"}

	_, id1, err := Keypair(secret)
	if err != nil {
		t.Fatalf("Keypair() error = %v", err)
	}
	_, id2, err := Keypair(secret)
	if err != nil {
		t.Fatalf("second Keypair() error = %v", err)
	}
	if id1 != id2 {
		t.Errorf("same seed produced different peer IDs: %s != %s", id1, id2)
	}
}

func TestKeypair_DifferentSeedsDiffer(t *testing.T) {
	_, id1, err := Keypair(&config.SecretKey{Seed: "1"})
	if err != nil {
		t.Fatalf("Keypair() error = %v", err)
	}
	_, id2, err := Keypair(&config.SecretKey{Seed: "2"})
	if err != nil {
		t.Fatalf("Keypair() error = %v", err)
	}
	if id1 == id2 {
		t.Errorf("different seeds produced the same peer ID: %s", id1)
	}
}

func TestKeypair_SeedProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.String().Draw(t, "seed")
		if seed == "" {
			t.Skip()
		}
		_, id1, err := Keypair(&config.SecretKey{Seed: seed})
		if err != nil {
			t.Fatalf("Keypair() error = %v", err)
		}
		_, id2, err := Keypair(&config.SecretKey{Seed: seed})
		if err != nil {
			t.Fatalf("Keypair() error = %v", err)
		}
		if id1 != id2 {
			t.Fatalf("non-deterministic derivation for seed %q", seed)
		}
	})
}

func TestKeypair_RandomDistinct(t *testing.T) {
	_, id1, err := Keypair(nil)
	if err != nil {
		t.Fatalf("Keypair(nil) error = %v", err)
	}
	_, id2, err := Keypair(&config.SecretKey{})
	if err != nil {
		t.Fatalf("Keypair(empty) error = %v", err)
	}
	if id1 == id2 {
		t.Error("two random identities collided")
	}
}

func TestKeypair_RawKeyRoundTrip(t *testing.T) {
	key := strings.Repeat("ab", 32) // 64 hex chars
	_, id1, err := Keypair(&config.SecretKey{Key: key})
	if err != nil {
		t.Fatalf("Keypair() error = %v", err)
	}
	_, id2, err := Keypair(&config.SecretKey{Key: key})
	if err != nil {
		t.Fatalf("re-import Keypair() error = %v", err)
	}
	if id1 != id2 {
		t.Errorf("re-imported key produced different peer ID: %s != %s", id1, id2)
	}
}

func TestKeypair_RawKeyInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty after decode check", "zz"},
		{"odd length", strings.Repeat("a", 63)},
		{"too short", strings.Repeat("ab", 16)},
		{"too long", strings.Repeat("ab", 33)},
		{"non-hex alphabet", strings.Repeat("gh", 32)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Keypair(&config.SecretKey{Key: tt.key}); err == nil {
				t.Errorf("Keypair(key=%q) expected error, got nil", tt.key)
			}
		})
	}
}
