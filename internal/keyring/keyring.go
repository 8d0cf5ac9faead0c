// Package keyring stores named Ed25519 identities on disk. Each key is a
// 32-byte seed file under <dir>/keys plus a JSON metadata sidecar; the
// daemon and CLI load their signing identity from here at startup.
package keyring

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gezibash/arc-node/pkg/identity"
	"github.com/gezibash/arc-node/pkg/identity/ed25519"
)

var (
	ErrNotFound = errors.New("key not found")
)

// Keyring manages named keys under a single directory.
type Keyring struct {
	dir string
}

// Metadata is the JSON sidecar written next to each seed file.
type Metadata struct {
	PublicKey string    `json:"public_key"`
	CreatedAt time.Time `json:"created_at"`
}

// Key is a loaded keypair with its metadata.
type Key struct {
	Keypair  *ed25519.Keypair
	Metadata Metadata
}

// New creates a keyring rooted at dir. The directory is created lazily
// on first Generate.
func New(dir string) *Keyring {
	return &Keyring{dir: dir}
}

func (kr *Keyring) keysDir() string {
	return filepath.Join(kr.dir, "keys")
}

func (kr *Keyring) seedPath(name string) string {
	return filepath.Join(kr.keysDir(), name+".key")
}

func (kr *Keyring) metaPath(name string) string {
	return filepath.Join(kr.keysDir(), name+".json")
}

// Generate creates and persists a new key under name, overwriting any
// existing key with the same name.
func (kr *Keyring) Generate(name string) (*Key, error) {
	kp, err := ed25519.Generate()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(kr.keysDir(), 0o700); err != nil {
		return nil, fmt.Errorf("create keys directory: %w", err)
	}

	if err := os.WriteFile(kr.seedPath(name), kp.Seed(), 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}

	meta := Metadata{
		PublicKey: hex.EncodeToString(kp.PublicKey().Bytes),
		CreatedAt: time.Now().UTC(),
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		_ = os.Remove(kr.seedPath(name))
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(kr.metaPath(name), metaJSON, 0o600); err != nil {
		_ = os.Remove(kr.seedPath(name))
		return nil, fmt.Errorf("write metadata file: %w", err)
	}

	return &Key{Keypair: kp, Metadata: meta}, nil
}

// Load reads the key stored under name. Returns ErrNotFound if no seed
// file exists.
func (kr *Keyring) Load(name string) (*Key, error) {
	seed, err := os.ReadFile(kr.seedPath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read key file: %w", err)
	}

	kp, err := ed25519.FromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("create keypair from seed: %w", err)
	}

	meta := Metadata{PublicKey: hex.EncodeToString(kp.PublicKey().Bytes)}
	metaJSON, err := os.ReadFile(kr.metaPath(name))
	if err == nil {
		if err := json.Unmarshal(metaJSON, &meta); err != nil {
			return nil, fmt.Errorf("parse metadata: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read metadata file: %w", err)
	}

	return &Key{Keypair: kp, Metadata: meta}, nil
}

// LoadOrCreate loads the key under name, generating one if absent.
func (kr *Keyring) LoadOrCreate(name string) (*Key, error) {
	key, err := kr.Load(name)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return kr.Generate(name)
}

// LoadFile reads a seed file from an arbitrary path, outside the keyring
// directory layout. Used for --key-path overrides.
func LoadFile(path string) (*Key, error) {
	seed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	kp, err := ed25519.FromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("create keypair from seed: %w", err)
	}
	return &Key{
		Keypair:  kp,
		Metadata: Metadata{PublicKey: hex.EncodeToString(kp.PublicKey().Bytes)},
	}, nil
}

// List returns the names of all stored keys.
func (kr *Keyring) List() ([]string, error) {
	entries, err := os.ReadDir(kr.keysDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read keys directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if n, ok := strings.CutSuffix(entry.Name(), ".key"); ok {
			names = append(names, n)
		}
	}
	return names, nil
}

// Delete removes the key stored under name.
func (kr *Keyring) Delete(name string) error {
	if err := os.Remove(kr.seedPath(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete key file: %w", err)
	}
	_ = os.Remove(kr.metaPath(name))
	return nil
}

// Provider returns an identity.Provider that resolves name via
// LoadOrCreate, for handing to a runtime builder.
func (kr *Keyring) Provider(name string) identity.Provider {
	return identity.ProviderFunc(func(_ context.Context) (identity.Signer, error) {
		key, err := kr.LoadOrCreate(name)
		if err != nil {
			return nil, err
		}
		return key.Keypair, nil
	})
}
