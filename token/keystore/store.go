// Package keystore owns the signing key for the process lifetime. The key is
// generated lazily on first use, persisted to a JSON file, and cached in
// memory. The file is the only durable artifact the service writes.
package keystore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/snowgate-dev/snowgate/internal/errors"
	"github.com/snowgate-dev/snowgate/token/keys"
)

// storedKey is the on-disk representation of the signing key. Private
// material is included; the file must not be world-readable.
type storedKey struct {
	KeyID         string `json:"kid"`
	Algorithm     string `json:"alg"`
	PrivateKeyPEM string `json:"private_key_pem"`
	PublicKeyPEM  string `json:"public_key_pem"`
}

// Store loads or creates the active signing key. Safe for concurrent use;
// concurrent first calls produce exactly one key.
type Store struct {
	path string

	mu     sync.Mutex
	cached *keys.KeyPair
}

func New(path string) *Store {
	return &Store{path: path}
}

// SigningKey returns the active key pair, generating and persisting one if
// no usable key exists yet. Returns ErrKeyUnavailable when storage cannot be
// read or written and no key is cached.
func (s *Store) SigningKey() (*keys.KeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return s.cached, nil
	}

	keyPair, err := s.load()
	if err == nil {
		s.cached = keyPair
		return keyPair, nil
	}
	if errors.Is(err, errors.ErrKeyUnavailable) {
		return nil, err
	}
	if !os.IsNotExist(err) {
		// The file exists but holds no usable key. Replace it.
		log.Warn().Str("path", s.path).Err(err).Msg("signing key file unusable, generating a new key")
	}

	keyPair, err = s.create()
	if err != nil {
		return nil, err
	}

	s.cached = keyPair
	return keyPair, nil
}

// JWKS returns the public projection of the active key, generating the key
// first if necessary.
func (s *Store) JWKS() (*keys.JWKS, error) {
	keyPair, err := s.SigningKey()
	if err != nil {
		return nil, err
	}
	return keys.NewKeyPairSigner(keyPair).GetJWKS()
}

func (s *Store) load() (*keys.KeyPair, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrapf(errors.ErrKeyUnavailable, "reading key file %s", s.path)
	}

	var stored storedKey
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, errors.Wrapf(err, "unmarshalling key file %s", s.path)
	}

	keyPair, err := keys.LoadKeyPairFromPEM(stored.KeyID, stored.PrivateKeyPEM)
	if err != nil {
		return nil, errors.Wrapf(err, "loading key pair from %s", s.path)
	}
	return keyPair, nil
}

func (s *Store) create() (*keys.KeyPair, error) {
	keyPair, err := keys.GenerateRSAKeyPair(uuid.New().String(), 2048)
	if err != nil {
		return nil, errors.Wrapf(err, "generating signing key")
	}

	privatePEM, err := keyPair.ExportPrivateKeyPEM()
	if err != nil {
		return nil, errors.Wrapf(err, "exporting private key")
	}
	publicPEM, err := keyPair.ExportPublicKeyPEM()
	if err != nil {
		return nil, errors.Wrapf(err, "exporting public key")
	}

	data, err := json.Marshal(storedKey{
		KeyID:         keyPair.KeyID,
		Algorithm:     keyPair.Algorithm,
		PrivateKeyPEM: privatePEM,
		PublicKeyPEM:  publicPEM,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "marshalling signing key")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return nil, errors.Wrapf(errors.ErrKeyUnavailable, "creating key directory %s", filepath.Dir(s.path))
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return nil, errors.Wrapf(errors.ErrKeyUnavailable, "writing key file %s", s.path)
	}

	log.Info().Str("kid", keyPair.KeyID).Str("path", s.path).Msg("generated new signing key")
	return keyPair, nil
}
