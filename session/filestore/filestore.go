package filestore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"

	"github.com/jrsteele09/go-auth-client/session"
)

var _ session.Store = (*Store)(nil)

// ErrBadSecret is returned when the stored file cannot be decrypted with the
// configured secret.
var ErrBadSecret = errors.New("session file cannot be decrypted")

const keyDerivationInfo = "session-store-key"

// Store persists session material to a single AES-GCM encrypted file. It is
// the workstation analogue of a mobile platform's secure key-value storage:
// tokens never touch disk in plaintext, and every write replaces the file
// atomically so a crash cannot leave a half-written pair behind.
type Store struct {
	mu   sync.Mutex
	path string
	aead cipher.AEAD
}

// New creates a file-backed store at path. The encryption key is derived
// from secret with HKDF-SHA256.
func New(path string, secret []byte) (*Store, error) {
	key := make([]byte, 32)
	h := hkdf.New(sha256.New, secret, nil, []byte(keyDerivationInfo))
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, errors.Wrap(err, "filestore.New hkdf")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "filestore.New aes.NewCipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "filestore.New cipher.NewGCM")
	}

	return &Store{path: path, aead: aead}, nil
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return "", false, err
	}
	value, ok := values[key]
	return value, ok, nil
}

func (s *Store) SetMany(_ context.Context, pairs map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	for key, value := range pairs {
		values[key] = value
	}
	return s.persist(values)
}

func (s *Store) RemoveMany(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	for _, key := range keys {
		delete(values, key)
	}
	return s.persist(values)
}

func (s *Store) load() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "filestore.Store.load ReadFile")
	}

	nonceSize := s.aead.NonceSize()
	if len(raw) < nonceSize {
		return nil, ErrBadSecret
	}

	plaintext, err := s.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return nil, ErrBadSecret
	}

	values := make(map[string]string)
	if err := json.Unmarshal(plaintext, &values); err != nil {
		return nil, errors.Wrap(err, "filestore.Store.load Unmarshal")
	}
	return values, nil
}

func (s *Store) persist(values map[string]string) error {
	plaintext, err := json.Marshal(values)
	if err != nil {
		return errors.Wrap(err, "filestore.Store.persist Marshal")
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return errors.Wrap(err, "filestore.Store.persist nonce")
	}
	ciphertext := s.aead.Seal(nonce, nonce, plaintext, nil)

	// Write to a temp file in the same directory and rename over the target
	// so readers always see either the old file or the new one.
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "filestore.Store.persist CreateTemp")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(ciphertext); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "filestore.Store.persist Write")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "filestore.Store.persist Close")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "filestore.Store.persist Rename")
	}
	return nil
}
