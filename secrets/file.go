package secrets

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	saltFileName = ".salt"
	fileSuffix   = ".secret"
	saltSize     = 16
	nonceSize    = 24
	keySize      = 32

	argonTime    = 3
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
)

// ErrDecrypt is returned when a stored value cannot be opened with the store key.
var ErrDecrypt = errors.New("secret could not be decrypted")

// FileStore keeps one NaCl secretbox sealed file per key. The box key is derived
// from a passphrase with Argon2id and a salt persisted next to the values.
type FileStore struct {
	mu  sync.RWMutex
	dir string
	key [keySize]byte
}

var _ Store = (*FileStore)(nil)

// NewFileStore opens (creating if needed) an encrypted store rooted at dir.
func NewFileStore(dir, passphrase string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("[NewFileStore] directory is required")
	}
	if passphrase == "" {
		return nil, errors.New("[NewFileStore] passphrase is required")
	}

	// Restricted permissions, owner only
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] create directory")
	}

	salt, err := loadOrCreateSalt(filepath.Join(dir, saltFileName))
	if err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] salt")
	}

	s := &FileStore{dir: dir}
	copy(s.key[:], argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, keySize))
	return s, nil
}

func loadOrCreateSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil {
		if len(salt) != saltSize {
			return nil, errors.Errorf("[loadOrCreateSalt] unexpected salt length %d", len(salt))
		}
		return salt, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	salt = make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, err
	}
	return salt, nil
}

// Dir returns the directory holding the store files
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, base64.RawURLEncoding.EncodeToString([]byte(key))+fileSuffix)
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[FileStore.Get] read %q", key)
	}
	if len(data) < nonceSize+secretbox.Overhead {
		return nil, errors.Wrapf(ErrDecrypt, "[FileStore.Get] %q", key)
	}

	var nonce [nonceSize]byte
	copy(nonce[:], data[:nonceSize])
	value, ok := secretbox.Open(nil, data[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, errors.Wrapf(ErrDecrypt, "[FileStore.Get] %q", key)
	}
	return value, nil
}

// Set seals value and atomically replaces the file for key.
func (s *FileStore) Set(_ context.Context, key string, value []byte) error {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return errors.Wrap(err, "[FileStore.Set] nonce")
	}
	sealed := secretbox.Seal(nonce[:], value, &nonce, &s.key)

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "[FileStore.Set] temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "[FileStore.Set] write %q", key)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "[FileStore.Set] sync %q", key)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "[FileStore.Set] close %q", key)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		return errors.Wrapf(err, "[FileStore.Set] replace %q", key)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "[FileStore.Delete] %q", key)
	}
	return nil
}
