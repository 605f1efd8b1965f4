package ratecache

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"

	"github.com/gopenny/gopenny/internal/exchange"
)

// Errors.
var (
	// ErrCache covers I/O and serialization failures below the encryption
	// layer.
	ErrCache = errors.New("rate cache error")

	// ErrEncryption indicates a key mismatch or integrity-check failure on
	// a container that is present on disk. Unlike ErrCache it is never
	// downgraded to an empty cache: discarding a tamper signal would mask
	// a security issue.
	ErrEncryption = errors.New("rate cache encryption error")

	// ErrIncompatibleContainer indicates a container written by an
	// unknown format version. It is rejected rather than misread.
	ErrIncompatibleContainer = errors.New("incompatible rate cache container")
)

// Container layout: magic | version | nonce | AES-GCM sealed JSON payload.
var containerMagic = []byte("GPNY")

const containerVersion byte = 0x01

const (
	keyIterations = 16384
	keyLen        = 32
)

// deriveKey stretches the configured secret into an AES-256 key. The
// application name salts the derivation so two applications with the same
// secret cannot read each other's containers.
func deriveKey(secret, applicationName string) []byte {
	if secret == "" {
		secret = applicationName
	}
	salt := []byte("gopenny:" + applicationName)
	return pbkdf2.Key([]byte(secret), salt, keyIterations, keyLen, sha256.New)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCache, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCache, err)
	}
	return aead, nil
}

// loadContainer reads and decrypts the on-disk container. A missing file is
// an empty cache, not an error.
func loadContainer(path string, aead cipher.AEAD) (map[string][]exchange.RateRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string][]exchange.RateRecord), nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrCache, path, err)
	}

	if len(raw) < len(containerMagic)+1 || !bytes.HasPrefix(raw, containerMagic) {
		return nil, fmt.Errorf("%w: %s: not a rate cache container", ErrIncompatibleContainer, path)
	}
	if version := raw[len(containerMagic)]; version != containerVersion {
		return nil, fmt.Errorf("%w: %s: version %d (want %d)", ErrIncompatibleContainer, path, version, containerVersion)
	}

	sealed := raw[len(containerMagic)+1:]
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("%w: %s: truncated container", ErrEncryption, path)
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: decryption failed (wrong key or tampered container)", ErrEncryption, path)
	}

	records := make(map[string][]exchange.RateRecord)
	if err := json.Unmarshal(plaintext, &records); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrCache, path, err)
	}
	return records, nil
}

// saveContainer encrypts records and atomically replaces the container via
// write-to-temp-then-rename, so a crash never leaves a partial write.
func saveContainer(path string, aead cipher.AEAD, records map[string][]exchange.RateRecord) error {
	plaintext, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("%w: encode container: %v", ErrCache, err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("%w: nonce: %v", ErrCache, err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, len(containerMagic)+1+len(nonce)+len(sealed))
	out = append(out, containerMagic...)
	out = append(out, containerVersion)
	out = append(out, nonce...)
	out = append(out, sealed...)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("%w: mkdir for %s: %v", ErrCache, path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrCache, tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: rename %s: %v", ErrCache, path, err)
	}
	return nil
}
