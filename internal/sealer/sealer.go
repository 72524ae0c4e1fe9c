// Package sealer шифрует секреты хранилища аутентифицированным шифрованием
// XChaCha20-Poly1305. Формат: версия (1 байт) | nonce (24 байта) | шифротекст.
package sealer

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// KeySize длина мастер-ключа в байтах.
const KeySize = 32

const formatV1 byte = 1

var (
	ErrInvalidKey     = errors.New("sealer: ключ должен быть 32 байта в base64")
	ErrMalformed      = errors.New("sealer: шифротекст повреждён")
	ErrAuthentication = errors.New("sealer: проверка подлинности не пройдена")
)

// Sealer шифрует и расшифровывает данные ключом, производным от мастер-ключа.
type Sealer struct {
	aead cipher.AEAD
}

// New создаёт Sealer. purpose разделяет подключи для разных назначений.
func New(masterKey []byte, purpose string) (*Sealer, error) {
	if len(masterKey) != KeySize {
		return nil, ErrInvalidKey
	}

	subkey := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, []byte(purpose)), subkey); err != nil {
		return nil, fmt.Errorf("sealer: не удалось вывести подключ: %w", err)
	}

	aead, err := chacha20poly1305.NewX(subkey)
	if err != nil {
		return nil, fmt.Errorf("sealer: не удалось создать шифр: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// ParseKey декодирует мастер-ключ из base64.
func ParseKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	return key, nil
}

// GenerateKey создаёт случайный мастер-ключ в base64.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Seal шифрует plaintext со случайным nonce.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	out := make([]byte, 1+nonceSize, 1+nonceSize+len(plaintext)+s.aead.Overhead())
	out[0] = formatV1
	if _, err := rand.Read(out[1:]); err != nil {
		return nil, fmt.Errorf("sealer: не удалось получить nonce: %w", err)
	}
	return s.aead.Seal(out, out[1:], plaintext, nil), nil
}

// Open расшифровывает данные. Любое повреждение даёт ошибку, а не мусор.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(sealed) < 1+nonceSize+s.aead.Overhead() {
		return nil, ErrMalformed
	}
	if sealed[0] != formatV1 {
		return nil, fmt.Errorf("%w: неизвестная версия формата %d", ErrMalformed, sealed[0])
	}

	plaintext, err := s.aead.Open(nil, sealed[1:1+nonceSize], sealed[1+nonceSize:], nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}
