// Package auth handles SDK API keys. A key is presented as "<id>.<secret>";
// only a bcrypt hash of the secret is stored, looked up by id.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var ErrMalformedKey = errors.New("malformed api key")

// Key is a freshly generated API key. Secret is only ever available here.
type Key struct {
	ID     string
	Secret string
	Hash   string
}

// Token is the value clients send in the x-api-key header.
func (k Key) Token() string { return k.ID + "." + k.Secret }

// Generate creates a new key id, secret and bcrypt hash.
func Generate() (Key, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return Key{}, fmt.Errorf("generate secret: %w", err)
	}
	secret := hex.EncodeToString(buf)
	hash, err := HashSecret(secret)
	if err != nil {
		return Key{}, err
	}
	return Key{ID: uuid.NewString(), Secret: secret, Hash: hash}, nil
}

func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash api key: %w", err)
	}
	return string(hash), nil
}

// Parse splits a presented token into key id and secret.
func Parse(token string) (id, secret string, err error) {
	id, secret, found := strings.Cut(strings.TrimSpace(token), ".")
	if !found || secret == "" {
		return "", "", ErrMalformedKey
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", "", ErrMalformedKey
	}
	return id, secret, nil
}

// Matches reports whether secret matches the stored bcrypt hash.
func Matches(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
