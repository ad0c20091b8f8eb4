// Package apikeys maps API keys to user identities.
package apikeys

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// GuestUser is the identity of requests without a key.
const GuestUser = "guest"

var (
	ErrNotFound    = errors.New("api key not found")
	ErrInvalidUser = errors.New("user_id must be 1-64 characters without whitespace")
)

// Registry resolves and issues keys. Implementations are safe for
// concurrent use.
type Registry interface {
	Lookup(ctx context.Context, key string) (string, error)
	Issue(ctx context.Context, userID string) (string, error)
	Revoke(ctx context.Context, key string) (bool, error)
}

// DemoKeys are accepted by every registry and cannot be revoked.
var DemoKeys = map[string]string{
	"demo-key-12345":  "demo",
	"guest-key-67890": "guest",
	"test-key-abcde":  "test",
}

type Memory struct {
	mu   sync.RWMutex
	keys map[string]string
}

// NewMemory returns a registry seeded with DemoKeys.
func NewMemory() *Memory {
	keys := make(map[string]string, len(DemoKeys))
	for k, v := range DemoKeys {
		keys[k] = v
	}
	return &Memory{keys: keys}
}

func (m *Memory) Lookup(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.keys[key]
	if !ok {
		return "", ErrNotFound
	}
	return user, nil
}

func (m *Memory) Issue(_ context.Context, userID string) (string, error) {
	key, err := newKey(userID)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.keys[key] = userID
	m.mu.Unlock()
	return key, nil
}

func (m *Memory) Revoke(_ context.Context, key string) (bool, error) {
	if _, ok := DemoKeys[key]; ok {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; !ok {
		return false, nil
	}
	delete(m.keys, key)
	return true, nil
}

// KeyStore is the persistence used by Persistent. *store.Store satisfies it.
type KeyStore interface {
	InsertAPIKey(ctx context.Context, digest, userID string) error
	LookupAPIKey(ctx context.Context, digest string) (string, bool, error)
	RevokeAPIKey(ctx context.Context, digest string) (bool, error)
}

// Persistent keeps issued keys in a KeyStore, by digest only. Demo keys
// still resolve without a database row.
type Persistent struct {
	store KeyStore
}

func NewPersistent(store KeyStore) *Persistent {
	return &Persistent{store: store}
}

func (p *Persistent) Lookup(ctx context.Context, key string) (string, error) {
	if user, ok := DemoKeys[key]; ok {
		return user, nil
	}
	user, ok, err := p.store.LookupAPIKey(ctx, Digest(key))
	if err != nil {
		return "", fmt.Errorf("lookup api key: %w", err)
	}
	if !ok {
		return "", ErrNotFound
	}
	return user, nil
}

func (p *Persistent) Issue(ctx context.Context, userID string) (string, error) {
	key, err := newKey(userID)
	if err != nil {
		return "", err
	}
	if err := p.store.InsertAPIKey(ctx, Digest(key), userID); err != nil {
		return "", fmt.Errorf("store api key: %w", err)
	}
	return key, nil
}

func (p *Persistent) Revoke(ctx context.Context, key string) (bool, error) {
	if _, ok := DemoKeys[key]; ok {
		return false, nil
	}
	return p.store.RevokeAPIKey(ctx, Digest(key))
}

// Digest is the hex sha256 of a key.
func Digest(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// newKey returns "<user>-<22 url-safe chars>".
func newKey(userID string) (string, error) {
	if userID == "" || len(userID) > 64 || strings.ContainsAny(userID, " \t\r\n") {
		return "", ErrInvalidUser
	}
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return userID + "-" + base64.RawURLEncoding.EncodeToString(buf), nil
}
