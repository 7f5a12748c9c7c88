package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TokenKey is the single key the client keeps its session under.
const TokenKey = "auth_token"

var ErrNoToken = errors.New("no stored auth token")

// TokenStore persists the auth token in a small JSON file. A token found malformed,
// expired or missing claims is removed on Load.
type TokenStore struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path, now: time.Now}
}

func DefaultTokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "plancheckout", "auth.json"), nil
}

func (s *TokenStore) Path() string {
	return s.path
}

func (s *TokenStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[TokenStore] replacing unreadable %s: %v", s.path, err)
	}
	if entries == nil {
		entries = make(map[string]string)
	}
	entries[TokenKey] = token
	return s.write(entries)
}

// Load returns the stored token and its claims for auto-login.
func (s *TokenStore) Load() (string, *SubscriberClaims, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if errors.Is(err, os.ErrNotExist) {
		return "", nil, ErrNoToken
	}
	if err != nil {
		log.Printf("[TokenStore] removing unreadable %s: %v", s.path, err)
		if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return "", nil, rmErr
		}
		return "", nil, ErrInvalidJWTToken
	}

	token := entries[TokenKey]
	if token == "" {
		return "", nil, ErrNoToken
	}

	claims, err := ParseUnverified(token, s.now())
	if err != nil {
		log.Printf("[TokenStore] discarding stored token: %v", err)
		delete(entries, TokenKey)
		if wErr := s.write(entries); wErr != nil {
			return "", nil, fmt.Errorf("discard token: %w", wErr)
		}
		return "", nil, err
	}
	return token, claims, nil
}

func (s *TokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return os.Remove(s.path)
	}
	delete(entries, TokenKey)
	return s.write(entries)
}

func (s *TokenStore) read() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	entries := make(map[string]string)
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return entries, nil
}

func (s *TokenStore) write(entries map[string]string) error {
	if len(entries) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
