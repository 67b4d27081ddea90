// Package preferences stores small per-user UI settings.
package preferences

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Known keys.
const (
	KeySidebarCollapsed = "sidebarCollapsed"
	KeyLocale           = "locale"
)

var (
	ErrUnknownKey   = errors.New("preferences: unknown key")
	ErrInvalidValue = errors.New("preferences: invalid value")
)

// Service reads and writes preferences.
type Service interface {
	Get(user, key string) (json.RawMessage, bool, error)
	Set(user, key string, value json.RawMessage) error
}

// Validator checks a value before it is stored.
type Validator func(value json.RawMessage) error

// BoolValue accepts JSON booleans.
func BoolValue(value json.RawMessage) error {
	var b bool
	if err := json.Unmarshal(value, &b); err != nil {
		return fmt.Errorf("%w: want boolean", ErrInvalidValue)
	}
	return nil
}

// OneOf accepts JSON strings from allowed.
func OneOf(allowed ...string) Validator {
	return func(value json.RawMessage) error {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return fmt.Errorf("%w: want string", ErrInvalidValue)
		}
		for _, a := range allowed {
			if s == a {
				return nil
			}
		}
		return fmt.Errorf("%w: %q not in %v", ErrInvalidValue, s, allowed)
	}
}

// FileStore keeps every user's preferences in one JSON file. Load must be
// called once at startup; every successful Set rewrites the file.
type FileStore struct {
	mu     sync.RWMutex
	path   string
	keys   map[string]Validator
	values map[string]map[string]json.RawMessage
}

// NewFileStore creates a store for the given keys.
func NewFileStore(path string, keys map[string]Validator) *FileStore {
	return &FileStore{
		path:   path,
		keys:   keys,
		values: make(map[string]map[string]json.RawMessage),
	}
}

// DefaultKeys returns validators for the known keys.
func DefaultKeys(locales []string) map[string]Validator {
	return map[string]Validator{
		KeySidebarCollapsed: BoolValue,
		KeyLocale:           OneOf(locales...),
	}
}

// Load reads the file. A missing file leaves the store empty.
func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("Load: %w", err)
	}
	values := make(map[string]map[string]json.RawMessage)
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("Load: parse %s: %w", s.path, err)
	}
	s.values = values
	return nil
}

// Get returns the stored value and whether one exists.
func (s *FileStore) Get(user, key string) (json.RawMessage, bool, error) {
	if _, ok := s.keys[key]; !ok {
		return nil, false, ErrUnknownKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[user][key]
	return v, ok, nil
}

// All returns a copy of every value stored for user.
func (s *FileStore) All(user string) map[string]json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(s.values[user]))
	for k, v := range s.values[user] {
		out[k] = v
	}
	return out
}

// Set validates and stores value, then saves the file. A failed save leaves
// the previous value in place.
func (s *FileStore) Set(user, key string, value json.RawMessage) error {
	validate, ok := s.keys[key]
	if !ok {
		return ErrUnknownKey
	}
	if err := validate(value); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.values[user][key]
	if s.values[user] == nil {
		s.values[user] = make(map[string]json.RawMessage)
	}
	s.values[user][key] = append(json.RawMessage(nil), value...)
	if err := s.save(); err != nil {
		if had {
			s.values[user][key] = prev
		} else {
			delete(s.values[user], key)
		}
		return fmt.Errorf("Set: %w", err)
	}
	return nil
}

func (s *FileStore) save() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
