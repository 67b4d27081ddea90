package preferences

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prefs", "preferences.json")
	s := NewFileStore(path, DefaultKeys([]string{"en", "uk"}))
	require.NoError(t, s.Load())
	return s, path
}

func TestSetPersistsAndReloads(t *testing.T) {
	s, path := newStore(t)

	require.NoError(t, s.Set("ann@example.com", KeySidebarCollapsed, json.RawMessage(`true`)))
	require.NoError(t, s.Set("ann@example.com", KeyLocale, json.RawMessage(`"uk"`)))

	reloaded := NewFileStore(path, DefaultKeys([]string{"en", "uk"}))
	require.NoError(t, reloaded.Load())

	v, ok, err := reloaded.Get("ann@example.com", KeyLocale)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `"uk"`, string(v))
	assert.Len(t, reloaded.All("ann@example.com"), 2)
}

func TestGetMissing(t *testing.T) {
	s, _ := newStore(t)

	_, ok, err := s.Get("bob@example.com", KeySidebarCollapsed)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = s.Get("bob@example.com", "theme")
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestSetValidates(t *testing.T) {
	s, _ := newStore(t)

	assert.ErrorIs(t, s.Set("ann@example.com", KeySidebarCollapsed, json.RawMessage(`"yes"`)), ErrInvalidValue)
	assert.ErrorIs(t, s.Set("ann@example.com", KeyLocale, json.RawMessage(`"fr"`)), ErrInvalidValue)
	assert.ErrorIs(t, s.Set("ann@example.com", "theme", json.RawMessage(`"dark"`)), ErrUnknownKey)
	assert.Empty(t, s.All("ann@example.com"))
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	err := NewFileStore(path, DefaultKeys(nil)).Load()
	assert.Error(t, err)
}
