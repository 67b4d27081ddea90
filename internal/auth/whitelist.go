package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ChangedLayout is how whitelist timestamps are written.
const ChangedLayout = "02/01/2006 15:04:05"

// Entry is one whitelisted email.
type Entry struct {
	Email    string `json:"email"`
	Added    string `json:"added"`
	Changed  string `json:"changed"`
	IsListed bool   `json:"isListed"`
}

type whitelistFile struct {
	WhiteListedEmails []Entry `json:"whiteListedEmails"`
}

// FileWhitelist keeps the whitelist in a JSON file. Every operation reads
// the file afresh; writes replace it whole.
type FileWhitelist struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewFileWhitelist returns a whitelist backed by path.
func NewFileWhitelist(path string) *FileWhitelist {
	return &FileWhitelist{path: path, now: time.Now}
}

func (w *FileWhitelist) read() (whitelistFile, error) {
	var f whitelistFile
	data, err := os.ReadFile(w.path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse %s: %w", w.path, err)
	}
	return f, nil
}

func (w *FileWhitelist) write(f whitelistFile) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, w.path)
}

// Entries returns every entry in file order.
func (w *FileWhitelist) Entries() ([]Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("Entries: %w", err)
	}
	return f.WhiteListedEmails, nil
}

// IsListed reports whether email has an entry with isListed set.
func (w *FileWhitelist) IsListed(email string) (bool, error) {
	entries, err := w.Entries()
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if normalizeEmail(e.Email) == normalizeEmail(email) {
			return e.IsListed, nil
		}
	}
	return false, nil
}

// SetListed toggles an existing entry and stamps its changed time.
func (w *FileWhitelist) SetListed(email string, listed bool) (Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := w.read()
	if err != nil {
		return Entry{}, fmt.Errorf("SetListed: %w", err)
	}
	for i, e := range f.WhiteListedEmails {
		if normalizeEmail(e.Email) != normalizeEmail(email) {
			continue
		}
		e.IsListed = listed
		e.Changed = w.now().Format(ChangedLayout)
		f.WhiteListedEmails[i] = e
		if err := w.write(f); err != nil {
			return Entry{}, fmt.Errorf("SetListed: %w", err)
		}
		return e, nil
	}
	return Entry{}, fmt.Errorf("SetListed: %s: %w", email, ErrUnknownEmail)
}

// Add appends a listed entry for email.
func (w *FileWhitelist) Add(email string) (Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := w.read()
	if err != nil {
		return Entry{}, fmt.Errorf("Add: %w", err)
	}
	for _, e := range f.WhiteListedEmails {
		if normalizeEmail(e.Email) == normalizeEmail(email) {
			return Entry{}, fmt.Errorf("Add: %s: %w", email, ErrAlreadyListed)
		}
	}
	stamp := w.now().Format(ChangedLayout)
	e := Entry{Email: normalizeEmail(email), Added: stamp, Changed: stamp, IsListed: true}
	f.WhiteListedEmails = append(f.WhiteListedEmails, e)
	if err := w.write(f); err != nil {
		return Entry{}, fmt.Errorf("Add: %w", err)
	}
	return e, nil
}
