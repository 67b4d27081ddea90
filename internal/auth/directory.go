package auth

import (
	"fmt"
	"net/mail"
	"slices"
)

// Whitelist decides who may sign in.
type Whitelist interface {
	Entries() ([]Entry, error)
	IsListed(email string) (bool, error)
	SetListed(email string, listed bool) (Entry, error)
	Add(email string) (Entry, error)
}

// Directory joins the whitelist with the role book.
type Directory struct {
	whitelist Whitelist
	roles     *RoleBook
}

// NewDirectory creates a directory. A nil role book means DefaultRoleBook.
func NewDirectory(w Whitelist, roles *RoleBook) *Directory {
	if roles == nil {
		roles = DefaultRoleBook()
	}
	return &Directory{whitelist: w, roles: roles}
}

// Member is a whitelist entry with the role it resolves to.
type Member struct {
	Entry
	Role   string   `json:"role"`
	Groups []string `json:"groups"`
}

// Members lists whitelist entries with their roles.
func (d *Directory) Members() ([]Member, error) {
	entries, err := d.whitelist.Entries()
	if err != nil {
		return nil, err
	}
	out := make([]Member, len(entries))
	for i, e := range entries {
		name, role := d.roles.Lookup(e.Email)
		out[i] = Member{Entry: e, Role: name, Groups: role.Groups}
	}
	return out, nil
}

// Identity resolves email to session claims, refusing unlisted emails.
func (d *Directory) Identity(email string) (Claims, error) {
	listed, err := d.whitelist.IsListed(email)
	if err != nil {
		return Claims{}, fmt.Errorf("Identity: %w", err)
	}
	if !listed {
		return Claims{}, ErrNotListed
	}
	name, role := d.roles.Lookup(email)
	return Claims{
		Email:       normalizeEmail(email),
		Role:        name,
		Groups:      append([]string(nil), role.Groups...),
		Permissions: append([]string(nil), role.Permissions...),
	}, nil
}

// IsListed reports whether email may currently sign in.
func (d *Directory) IsListed(email string) (bool, error) {
	return d.whitelist.IsListed(email)
}

// SetListed toggles an entry. Administrators cannot be toggled.
func (d *Directory) SetListed(email string, listed bool) (Entry, error) {
	if _, role := d.roles.Lookup(email); slices.Contains(role.Groups, AdminGroup) {
		return Entry{}, ErrProtectedEntry
	}
	return d.whitelist.SetListed(email, listed)
}

// Add whitelists a new, syntactically valid email.
func (d *Directory) Add(email string) (Entry, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return Entry{}, fmt.Errorf("Add: %q: %w", email, ErrInvalidEmail)
	}
	return d.whitelist.Add(email)
}
