package auth

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Role bundles groups and permissions.
type Role struct {
	Groups      []string `yaml:"groups"`
	Permissions []string `yaml:"permissions"`
}

// RoleBook maps users to roles. Users without an entry get DefaultRole.
type RoleBook struct {
	DefaultRole string            `yaml:"default_role"`
	Roles       map[string]Role   `yaml:"roles"`
	Users       map[string]string `yaml:"users"`
}

// DefaultRoleBook gives every user the member role and no admins.
func DefaultRoleBook() *RoleBook {
	return &RoleBook{
		DefaultRole: "member",
		Roles: map[string]Role{
			"member": {Permissions: []string{PermImport, PermWrite}},
			"admin": {
				Groups:      []string{AdminGroup},
				Permissions: []string{PermImport, PermWrite, PermCategories, PermManageSettings},
			},
		},
		Users: map[string]string{},
	}
}

// LoadRoleBook reads a YAML role book. A missing file yields DefaultRoleBook.
func LoadRoleBook(path string) (*RoleBook, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultRoleBook(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("LoadRoleBook: %w", err)
	}

	var rb RoleBook
	if err := yaml.Unmarshal(data, &rb); err != nil {
		return nil, fmt.Errorf("LoadRoleBook: parse %s: %w", path, err)
	}
	if err := rb.validate(); err != nil {
		return nil, fmt.Errorf("LoadRoleBook: %s: %w", path, err)
	}
	rb.normalize()
	return &rb, nil
}

func (rb *RoleBook) validate() error {
	if _, ok := rb.Roles[rb.DefaultRole]; !ok {
		return fmt.Errorf("default role %q is not defined", rb.DefaultRole)
	}
	for user, role := range rb.Users {
		if _, ok := rb.Roles[role]; !ok {
			return fmt.Errorf("user %s has undefined role %q", user, role)
		}
	}
	return nil
}

func (rb *RoleBook) normalize() {
	users := make(map[string]string, len(rb.Users))
	for email, role := range rb.Users {
		users[normalizeEmail(email)] = role
	}
	rb.Users = users
}

// Lookup returns the role name and definition for email.
func (rb *RoleBook) Lookup(email string) (string, Role) {
	name, ok := rb.Users[normalizeEmail(email)]
	if !ok {
		name = rb.DefaultRole
	}
	return name, rb.Roles[name]
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
