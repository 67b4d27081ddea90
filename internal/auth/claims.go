// Package auth mints and verifies session tokens and decides who may use
// the service: a whitelist file says who is allowed in, a role book says
// what they may do.
package auth

import (
	"context"
	"errors"
	"slices"

	"github.com/go-jose/go-jose/v4/jwt"
)

var (
	ErrInvalidToken   = errors.New("auth: invalid token")
	ErrNotListed      = errors.New("auth: email is not whitelisted")
	ErrUnknownEmail   = errors.New("auth: email not in whitelist")
	ErrProtectedEntry = errors.New("auth: entry belongs to an administrator")
	ErrAlreadyListed  = errors.New("auth: email already in whitelist")
	ErrInvalidEmail   = errors.New("auth: invalid email address")
)

// AdminGroup members hold every permission and cannot be delisted.
const AdminGroup = "admin"

// Permissions checked by the API.
const (
	PermImport         = "expenses:import"
	PermWrite          = "expenses:write"
	PermCategories     = "categories:write"
	PermManageSettings = "settings:manage"
)

// Claims is the session identity carried in a token.
type Claims struct {
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Groups      []string `json:"groups,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.Claims
}

// InGroup reports group membership.
func (c Claims) InGroup(group string) bool {
	return slices.Contains(c.Groups, group)
}

// IsAdmin reports membership of AdminGroup.
func (c Claims) IsAdmin() bool {
	return c.InGroup(AdminGroup)
}

// Can reports whether the claims grant permission p.
func (c Claims) Can(p string) bool {
	return c.IsAdmin() || slices.Contains(c.Permissions, p)
}

type claimsKey struct{}

// WithClaims stores claims in ctx.
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// FromContext returns the claims stored by WithClaims.
func FromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(Claims)
	return c, ok
}
