package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

const whitelistJSON = `{
  "whiteListedEmails": [
    {"email": "root@example.com", "added": "01/01/2025 10:00:00", "changed": "01/01/2025 10:00:00", "isListed": true},
    {"email": "ann@example.com", "added": "02/01/2025 10:00:00", "changed": "02/01/2025 10:00:00", "isListed": true},
    {"email": "bob@example.com", "added": "03/01/2025 10:00:00", "changed": "03/01/2025 10:00:00", "isListed": false}
  ]
}`

const rolesYAML = `default_role: member
roles:
  member:
    permissions: [expenses:import, expenses:write]
  admin:
    groups: [admin]
    permissions: [settings:manage]
users:
  Root@Example.com: admin
`

func fixture(t *testing.T) (*FileWhitelist, *Directory) {
	t.Helper()
	dir := t.TempDir()
	wlPath := filepath.Join(dir, "whitelist.json")
	require.NoError(t, os.WriteFile(wlPath, []byte(whitelistJSON), 0o644))
	rolesPath := filepath.Join(dir, "roles.yaml")
	require.NoError(t, os.WriteFile(rolesPath, []byte(rolesYAML), 0o644))

	roles, err := LoadRoleBook(rolesPath)
	require.NoError(t, err)
	wl := NewFileWhitelist(wlPath)
	wl.now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }
	return wl, NewDirectory(wl, roles)
}

func TestRoleBookLookup(t *testing.T) {
	_, d := fixture(t)

	name, role := d.roles.Lookup("root@example.com")
	assert.Equal(t, "admin", name)
	assert.Equal(t, []string{AdminGroup}, role.Groups)

	name, role = d.roles.Lookup("someone@example.com")
	assert.Equal(t, "member", name)
	assert.Contains(t, role.Permissions, PermImport)
}

func TestLoadRoleBookMissingFile(t *testing.T) {
	rb, err := LoadRoleBook(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "member", rb.DefaultRole)
}

func TestLoadRoleBookUndefinedRole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_role: ghost\nroles: {}\n"), 0o644))

	_, err := LoadRoleBook(path)
	assert.ErrorContains(t, err, "default role")
}

func TestWhitelistSetListedStampsChanged(t *testing.T) {
	wl, _ := fixture(t)

	e, err := wl.SetListed("BOB@example.com", true)
	require.NoError(t, err)
	assert.True(t, e.IsListed)
	assert.Equal(t, "04/03/2025 05:06:07", e.Changed)
	assert.Equal(t, "03/01/2025 10:00:00", e.Added)

	listed, err := wl.IsListed("bob@example.com")
	require.NoError(t, err)
	assert.True(t, listed)

	_, err = wl.SetListed("nobody@example.com", true)
	assert.ErrorIs(t, err, ErrUnknownEmail)
}

func TestWhitelistAdd(t *testing.T) {
	wl, d := fixture(t)

	e, err := d.Add("New@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", e.Email)
	assert.True(t, e.IsListed)

	_, err = wl.Add("new@example.com")
	assert.ErrorIs(t, err, ErrAlreadyListed)

	_, err = d.Add("not an email")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	entries, err := wl.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestWhitelistMissingFileIsEmpty(t *testing.T) {
	wl := NewFileWhitelist(filepath.Join(t.TempDir(), "none.json"))
	entries, err := wl.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDirectoryProtectsAdmins(t *testing.T) {
	_, d := fixture(t)

	_, err := d.SetListed("root@example.com", false)
	assert.ErrorIs(t, err, ErrProtectedEntry)

	_, err = d.SetListed("ann@example.com", false)
	require.NoError(t, err)
	_, err = d.Identity("ann@example.com")
	assert.ErrorIs(t, err, ErrNotListed)
}

func TestDirectoryMembers(t *testing.T) {
	_, d := fixture(t)

	members, err := d.Members()
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, "admin", members[0].Role)
	assert.Equal(t, "member", members[1].Role)
}

func TestIssueAndVerify(t *testing.T) {
	_, d := fixture(t)
	iss, err := NewIssuer(testSecret, "expense-tracker", time.Hour, d)
	require.NoError(t, err)

	raw, claims, err := iss.Issue("root@example.com")
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())

	got, err := NewVerifier(testSecret, "expense-tracker").Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "root@example.com", got.Email)
	assert.Equal(t, "admin", got.Role)
	assert.True(t, got.Can(PermCategories))
	assert.Equal(t, "root@example.com", got.Subject)
}

func TestIssueRefusesUnlisted(t *testing.T) {
	_, d := fixture(t)
	iss, err := NewIssuer(testSecret, "expense-tracker", time.Hour, d)
	require.NoError(t, err)

	_, _, err = iss.Issue("bob@example.com")
	assert.ErrorIs(t, err, ErrNotListed)
}

func TestNewIssuerShortSecret(t *testing.T) {
	_, d := fixture(t)
	_, err := NewIssuer([]byte("short"), "x", time.Hour, d)
	assert.Error(t, err)
}

func TestVerifyRejects(t *testing.T) {
	_, d := fixture(t)
	iss, err := NewIssuer(testSecret, "expense-tracker", time.Hour, d)
	require.NoError(t, err)
	raw, _, err := iss.Issue("ann@example.com")
	require.NoError(t, err)

	tests := []struct {
		name     string
		verifier *Verifier
		token    string
	}{
		{"garbage", NewVerifier(testSecret, "expense-tracker"), "not-a-token"},
		{"wrong secret", NewVerifier([]byte("ffffffffffffffffffffffffffffffff"), "expense-tracker"), raw},
		{"wrong issuer", NewVerifier(testSecret, "someone-else"), raw},
		{"expired", func() *Verifier {
			v := NewVerifier(testSecret, "expense-tracker")
			v.now = func() time.Time { return time.Now().Add(3 * time.Hour) }
			return v
		}(), raw},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.verifier.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestClaimsCan(t *testing.T) {
	c := Claims{Permissions: []string{PermImport}}
	assert.True(t, c.Can(PermImport))
	assert.False(t, c.Can(PermManageSettings))

	c.Groups = []string{AdminGroup}
	assert.True(t, c.Can(PermManageSettings))
}
