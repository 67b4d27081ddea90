package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
)

// MinSecretLen is the shortest HS256 secret accepted.
const MinSecretLen = 32

// Issuer mints session tokens for whitelisted users.
type Issuer struct {
	signer    jose.Signer
	directory *Directory
	issuer    string
	ttl       time.Duration
	now       func() time.Time
}

// NewIssuer creates an HS256 issuer.
func NewIssuer(secret []byte, issuer string, ttl time.Duration, dir *Directory) (*Issuer, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("NewIssuer: secret shorter than %d bytes", MinSecretLen)
	}
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: secret},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("NewIssuer: %w", err)
	}
	return &Issuer{signer: signer, directory: dir, issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Issue mints a token for email. Unlisted emails get ErrNotListed.
func (i *Issuer) Issue(email string) (string, Claims, error) {
	c, err := i.directory.Identity(email)
	if err != nil {
		return "", Claims{}, err
	}
	now := i.now()
	c.Claims = jwt.Claims{
		ID:        uuid.NewString(),
		Issuer:    i.issuer,
		Subject:   c.Email,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(i.ttl)),
	}
	raw, err := jwt.Signed(i.signer).Claims(c).Serialize()
	if err != nil {
		return "", Claims{}, fmt.Errorf("Issue: sign: %w", err)
	}
	return raw, c, nil
}

// Verifier checks session tokens.
type Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewVerifier creates an HS256 verifier.
func NewVerifier(secret []byte, issuer string) *Verifier {
	return &Verifier{secret: secret, issuer: issuer, leeway: time.Minute, now: time.Now}
}

// Verify parses and validates a token. Every failure wraps ErrInvalidToken.
func (v *Verifier) Verify(raw string) (Claims, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	var c Claims
	if err := tok.Claims(v.secret, &c); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	err = c.Claims.ValidateWithLeeway(jwt.Expected{Issuer: v.issuer, Time: v.now()}, v.leeway)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Email == "" {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, errors.New("missing email"))
	}
	return c, nil
}
