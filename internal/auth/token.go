package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType is the OAuth2 token type returned alongside access tokens.
const TokenType = "bearer"

// ErrInvalidToken wraps every token validation failure.
var ErrInvalidToken = errors.New("invalid token")

// Token is an issued access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Claims is the validated content of an access token.
type Claims struct {
	Subject   string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Tokens issues and validates HS256 access tokens whose subject is a username.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens returns a token capability. now may be nil, in which case time.Now is used.
func NewTokens(secret []byte, ttl time.Duration, now func() time.Time) (*Tokens, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	if now == nil {
		now = time.Now
	}
	return &Tokens{secret: secret, ttl: ttl, now: now}, nil
}

// TTL returns the lifetime of issued tokens.
func (t *Tokens) TTL() time.Duration { return t.ttl }

// Issue signs a token for username that expires after the configured TTL.
func (t *Tokens) Issue(username string) (Token, error) {
	if username == "" {
		return Token{}, errors.New("issue token: empty subject")
	}

	issued := t.now()
	expires := issued.Add(t.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   username,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(expires),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}

	return Token{
		AccessToken: signed,
		TokenType:   TokenType,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// Validate checks signature, algorithm and expiry against the injected clock
// and requires a subject. Every failure wraps ErrInvalidToken.
func (t *Tokens) Validate(tokenString string) (Claims, error) {
	var rc jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &rc, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if rc.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	c := Claims{Subject: rc.Subject, ID: rc.ID}
	if rc.IssuedAt != nil {
		c.IssuedAt = rc.IssuedAt.Time
	}
	if rc.ExpiresAt != nil {
		c.ExpiresAt = rc.ExpiresAt.Time
	}
	return c, nil
}
