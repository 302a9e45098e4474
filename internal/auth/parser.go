package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrInvalidToken covers every verification failure so callers never leak
// the concrete reason to clients.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenParser verifies bearer tokens issued by the identity provider and
// extracts the user identifier. This service never issues tokens itself.
type TokenParser struct {
	Secret    []byte
	Algorithm jwa.SignatureAlgorithm
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Now       func() time.Time
}

func (p *TokenParser) algorithm() jwa.SignatureAlgorithm {
	if p.Algorithm != "" {
		return p.Algorithm
	}
	return jwa.HS256
}

func (p *TokenParser) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// ParseSubject verifies the token signature and claims and returns the
// subject claim.
func (p *TokenParser) ParseSubject(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidToken
	}
	if len(p.Secret) == 0 {
		return "", errors.New("auth: parser secret not configured")
	}

	options := []jwt.ParseOption{
		jwt.WithKey(p.algorithm(), p.Secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(p.now)),
	}
	if p.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(p.ClockSkew))
	}
	if p.Issuer != "" {
		options = append(options, jwt.WithIssuer(p.Issuer))
	}
	if p.Audience != "" {
		options = append(options, jwt.WithAudience(p.Audience))
	}

	parsed, err := jwt.ParseString(trimmed, options...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	subject := parsed.Subject()
	if subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return subject, nil
}
