// Package auth checks bearer credentials on the write endpoints.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// Scopes granted by signed tokens.
const (
	ScopePredict  = "predict"
	ScopeFeedback = "feedback"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// TokenSet is a list of accepted static secrets. Several entries allow
// rotation: the old and new value are both valid until the old is removed.
type TokenSet struct {
	tokens [][]byte
}

func NewTokenSet(tokens []string) TokenSet {
	set := TokenSet{}
	for _, t := range tokens {
		if t != "" {
			set.tokens = append(set.tokens, []byte(t))
		}
	}
	return set
}

func (s TokenSet) Empty() bool {
	return len(s.tokens) == 0
}

// Contains compares against every entry in constant time.
func (s TokenSet) Contains(token string) bool {
	candidate := []byte(token)
	found := 0
	for _, t := range s.tokens {
		found |= subtle.ConstantTimeCompare(t, candidate)
	}
	return found == 1
}

// Claims carried by signed tokens.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// HasScope reports whether the space-separated scope claim includes scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range strings.Fields(c.Scope) {
		if s == scope {
			return true
		}
	}
	return false
}

// Verifier accepts either a static token from the set for the scope or an
// HS256 token signed with secret that carries the scope.
type Verifier struct {
	static map[string]TokenSet
	secret []byte
	signed map[string]bool
}

func NewVerifier(secret string) *Verifier {
	v := &Verifier{static: map[string]TokenSet{}, signed: map[string]bool{}}
	if secret != "" {
		v.secret = []byte(secret)
	}
	return v
}

// WithTokens registers static tokens accepted for scope.
func (v *Verifier) WithTokens(scope string, tokens []string) *Verifier {
	v.static[scope] = NewTokenSet(tokens)
	return v
}

// RequireSigned makes a configured signing secret enforce the given scopes.
// Signed tokens are accepted on every scope, but they only close a scope
// that has no static tokens when it is listed here.
func (v *Verifier) RequireSigned(scopes ...string) *Verifier {
	for _, s := range scopes {
		v.signed[s] = true
	}
	return v
}

// Enforced reports whether any credential is configured for scope. An
// unconfigured scope is open.
func (v *Verifier) Enforced(scope string) bool {
	return !v.static[scope].Empty() || (v.secret != nil && v.signed[scope])
}

func (v *Verifier) Verify(scope, token string) error {
	if token == "" {
		return ErrMissingToken
	}
	if v.static[scope].Contains(token) {
		return nil
	}
	if v.secret == nil {
		return ErrInvalidToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !claims.HasScope(scope) {
		return fmt.Errorf("%w: scope %q not granted", ErrInvalidToken, scope)
	}
	return nil
}

// Sign issues an HS256 token for the given scopes. Used by the CLI.
func Sign(secret string, subject string, scopes []string, claims jwt.RegisteredClaims) (string, error) {
	if secret == "" {
		return "", errors.New("no signing secret configured")
	}
	claims.Subject = subject
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Scope:            strings.Join(scopes, " "),
		RegisteredClaims: claims,
	})
	return token.SignedString([]byte(secret))
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
