package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenSetContains(t *testing.T) {
	set := NewTokenSet([]string{"old", "", "new"})

	assert.True(t, set.Contains("old"))
	assert.True(t, set.Contains("new"))
	assert.False(t, set.Contains(""))
	assert.False(t, set.Contains("ne"))
	assert.False(t, set.Contains("newer"))
	assert.True(t, NewTokenSet(nil).Empty())
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc "))
	assert.Empty(t, BearerToken("Basic abc"))
	assert.Empty(t, BearerToken("abc"))
	assert.Empty(t, BearerToken(""))
}

func TestVerifierStaticTokens(t *testing.T) {
	v := NewVerifier("").WithTokens(ScopeFeedback, []string{"s3cret"})

	assert.NoError(t, v.Verify(ScopeFeedback, "s3cret"))
	assert.ErrorIs(t, v.Verify(ScopeFeedback, "nope"), ErrInvalidToken)
	assert.ErrorIs(t, v.Verify(ScopeFeedback, ""), ErrMissingToken)
	assert.ErrorIs(t, v.Verify(ScopePredict, "s3cret"), ErrInvalidToken)
	assert.False(t, v.Enforced(ScopePredict))
	assert.True(t, v.Enforced(ScopeFeedback))
}

func TestVerifierSignedTokens(t *testing.T) {
	v := NewVerifier("signing-key")

	token, err := Sign("signing-key", "mobile-app", []string{ScopeFeedback}, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)

	assert.NoError(t, v.Verify(ScopeFeedback, token))
	assert.ErrorIs(t, v.Verify(ScopePredict, token), ErrInvalidToken)

	expired, err := Sign("signing-key", "mobile-app", []string{ScopeFeedback}, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	require.NoError(t, err)
	assert.ErrorIs(t, v.Verify(ScopeFeedback, expired), ErrInvalidToken)

	forged, err := Sign("other-key", "mobile-app", []string{ScopeFeedback}, jwt.RegisteredClaims{})
	require.NoError(t, err)
	assert.ErrorIs(t, v.Verify(ScopeFeedback, forged), ErrInvalidToken)
}

func TestRequire(t *testing.T) {
	mw := NewMiddleware(NewVerifier("").WithTokens(ScopeFeedback, []string{"s3cret"}))
	called := 0
	h := mw.Require(ScopeFeedback, http.StatusForbidden, "Token invalide", func(w http.ResponseWriter, r *http.Request) {
		called++
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/feedback", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"detail":"Token invalide"}`, rec.Body.String())
	assert.Zero(t, called)

	req = httptest.NewRequest(http.MethodPost, "/api/feedback", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, called)
}

func TestRequireOpenScope(t *testing.T) {
	mw := NewMiddleware(NewVerifier(""))
	h := mw.Require(ScopePredict, http.StatusUnauthorized, "Not authenticated", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/api/predict", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSigningSecretOnlyClosesRequiredScopes(t *testing.T) {
	v := NewVerifier("signing-key").RequireSigned(ScopeFeedback)
	assert.False(t, v.Enforced(ScopePredict))
	assert.True(t, v.Enforced(ScopeFeedback))

	token, err := Sign("signing-key", "kiosk", []string{ScopePredict}, jwt.RegisteredClaims{})
	require.NoError(t, err)
	assert.NoError(t, v.Verify(ScopePredict, token))

	mw := NewMiddleware(v)
	h := mw.Require(ScopePredict, http.StatusUnauthorized, "Not authenticated", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/api/predict", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.False(t, NewVerifier("").RequireSigned(ScopeFeedback).Enforced(ScopeFeedback))
}
