package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/jobmatch-auth/internal/apperror"
)

const (
	testClientID = "test-client.apps.googleusercontent.com"
	testKeyID    = "test-key"
)

// googleFixture is a fake Google: an RSA key pair plus a JWKS endpoint that
// publishes the public half.
type googleFixture struct {
	key      *rsa.PrivateKey
	server   *httptest.Server
	verifier *GoogleVerifier
}

func newGoogleFixture(t *testing.T) *googleFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwks := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       &key.PublicKey,
		KeyID:     testKeyID,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(srv.Close)

	v, err := NewGoogleVerifier(context.Background(), GoogleConfig{
		ClientID:   testClientID,
		JWKSURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	return &googleFixture{key: key, server: srv, verifier: v}
}

// sign mints an RS256 ID token. Zero-valued standard claims get sensible
// defaults so each test only spells out what it cares about.
func signGoogleToken(t *testing.T, key *rsa.PrivateKey, claims map[string]any) string {
	t.Helper()

	signer, err := jose.NewSigner(jose.SigningKey{
		Algorithm: jose.RS256,
		Key:       jose.JSONWebKey{Key: key, KeyID: testKeyID, Algorithm: string(jose.RS256)},
	}, (&jose.SignerOptions{}).WithType("JWT"))
	require.NoError(t, err)

	now := time.Now()
	base := map[string]any{
		"iss": DefaultGoogleIssuer,
		"aud": testClientID,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	for k, v := range claims {
		base[k] = v
	}

	raw, err := josejwt.Signed(signer).Claims(base).Serialize()
	require.NoError(t, err)
	return raw
}

func TestGoogleVerify_ValidToken(t *testing.T) {
	f := newGoogleFixture(t)

	token := signGoogleToken(t, f.key, map[string]any{
		"sub":            "1122334455",
		"email":          "ada@example.com",
		"email_verified": true,
		"name":           "Ada Lovelace",
		"picture":        "https://lh3.googleusercontent.com/a/ada",
	})

	claim, err := f.verifier.Verify(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, "1122334455", claim.Subject)
	assert.Equal(t, "Ada Lovelace", claim.Name)
	assert.Equal(t, "ada@example.com", claim.Email)
	assert.Equal(t, "https://lh3.googleusercontent.com/a/ada", claim.Picture)
	assert.True(t, claim.EmailVerified)
	assert.Equal(t, TrustVerified, claim.Trust())
	assert.Equal(t, PathGoogle, claim.Path())
}

func TestGoogleVerify_SchemelessIssuer(t *testing.T) {
	f := newGoogleFixture(t)

	token := signGoogleToken(t, f.key, map[string]any{
		"iss":   "accounts.google.com",
		"sub":   "42",
		"email": "x@example.com",
	})

	_, err := f.verifier.Verify(context.Background(), token)
	assert.NoError(t, err)
}

func TestGoogleVerify_NameFallbacks(t *testing.T) {
	f := newGoogleFixture(t)

	tests := []struct {
		name   string
		claims map[string]any
		want   string
	}{
		{"given_name", map[string]any{"sub": "1", "given_name": "Ada", "email": "ada@example.com"}, "Ada"},
		{"email local part", map[string]any{"sub": "2", "email": "grace.hopper@example.com"}, "grace.hopper"},
		{"nothing at all", map[string]any{"sub": "3"}, "User"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claim, err := f.verifier.Verify(context.Background(), signGoogleToken(t, f.key, tt.claims))
			require.NoError(t, err)
			assert.Equal(t, tt.want, claim.Name)
		})
	}
}

func TestGoogleVerify_Rejections(t *testing.T) {
	f := newGoogleFixture(t)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"wrong audience", signGoogleToken(t, f.key, map[string]any{"sub": "1", "aud": "someone-else"})},
		{"expired", signGoogleToken(t, f.key, map[string]any{"sub": "1", "exp": time.Now().Add(-time.Hour).Unix()})},
		{"wrong issuer", signGoogleToken(t, f.key, map[string]any{"sub": "1", "iss": "https://evil.example.com"})},
		{"foreign signing key", signGoogleToken(t, otherKey, map[string]any{"sub": "1"})},
		{"missing subject", signGoogleToken(t, f.key, map[string]any{"email": "a@b.c"})},
		{"malformed", "not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.verifier.Verify(context.Background(), tt.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrInvalidCredential), "got %v", err)
		})
	}
}

func TestGoogleVerify_KeysUnavailable(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	v, err := NewGoogleVerifier(context.Background(), GoogleConfig{
		ClientID:   testClientID,
		JWKSURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), signGoogleToken(t, key, map[string]any{"sub": "1"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrUpstreamUnavailable), "got %v", err)
}

func TestNewGoogleVerifier_RequiresClientID(t *testing.T) {
	_, err := NewGoogleVerifier(context.Background(), GoogleConfig{})
	assert.Error(t, err)
}
