package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/sakif/jobmatch-auth/internal/apperror"
)

const (
	// DefaultGoogleIssuer is the iss value Google puts in ID tokens. go-oidc
	// also accepts the scheme-less "accounts.google.com" variant for it.
	DefaultGoogleIssuer = "https://accounts.google.com"
	// DefaultGoogleJWKSURL serves Google's current signing keys.
	DefaultGoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
)

// GoogleConfig configures a GoogleVerifier.
type GoogleConfig struct {
	ClientID   string // expected audience
	Issuer     string
	JWKSURL    string
	HTTPClient *http.Client // used to fetch signing keys
}

// GoogleVerifier checks Google Sign-In ID tokens (the credential the Google
// Identity Services button hands the browser) and turns them into GoogleClaims.
//
// Verification is local: signature against Google's published keys, issuer,
// audience and expiry. The only network traffic is the periodic key download,
// which go-oidc caches.
type GoogleVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewGoogleVerifier builds a verifier for tokens minted for cfg.ClientID.
//
// ctx scopes the key set's HTTP requests for the verifier's whole lifetime,
// so pass a long-lived context, not a request context.
func NewGoogleVerifier(ctx context.Context, cfg GoogleConfig) (*GoogleVerifier, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("auth: google client id is required")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultGoogleIssuer
	}
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = DefaultGoogleJWKSURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	keys := oidc.NewRemoteKeySet(oidc.ClientContext(ctx, cfg.HTTPClient), cfg.JWKSURL)

	return &GoogleVerifier{
		verifier: oidc.NewVerifier(cfg.Issuer, keys, &oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// googleIDClaims is the slice of the ID token payload we read.
type googleIDClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	Picture       string `json:"picture"`
}

// Verify validates rawIDToken and extracts its identity claim.
//
// Malformed, expired, wrongly signed or wrong-audience tokens fail with
// apperror.ErrInvalidCredential. Failing to download Google's keys fails with
// apperror.ErrUpstreamUnavailable instead: the token may be fine.
func (v *GoogleVerifier) Verify(ctx context.Context, rawIDToken string) (*GoogleClaim, error) {
	if strings.TrimSpace(rawIDToken) == "" {
		return nil, apperror.MissingField("idToken", "Google ID token is required")
	}

	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, classifyGoogleError(err)
	}

	var c googleIDClaims
	if err := idToken.Claims(&c); err != nil {
		return nil, apperror.InvalidCredential("Invalid Google token", fmt.Errorf("decoding id token claims: %w", err))
	}
	if c.Subject == "" {
		return nil, apperror.InvalidCredential("Invalid Google token", errors.New("id token has no subject"))
	}

	return &GoogleClaim{
		Subject:       c.Subject,
		Name:          googleDisplayName(c),
		Email:         c.Email,
		Picture:       c.Picture,
		EmailVerified: c.EmailVerified,
	}, nil
}

// googleDisplayName picks name, then given_name, then the local part of the
// email, then "User".
func googleDisplayName(c googleIDClaims) string {
	if c.Name != "" {
		return c.Name
	}
	if c.GivenName != "" {
		return c.GivenName
	}
	if local, _, ok := strings.Cut(c.Email, "@"); ok && local != "" {
		return local
	}
	return "User"
}

// classifyGoogleError separates "this token is bad" from "we could not reach
// Google to find out". go-oidc reports key download failures as
// "fetching keys ...: oidc: get keys failed ..." without a typed error.
func classifyGoogleError(err error) error {
	var expired *oidc.TokenExpiredError
	if errors.As(err, &expired) {
		return apperror.InvalidCredential("Google token expired", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(err.Error(), "fetching keys") {
		return apperror.UpstreamUnavailable("google", err)
	}

	return apperror.InvalidCredential("Invalid Google token", err)
}
