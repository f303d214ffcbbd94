package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/jobmatch-auth/internal/apperror"
)

// SupabaseVerifier exchanges a Supabase access token for the user it belongs
// to by calling Supabase Auth's "current user" endpoint (GET /auth/v1/user).
//
// There is no local signature check. Whatever Supabase answers is trusted,
// which is why claims from here carry TrustDelegated.
type SupabaseVerifier struct {
	userURL    string
	anonKey    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewSupabaseVerifier creates a verifier for the project at baseURL
// (e.g. "https://abc.supabase.co"). anonKey is optional; when set it is sent
// as the apikey header the Supabase gateway expects.
func NewSupabaseVerifier(baseURL, anonKey string, client *http.Client) (*SupabaseVerifier, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("auth: SUPABASE_URL not configured")
	}

	timeout := 10 * time.Second
	if client == nil {
		client = &http.Client{Timeout: timeout}
	} else if client.Timeout > 0 {
		timeout = client.Timeout
	}

	return &SupabaseVerifier{
		userURL:    baseURL + "/auth/v1/user",
		anonKey:    anonKey,
		httpClient: client,
		timeout:    timeout,
	}, nil
}

// supabaseUser is the part of the /auth/v1/user response we read.
type supabaseUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// Verify resolves bearerToken to a SupabaseClaim.
//
// A non-2xx answer means Supabase rejected the token (ErrInvalidCredential),
// except 5xx and 429 which say nothing about the token and are reported as
// ErrUpstreamUnavailable, as are transport failures and timeouts.
func (v *SupabaseVerifier) Verify(ctx context.Context, bearerToken string) (*SupabaseClaim, error) {
	if strings.TrimSpace(bearerToken) == "" {
		return nil, apperror.MissingField("authorization", "Supabase access token required in Authorization header")
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	// oauth2.NewClient layers "Authorization: Bearer <token>" on top of our
	// base client's transport.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, v.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: bearerToken}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.userURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building supabase request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if v.anonKey != "" {
		req.Header.Set("apikey", v.anonKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, apperror.UpstreamUnavailable("supabase", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperror.UpstreamUnavailable("supabase", fmt.Errorf("reading response: %w", err))
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperror.UpstreamUnavailable("supabase", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, apperror.InvalidCredential("Invalid Supabase token",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var u supabaseUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, apperror.UpstreamUnavailable("supabase", fmt.Errorf("decoding user: %w", err))
	}
	if u.ID == "" {
		return nil, apperror.UpstreamUnavailable("supabase", errors.New("user response has no id"))
	}

	return &SupabaseClaim{
		UserID:   u.ID,
		Email:    u.Email,
		Name:     supabaseDisplayName(u),
		RoleHint: stringValue(u.UserMetadata["role"]),
	}, nil
}

// supabaseDisplayName picks metadata full_name, then name, then email, then "User".
func supabaseDisplayName(u supabaseUser) string {
	for _, v := range []string{
		stringValue(u.UserMetadata["full_name"]),
		stringValue(u.UserMetadata["name"]),
		u.Email,
	} {
		if v != "" {
			return v
		}
	}
	return "User"
}

func stringValue(input any) string {
	switch v := input.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}
