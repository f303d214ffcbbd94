package apperror

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "MissingField wraps ErrMissingField",
			err:       MissingField("role", "role is required"),
			target:    ErrMissingField,
			wantMatch: true,
		},
		{
			name:      "InvalidCredential wraps ErrInvalidCredential",
			err:       InvalidCredential("invalid Google token", nil),
			target:    ErrInvalidCredential,
			wantMatch: true,
		},
		{
			name:      "UpstreamUnavailable wraps ErrUpstreamUnavailable",
			err:       UpstreamUnavailable("supabase", io.ErrUnexpectedEOF),
			target:    ErrUpstreamUnavailable,
			wantMatch: true,
		},
		{
			name:      "UpstreamUnavailable also matches its cause",
			err:       UpstreamUnavailable("supabase", io.ErrUnexpectedEOF),
			target:    io.ErrUnexpectedEOF,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("user", "googleId=123"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "NotFound through fmt wrapping",
			err:       fmt.Errorf("loading session: %w", NotFound("user", "abc")),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "StoreUnavailable does NOT match ErrNotFound",
			err:       StoreUnavailable("finding user", errors.New("disk full")),
			target:    ErrNotFound,
			wantMatch: false,
		},
		{
			name:      "InvalidCredential does NOT match ErrUpstreamUnavailable",
			err:       InvalidCredential("bad token", nil),
			target:    ErrUpstreamUnavailable,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("user", "abc123"),
			wantMessage: "user not found with id abc123",
		},
		{
			name:        "MissingField uses custom message",
			err:         MissingField("name", "Name and role are required"),
			wantMessage: "Name and role are required",
		},
		{
			name:        "cause is appended for server-side logs",
			err:         StoreUnavailable("creating user", errors.New("database is locked")),
			wantMessage: "creating user: database is locked",
		},
		{
			name:        "UpstreamUnavailable names the provider",
			err:         UpstreamUnavailable("google", nil),
			wantMessage: "google is unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestErrorsAs(t *testing.T) {
	err := fmt.Errorf("service: %w", MissingField("role", "role is required"))

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("errors.As() did not find *AppError")
	}
	if appErr.Field != "role" {
		t.Errorf("Field = %q, want %q", appErr.Field, "role")
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{MissingField("x", "x"), "missing_field"},
		{InvalidCredential("x", nil), "invalid_credential"},
		{UpstreamUnavailable("supabase", nil), "upstream_unavailable"},
		{NotFound("user", "1"), "not_found"},
		{Conflict("user", "k"), "store_conflict"},
		{StoreUnavailable("op", nil), "store_unavailable"},
		{errors.New("boom"), "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
