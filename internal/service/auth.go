package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/jobmatch-auth/internal/apperror"
	"github.com/sakif/jobmatch-auth/internal/auth"
	"github.com/sakif/jobmatch-auth/internal/model"
	"github.com/sakif/jobmatch-auth/internal/repository"
)

// GoogleTokenVerifier turns a Google ID token into a verified claim.
// *auth.GoogleVerifier implements it.
type GoogleTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*auth.GoogleClaim, error)
}

// SupabaseTokenVerifier turns a Supabase access token into a delegated claim.
// *auth.SupabaseVerifier implements it.
type SupabaseTokenVerifier interface {
	Verify(ctx context.Context, bearerToken string) (*auth.SupabaseClaim, error)
}

// AuthService runs the three entry paths and the session check.
//
// Each path produces a claim (verifying it first where there is something to
// verify), hands it to the Resolver, then issues a session token for the
// canonical user. HTTP concerns such as cookies stay in the handler.
type AuthService struct {
	resolver *Resolver
	users    repository.UserRepository
	tokens   *auth.TokenService
	google   GoogleTokenVerifier   // nil when Google sign-in is not configured
	supabase SupabaseTokenVerifier // nil when Supabase is not configured
	logger   *slog.Logger
}

// NewAuthService wires the service. google and supabase may be nil; the
// matching entry path then answers with UpstreamUnavailable.
func NewAuthService(
	resolver *Resolver,
	users repository.UserRepository,
	tokens *auth.TokenService,
	google GoogleTokenVerifier,
	supabase SupabaseTokenVerifier,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		resolver: resolver,
		users:    users,
		tokens:   tokens,
		google:   google,
		supabase: supabase,
		logger:   logger,
	}
}

// AuthResult bundles the canonical user, the issued token and how much the
// credential behind it was proven.
type AuthResult struct {
	User  *model.User
	Token string
	Trust auth.TrustTier
}

// PlainLoginInput is the body of a plain login.
type PlainLoginInput struct {
	Name     string
	Role     string
	Email    string
	Password string
}

// AuthenticatePlain logs in by (name, role) assertion.
//
// No secret is checked: anyone who sends an existing name and role gets that
// account. Password, when given, is hashed and stored on first creation only.
func (s *AuthService) AuthenticatePlain(ctx context.Context, in PlainLoginInput) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperror.MissingField("name", "Name and role are required")
	}
	if strings.TrimSpace(in.Role) == "" {
		return nil, apperror.MissingField("role", "Name and role are required")
	}
	role, ok := model.NormalizeRole(in.Role)
	if !ok {
		return nil, apperror.MissingField("role", "Role must be student or employer")
	}
	if len(in.Password) > auth.MaxPasswordBytes {
		return nil, auth.PasswordTooLong()
	}

	claim := auth.PlainClaim{
		Name:     name,
		Role:     role,
		Email:    strings.TrimSpace(in.Email),
		Password: in.Password,
	}
	return s.complete(ctx, claim)
}

// AuthenticateGoogle verifies a Google ID token and logs the user in.
// roleHint only matters when the account is created; "employer" (or the
// legacy "recruiter") selects an employer account, anything else a student.
func (s *AuthService) AuthenticateGoogle(ctx context.Context, idToken, roleHint string) (*AuthResult, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, apperror.MissingField("idToken", "Google ID token is required")
	}
	if s.google == nil {
		return nil, apperror.UpstreamUnavailable("Google sign-in", errors.New("GOOGLE_CLIENT_ID not configured"))
	}

	claim, err := s.google.Verify(ctx, idToken)
	if err != nil {
		s.logVerifyFailure(auth.PathGoogle, err)
		return nil, err
	}
	if claim.Email == "" {
		return nil, apperror.MissingField("email", "Email verification required")
	}
	if role, ok := model.NormalizeRole(roleHint); ok {
		claim.RoleHint = role
	}

	return s.complete(ctx, *claim)
}

// AuthenticateSupabase asks Supabase who owns bearerToken and logs that user in.
func (s *AuthService) AuthenticateSupabase(ctx context.Context, bearerToken string) (*AuthResult, error) {
	if strings.TrimSpace(bearerToken) == "" {
		return nil, apperror.MissingField("authorization", "Authorization token required")
	}
	if s.supabase == nil {
		return nil, apperror.UpstreamUnavailable("Supabase", errors.New("SUPABASE_URL not configured"))
	}

	claim, err := s.supabase.Verify(ctx, bearerToken)
	if err != nil {
		s.logVerifyFailure(auth.PathSupabase, err)
		return nil, err
	}

	return s.complete(ctx, *claim)
}

// GetSession verifies a session token and re-reads the user it names.
// A valid token whose user has since disappeared yields ErrNotFound.
func (s *AuthService) GetSession(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, apperror.InvalidCredential("Access token required", nil)
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, apperror.InvalidCredential("Invalid or expired token", err)
	}

	user, err := s.users.GetUserByID(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) complete(ctx context.Context, claim auth.Claim) (*AuthResult, error) {
	user, err := s.resolver.Resolve(ctx, claim)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user authenticated",
		slog.String("userID", user.ID),
		slog.String("path", string(claim.Path())),
		slog.String("trust", string(claim.Trust())),
	)

	return &AuthResult{
		User:  user,
		Token: token,
		Trust: claim.Trust(),
	}, nil
}

// logVerifyFailure keeps a rejected credential and an unreachable provider
// apart in the logs, even though callers see a similar failure.
func (s *AuthService) logVerifyFailure(path auth.Path, err error) {
	if errors.Is(err, apperror.ErrUpstreamUnavailable) {
		s.logger.Error("identity provider unavailable",
			slog.String("path", string(path)),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Warn("credential rejected",
		slog.String("path", string(path)),
		slog.String("kind", apperror.Kind(err)),
		slog.String("error", err.Error()),
	)
}
