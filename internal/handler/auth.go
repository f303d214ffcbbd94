// Package handler contains the HTTP handlers. They parse requests, call the
// service layer and shape responses; no business rules live here.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/jobmatch-auth/internal/auth"
	"github.com/sakif/jobmatch-auth/internal/model"
	"github.com/sakif/jobmatch-auth/internal/service"
)

// AuthHandler serves the three login paths, the session check and logout.
//
//   - HandlePlainLogin    POST /api/auth/login
//   - HandleGoogleLogin   POST /api/auth/google
//   - HandleSupabaseLogin POST /api/auth/supabase
//   - HandleSession       GET  /api/auth/session
//   - HandleLogout        POST /api/auth/logout
type AuthHandler struct {
	auth       *service.AuthService
	sessionTTL time.Duration
	logger     *slog.Logger
}

// NewAuthHandler creates an AuthHandler. sessionTTL sets the cookie lifetime
// and should match the token lifetime.
func NewAuthHandler(svc *service.AuthService, sessionTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:       svc,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// AuthResponse is returned by all three login paths.
type AuthResponse struct {
	User  model.PublicUserView `json:"user"`
	Token string               `json:"token"`
	Trust auth.TrustTier       `json:"trust"`
}

// SessionResponse is returned by the session check.
type SessionResponse struct {
	User model.PublicUserView `json:"user"`
}

type plainLoginRequest struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleLoginRequest struct {
	IDToken string `json:"idToken"`
	Role    string `json:"role"`
}

// HandlePlainLogin logs in by (name, role) assertion. No secret is checked.
//
// HTTP: POST /api/auth/login {"name", "role", "email"?, "password"?}
func (h *AuthHandler) HandlePlainLogin(w http.ResponseWriter, r *http.Request) {
	var req plainLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadBody(w)
		return
	}

	res, err := h.auth.AuthenticatePlain(r.Context(), service.PlainLoginInput{
		Name:     req.Name,
		Role:     req.Role,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	h.writeAuthResult(w, r, res)
}

// HandleGoogleLogin verifies a Google ID token from the Sign-In button.
//
// HTTP: POST /api/auth/google {"idToken", "role"?}
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req googleLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadBody(w)
		return
	}

	res, err := h.auth.AuthenticateGoogle(r.Context(), req.IDToken, req.Role)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	h.writeAuthResult(w, r, res)
}

// HandleSupabaseLogin trades a Supabase access token for a session.
// The token comes in the Authorization header; there is no body.
//
// HTTP: POST /api/auth/supabase
func (h *AuthHandler) HandleSupabaseLogin(w http.ResponseWriter, r *http.Request) {
	res, err := h.auth.AuthenticateSupabase(r.Context(), auth.BearerToken(r))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	h.writeAuthResult(w, r, res)
}

// HandleSession returns the user behind the session token, read fresh from
// the store. The token may come as a bearer header or the session cookie.
//
// HTTP: GET /api/auth/session
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.GetSession(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{User: user.Public()})
}

// HandleLogout clears the session cookie. Sessions are stateless, so a copied
// token stays valid until it expires.
//
// HTTP: POST /api/auth/logout (behind auth.RequireSession)
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if c, ok := auth.SessionFromContext(r.Context()); ok {
		h.logger.Info("user logged out", slog.String("userID", c.ID))
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// writeAuthResult sets the session cookie and writes the login response.
func (h *AuthHandler) writeAuthResult(w http.ResponseWriter, r *http.Request, res *service.AuthResult) {
	// HttpOnly keeps the token away from page scripts. SameSite=Lax still
	// sends it on top-level navigations.
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})

	writeJSON(w, http.StatusOK, AuthResponse{
		User:  res.User.Public(),
		Token: res.Token,
		Trust: res.Trust,
	})
}
