package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"time"

	"go-cms-app/internal/auth"
	"go-cms-app/internal/data"
	"go-cms-app/internal/logger"
	"go-cms-app/internal/middleware"
	"go-cms-app/internal/service"
	"go-cms-app/internal/session"

	"golang.org/x/oauth2"
)

// OIDCProvider is the part of *auth.Authenticator the handlers use.
type OIDCProvider interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Identify(ctx context.Context, code string) (*auth.Identity, error)
}

// AuthHandler holds the dependencies for the authentication handlers.
type AuthHandler struct {
	users    service.UserServicer
	sessions session.Manager
	tokens   *auth.TokenIssuer
	oidc     OIDCProvider
	log      logger.Logger
}

// NewAuthHandler creates a new AuthHandler. tokens and oidc may be nil to
// disable bearer tokens and SSO.
func NewAuthHandler(users service.UserServicer, sm session.Manager, tokens *auth.TokenIssuer, oidc OIDCProvider, log logger.Logger) *AuthHandler {
	return &AuthHandler{users: users, sessions: sm, tokens: tokens, oidc: oidc, log: log}
}

type registerRequest struct {
	Username string  `json:"username"`
	Email    *string `json:"email"`
	Password string  `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	User      *data.User `json:"user"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) error {
	var body registerRequest
	if err := decodeJSON(w, r, &body); err != nil {
		return err
	}
	user, err := h.users.Register(r.Context(), body.Username, body.Email, body.Password)
	if err != nil {
		return err
	}
	return h.startSession(w, r, user, http.StatusCreated)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) error {
	var body loginRequest
	if err := decodeJSON(w, r, &body); err != nil {
		return err
	}
	user, err := h.users.Authenticate(r.Context(), body.Username, body.Password)
	if err != nil {
		return err
	}
	return h.startSession(w, r, user, http.StatusOK)
}

// startSession logs user in on the cookie session and, when enabled, issues a
// bearer token for non-browser clients.
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *data.User, code int) error {
	if err := h.sessions.RenewToken(r.Context()); err != nil {
		return err
	}
	h.sessions.Put(r.Context(), session.UserIDKey, user.ID)

	resp := loginResponse{User: user}
	if h.tokens != nil {
		token, expires, err := h.tokens.Issue(user.ID)
		if err != nil {
			return err
		}
		resp.Token = token
		resp.ExpiresAt = &expires
	}
	middleware.WriteJSON(w, code, resp)
	return nil
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) error {
	if err := h.sessions.Destroy(r.Context()); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) error {
	user, err := h.users.GetUser(r.Context(), middleware.GetUserInfo(r.Context()).UserID)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, user)
	return nil
}

// oidcLogin redirects the user to the OIDC provider to log in.
// The random state is kept in the session and checked on callback.
func (h *AuthHandler) oidcLogin(w http.ResponseWriter, r *http.Request) error {
	if h.oidc == nil {
		return &middleware.AppError{Err: errNotConfigured, Message: "single sign-on is not configured", Code: http.StatusNotFound}
	}
	state, err := randString(16)
	if err != nil {
		return err
	}
	h.sessions.Put(r.Context(), session.OIDCStateKey, state)
	http.Redirect(w, r, h.oidc.AuthCodeURL(state), http.StatusFound)
	return nil
}

// oidcCallback is the redirect URL for the OIDC provider.
func (h *AuthHandler) oidcCallback(w http.ResponseWriter, r *http.Request) error {
	if h.oidc == nil {
		return &middleware.AppError{Err: errNotConfigured, Message: "single sign-on is not configured", Code: http.StatusNotFound}
	}
	state := h.sessions.PopString(r.Context(), session.OIDCStateKey)
	if state == "" || r.URL.Query().Get("state") != state {
		return middleware.BadRequest(errors.New("state mismatch"), "state did not match")
	}

	identity, err := h.oidc.Identify(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		return &middleware.AppError{Err: err, Message: "failed to verify identity", Code: http.StatusUnauthorized}
	}
	user, err := h.users.FindOrCreateOIDCUser(r.Context(), identity.Subject, identity.PreferredUsername, identity.Email)
	if err != nil {
		return err
	}
	return h.startSession(w, r, user, http.StatusOK)
}

// randString is a helper function to generate a random string for the 'state' parameter.
func randString(nByte int) (string, error) {
	b := make([]byte, nByte)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
