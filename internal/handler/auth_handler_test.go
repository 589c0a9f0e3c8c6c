//go:build unit

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go-cms-app/internal/auth"
	"go-cms-app/internal/data"
	"go-cms-app/internal/logger"
	"go-cms-app/internal/middleware"
	"go-cms-app/internal/service"
	"go-cms-app/internal/session"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"
)

// recordingSession is a session.Manager backed by a plain map.
type recordingSession struct {
	values    map[string]interface{}
	renewed   int
	destroyed bool
}

func newRecordingSession() *recordingSession {
	return &recordingSession{values: map[string]interface{}{}}
}

func (s *recordingSession) LoadAndSave(next http.Handler) http.Handler { return next }
func (s *recordingSession) Put(ctx context.Context, key string, val interface{}) { s.values[key] = val }
func (s *recordingSession) GetInt64(ctx context.Context, key string) int64 {
	v, _ := s.values[key].(int64)
	return v
}
func (s *recordingSession) GetString(ctx context.Context, key string) string {
	v, _ := s.values[key].(string)
	return v
}
func (s *recordingSession) PopString(ctx context.Context, key string) string {
	v := s.GetString(ctx, key)
	delete(s.values, key)
	return v
}
func (s *recordingSession) RenewToken(ctx context.Context) error { s.renewed++; return nil }
func (s *recordingSession) Destroy(ctx context.Context) error {
	s.destroyed = true
	s.values = map[string]interface{}{}
	return nil
}
func (s *recordingSession) Remove(ctx context.Context, key string) { delete(s.values, key) }

var _ session.Manager = (*recordingSession)(nil)

// mockUserService is a mock implementation of service.UserServicer.
type mockUserService struct {
	user        *data.User
	errToReturn error
	lastSubject string
}

func (m *mockUserService) Register(ctx context.Context, username string, email *string, password string) (*data.User, error) {
	return m.user, m.errToReturn
}

func (m *mockUserService) Authenticate(ctx context.Context, username, password string) (*data.User, error) {
	return m.user, m.errToReturn
}

func (m *mockUserService) GetUser(ctx context.Context, id int64) (*data.User, error) {
	return m.user, m.errToReturn
}

func (m *mockUserService) FindOrCreateOIDCUser(ctx context.Context, subject, preferredUsername string, email *string) (*data.User, error) {
	m.lastSubject = subject
	return m.user, m.errToReturn
}

type fakeOIDC struct {
	identity *auth.Identity
	err      error
}

func (f *fakeOIDC) AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string {
	return "https://idp.example.com/auth?state=" + state
}

func (f *fakeOIDC) Identify(ctx context.Context, code string) (*auth.Identity, error) {
	return f.identity, f.err
}

func newAuthTestRouter(users service.UserServicer, sm session.Manager, oidc OIDCProvider) *chi.Mux {
	log := logger.Nop()
	return NewRouter(
		NewPageHandler(nil, log),
		NewAuthHandler(users, sm, auth.NewTokenIssuer("test-secret", 0), oidc, log),
		NewAssetHandler(nil, log),
		Middleware{Authn: asUser, Authz: passthrough, Errors: middleware.Error(log)},
	)
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		sm := newRecordingSession()
		router := newAuthTestRouter(&mockUserService{user: &data.User{ID: 5, Username: "alice"}}, sm, nil)

		req := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(`{"username":"alice","password":"correct horse"}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("want status %d; got %d (%s)", http.StatusOK, rr.Code, rr.Body.String())
		}
		if sm.renewed != 1 {
			t.Errorf("expected the session token to be renewed once, got %d", sm.renewed)
		}
		if sm.GetInt64(context.Background(), session.UserIDKey) != 5 {
			t.Errorf("expected user 5 in the session, got %v", sm.values[session.UserIDKey])
		}

		var resp loginResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		id, err := auth.NewTokenIssuer("test-secret", 0).Parse(resp.Token)
		if err != nil || id != 5 {
			t.Errorf("expected a token for user 5, got %d (%v)", id, err)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		router := newAuthTestRouter(&mockUserService{errToReturn: service.ErrInvalidCredentials}, newRecordingSession(), nil)

		req := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(`{"username":"alice","password":"x"}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("want status %d; got %d", http.StatusUnauthorized, rr.Code)
		}
	})
}

func TestAuthHandler_Register(t *testing.T) {
	router := newAuthTestRouter(&mockUserService{user: &data.User{ID: 1, Username: "alice"}}, newRecordingSession(), nil)

	req := httptest.NewRequest("POST", "/api/auth/register", strings.NewReader(`{"username":"alice","password":"correct horse"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("want status %d; got %d", http.StatusCreated, rr.Code)
	}
	if strings.Contains(rr.Body.String(), "correct horse") {
		t.Error("response must not echo the password")
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	sm := newRecordingSession()
	sm.values[session.UserIDKey] = int64(5)
	router := newAuthTestRouter(&mockUserService{}, sm, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("POST", "/api/auth/logout", nil))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("want status %d; got %d", http.StatusNoContent, rr.Code)
	}
	if !sm.destroyed {
		t.Error("expected the session to be destroyed")
	}
}

func TestAuthHandler_OIDC(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		router := newAuthTestRouter(&mockUserService{}, newRecordingSession(), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/auth/oidc/login", nil))
		if rr.Code != http.StatusNotFound {
			t.Errorf("want status %d; got %d", http.StatusNotFound, rr.Code)
		}
	})

	t.Run("login then callback", func(t *testing.T) {
		sm := newRecordingSession()
		users := &mockUserService{user: &data.User{ID: 9, Username: "carol"}}
		router := newAuthTestRouter(users, sm, &fakeOIDC{identity: &auth.Identity{Subject: "sub-9", PreferredUsername: "carol"}})

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/auth/oidc/login", nil))
		if rr.Code != http.StatusFound {
			t.Fatalf("want status %d; got %d", http.StatusFound, rr.Code)
		}
		state := sm.GetString(context.Background(), session.OIDCStateKey)
		if state == "" || !strings.HasSuffix(rr.Header().Get("Location"), "state="+state) {
			t.Fatalf("expected the redirect to carry the session state, got %q", rr.Header().Get("Location"))
		}

		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/auth/oidc/callback?code=abc&state="+state, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("want status %d; got %d (%s)", http.StatusOK, rr.Code, rr.Body.String())
		}
		if users.lastSubject != "sub-9" {
			t.Errorf("expected subject sub-9, got %q", users.lastSubject)
		}
		if sm.GetInt64(context.Background(), session.UserIDKey) != 9 {
			t.Error("expected user 9 to be logged in")
		}
	})

	t.Run("state mismatch", func(t *testing.T) {
		sm := newRecordingSession()
		sm.values[session.OIDCStateKey] = "expected"
		router := newAuthTestRouter(&mockUserService{}, sm, &fakeOIDC{err: errors.New("unused")})

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/auth/oidc/callback?code=abc&state=other", nil))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("want status %d; got %d", http.StatusBadRequest, rr.Code)
		}
	})
}
