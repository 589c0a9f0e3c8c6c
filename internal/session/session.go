package session

import (
	"context"
	"net/http"
)

// Keys stored in the browser session.
const (
	UserIDKey    = "user_id"
	OIDCStateKey = "oidc_state"
)

// Manager is an interface that abstracts the session management implementation.
// *scs.SessionManager satisfies it.
type Manager interface {
	LoadAndSave(next http.Handler) http.Handler
	Put(ctx context.Context, key string, val interface{})
	GetInt64(ctx context.Context, key string) int64
	GetString(ctx context.Context, key string) string
	PopString(ctx context.Context, key string) string
	RenewToken(ctx context.Context) error
	Destroy(ctx context.Context) error
	Remove(ctx context.Context, key string)
}
