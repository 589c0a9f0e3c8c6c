package middleware

import (
	"context"

	"go-cms-app/internal/auth"
)

// contextKey defines a custom type for context keys to avoid collisions.
type contextKey string

const userContextKey = contextKey("user")

// UserInfo identifies the caller of a request. UserID is zero for anonymous callers.
type UserInfo struct {
	UserID int64
	Role   string
}

// Authenticated reports whether the caller is logged in.
func (u *UserInfo) Authenticated() bool {
	return u.UserID != 0
}

var anonymous = &UserInfo{Role: auth.RoleAnonymous}

// GetUserInfo retrieves the user information from the request context.
func GetUserInfo(ctx context.Context) *UserInfo {
	if userInfo, ok := ctx.Value(userContextKey).(*UserInfo); ok {
		return userInfo
	}
	return anonymous
}

// SetUserInfo adds the user information to the request context.
func SetUserInfo(ctx context.Context, userInfo *UserInfo) context.Context {
	return context.WithValue(ctx, userContextKey, userInfo)
}
