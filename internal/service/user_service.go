package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-cms-app/internal/data"
	"go-cms-app/internal/logger"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown user or a wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// UserRepository defines the database operations on users.
type UserRepository interface {
	Create(ctx context.Context, user *data.User) error
	GetByID(ctx context.Context, id int64) (*data.User, error)
	GetByUsername(ctx context.Context, username string) (*data.User, error)
	GetByOIDCSubject(ctx context.Context, subject string) (*data.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username string, email *string) (bool, error)
}

// UserCache is the slice of the cache the user service relies on.
type UserCache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// UserServicer defines the interface for account operations.
type UserServicer interface {
	Register(ctx context.Context, username string, email *string, password string) (*data.User, error)
	Authenticate(ctx context.Context, username, password string) (*data.User, error)
	GetUser(ctx context.Context, id int64) (*data.User, error)
	FindOrCreateOIDCUser(ctx context.Context, subject, preferredUsername string, email *string) (*data.User, error)
}

// UserService registers and authenticates page owners.
type UserService struct {
	repo  UserRepository
	cache UserCache
	log   logger.Logger
	now   func() time.Time
}

var _ UserServicer = (*UserService)(nil)

// NewUserService creates a UserService. cache may be nil.
func NewUserService(repo UserRepository, cache UserCache, log logger.Logger) *UserService {
	return &UserService{
		repo:  repo,
		cache: cache,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a local account with a bcrypt-hashed password.
func (s *UserService) Register(ctx context.Context, username string, email *string, password string) (*data.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, validationErr("username", "must not be empty")
	}
	if len(password) < 8 {
		return nil, validationErr("password", "must be at least 8 characters")
	}
	// bcrypt ignores everything past 72 bytes.
	if len(password) > 72 {
		return nil, validationErr("password", "must be at most 72 bytes")
	}
	if email != nil && strings.TrimSpace(*email) == "" {
		email = nil
	}

	exists, err := s.repo.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &ConflictError{Message: "username or email is already registered"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &data.User{
		Username:  username,
		Email:     email,
		Password:  string(hash),
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks a username and password pair.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*data.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, data.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	// OIDC-only accounts have no password.
	if user.Password == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetUser returns a user by id, served from the cache when possible.
func (s *UserService) GetUser(ctx context.Context, id int64) (*data.User, error) {
	key := fmt.Sprintf("user:%d", id)
	if s.cache != nil {
		var cached data.User
		found, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.log.Warn("user cache read failed: " + err.Error())
		}
		if found {
			return &cached, nil
		}
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, user, 0); err != nil {
			s.log.Warn("user cache write failed: " + err.Error())
		}
	}
	return user, nil
}

// FindOrCreateOIDCUser maps an OIDC subject to a local account, creating one
// on first login. preferredUsername is used when it is still free.
func (s *UserService) FindOrCreateOIDCUser(ctx context.Context, subject, preferredUsername string, email *string) (*data.User, error) {
	if subject == "" {
		return nil, validationErr("sub", "must not be empty")
	}
	user, err := s.repo.GetByOIDCSubject(ctx, subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, data.ErrNotFound) {
		return nil, err
	}

	if email != nil {
		// e-mail is unique; an address already bound to a local account is dropped.
		taken, err := s.repo.ExistsByUsernameOrEmail(ctx, "", email)
		if err != nil {
			return nil, err
		}
		if taken {
			email = nil
		}
	}

	username := strings.TrimSpace(preferredUsername)
	if username != "" {
		taken, err := s.repo.ExistsByUsernameOrEmail(ctx, username, nil)
		if err != nil {
			return nil, err
		}
		if taken {
			username = ""
		}
	}
	if username == "" {
		username = "oidc-" + subject
	}

	user = &data.User{
		Username:    username,
		Email:       email,
		OIDCSubject: &subject,
		CreatedAt:   s.now(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info("created account for OIDC subject " + subject)
	return user, nil
}
