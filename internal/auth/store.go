// Package auth implements users, password verification, and the JWT
// session tokens that gate the admin-only endpoints.
package auth

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	appErr "nanoj/pkg/errors"
	"nanoj/pkg/utils/logger"
)

// Role is the user's permission tier.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

const usersFile = "users.json"

// User is one stored account. The password is kept only as a bcrypt hash.
type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// FileStore keeps users in one JSON document, rewritten atomically.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore opens (creating if needed) a user store under dir.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, appErr.ValidationError("data_dir", "required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, appErr.Wrapf(err, appErr.StoreError, "create user store dir failed")
	}
	return &FileStore{path: filepath.Join(dir, usersFile)}, nil
}

func (s *FileStore) read() (map[string]*User, error) {
	users := map[string]*User{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return users, nil
		}
		return nil, appErr.Wrapf(err, appErr.StoreError, "read users failed")
	}
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidFormat, "decode users failed")
	}
	return users, nil
}

func (s *FileStore) write(users map[string]*User) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return appErr.Wrapf(err, appErr.StoreError, "encode users failed")
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), usersFile+".tmp-")
	if err != nil {
		return appErr.Wrapf(err, appErr.StoreError, "create temp file failed")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return appErr.Wrapf(err, appErr.StoreError, "write users failed")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return appErr.Wrapf(err, appErr.StoreError, "close users failed")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return appErr.Wrapf(err, appErr.StoreError, "replace users failed")
	}
	return nil
}

// Create inserts a new user. An existing username yields
// RecordAlreadyExists.
func (s *FileStore) Create(ctx context.Context, user *User) error {
	if user == nil || user.Username == "" {
		return appErr.ValidationError("username", "required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.read()
	if err != nil {
		return err
	}
	if _, exists := users[user.Username]; exists {
		return appErr.Newf(appErr.RecordAlreadyExists, "user %s already exists", user.Username)
	}
	users[user.Username] = user
	return s.write(users)
}

// Get fetches one user or UserNotFound.
func (s *FileStore) Get(ctx context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.read()
	if err != nil {
		return nil, err
	}
	user, ok := users[username]
	if !ok {
		return nil, appErr.Newf(appErr.UserNotFound, "user %s not found", username)
	}
	return user, nil
}

// EnsureAdmin creates the bootstrap admin account on first start. An
// existing account is left untouched, so a changed config password does
// not silently rotate credentials.
func (s *FileStore) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return appErr.ValidationError("admin_credentials", "required")
	}
	if _, err := s.Get(ctx, username); err == nil {
		return nil
	} else if appErr.GetCode(err) != appErr.UserNotFound {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "hash admin password failed")
	}
	user := &User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.Create(ctx, user); err != nil {
		// Lost the race against a concurrent bootstrap.
		if appErr.GetCode(err) == appErr.RecordAlreadyExists {
			return nil
		}
		return err
	}
	logger.Info(ctx, "bootstrap admin created", zap.String("username", username))
	return nil
}
