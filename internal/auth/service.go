package auth

import (
	"context"
	"regexp"
	"time"

	"golang.org/x/crypto/bcrypt"

	appErr "nanoj/pkg/errors"
)

// Username: 3-32 chars, start with a letter, allow letters, numbers,
// dot, underscore, hyphen.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.-]{2,31}$`)

// Password: 8-128 chars, printable ASCII only.
var passwordPattern = regexp.MustCompile(`^[\x21-\x7E]{8,128}$`)

func validateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return appErr.ValidationError("username", "3-32 chars, must start with a letter")
	}
	return nil
}

func validatePassword(password string) error {
	if !passwordPattern.MatchString(password) {
		return appErr.ValidationError("password", "8-128 printable ASCII chars")
	}
	if !hasLetterAndNumber(password) {
		return appErr.ValidationError("password", "must contain a letter and a number")
	}
	return nil
}

func hasLetterAndNumber(password string) bool {
	hasLetter, hasNumber := false, false
	for i := 0; i < len(password); i++ {
		b := password[i]
		switch {
		case (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z'):
			hasLetter = true
		case b >= '0' && b <= '9':
			hasNumber = true
		}
		if hasLetter && hasNumber {
			return true
		}
	}
	return false
}

// Identity is the verified caller of an authenticated request.
type Identity struct {
	Username string
	Role     Role
}

// IsAdmin reports whether the identity may use admin endpoints.
func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      Identity
}

// Service handles registration, login, and token verification.
type Service struct {
	users  *FileStore
	tokens *TokenIssuer
}

// NewService wires the auth service.
func NewService(users *FileStore, tokens *TokenIssuer) (*Service, error) {
	if users == nil || tokens == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("user store and token issuer are required")
	}
	return &Service{users: users, tokens: tokens}, nil
}

// Register creates a regular user account.
func (s *Service) Register(ctx context.Context, username, password string) (*User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "hash password failed")
	}
	user := &User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         RoleUser,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and issues a session token. Unknown users
// and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	user, err := s.users.Get(ctx, username)
	if err != nil {
		if appErr.GetCode(err) == appErr.UserNotFound {
			return Session{}, appErr.New(appErr.InvalidCredentials)
		}
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, appErr.New(appErr.InvalidCredentials)
	}

	token, expires, err := s.tokens.Issue(user)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		ExpiresAt: expires,
		User:      Identity{Username: user.Username, Role: user.Role},
	}, nil
}

// Authenticate verifies a session token and returns the caller identity.
func (s *Service) Authenticate(ctx context.Context, token string) (Identity, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Username: claims.Subject, Role: claims.Role}, nil
}
