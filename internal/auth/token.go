package auth

import (
	stderrors "errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appErr "nanoj/pkg/errors"
)

const defaultSessionTTL = 24 * time.Hour

// Claims carries the session identity inside the JWT.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies session tokens with a shared HMAC
// secret.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenIssuer creates a token issuer. An empty TTL defaults to one
// day.
func NewTokenIssuer(secret []byte, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, appErr.ValidationError("jwt_secret", "required")
	}
	if issuer == "" {
		issuer = "nanoj"
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &TokenIssuer{secret: secret, issuer: issuer, ttl: ttl}, nil
}

// Issue signs a session token for the user.
func (t *TokenIssuer) Issue(user *User) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(t.ttl)
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, appErr.Wrapf(err, appErr.InternalServerError, "sign session token failed")
	}
	return signed, expires, nil
}

// Parse verifies a session token and returns its claims.
func (t *TokenIssuer) Parse(token string) (*Claims, error) {
	if token == "" {
		return nil, appErr.New(appErr.Unauthorized)
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (interface{}, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, appErr.New(appErr.SessionExpired)
		}
		return nil, appErr.Wrapf(err, appErr.SessionInvalid, "parse session token failed")
	}
	return &claims, nil
}
