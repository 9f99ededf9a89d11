package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	appErr "nanoj/pkg/errors"
)

func newTestService(t *testing.T, ttl time.Duration) *Service {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	tokens, err := NewTokenIssuer([]byte("test-secret"), "nanoj-test", ttl)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	svc, err := NewService(store, tokens)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, time.Hour)

	user, err := svc.Register(ctx, "alice", "password1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Role != RoleUser {
		t.Errorf("Role = %s, want user", user.Role)
	}
	if user.PasswordHash == "password1" {
		t.Error("password stored in the clear")
	}

	sess, err := svc.Login(ctx, "alice", "password1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	identity, err := svc.Authenticate(ctx, sess.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if identity.Username != "alice" || identity.Role != RoleUser {
		t.Errorf("identity = %+v", identity)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, time.Hour)
	if _, err := svc.Register(ctx, "alice", "password1"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Login(ctx, "alice", "wrongpass1"); appErr.GetCode(err) != appErr.InvalidCredentials {
		t.Errorf("wrong password: got %v, want InvalidCredentials", err)
	}
	// Unknown user and wrong password look identical.
	if _, err := svc.Login(ctx, "nobody", "password1"); appErr.GetCode(err) != appErr.InvalidCredentials {
		t.Errorf("unknown user: got %v, want InvalidCredentials", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, time.Hour)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{name: "short username", username: "ab", password: "password1"},
		{name: "digit-leading username", username: "1alice", password: "password1"},
		{name: "short password", username: "alice", password: "pw1"},
		{name: "no digit in password", username: "alice", password: "passwords"},
		{name: "no letter in password", username: "alice", password: "123456789"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tt.username, tt.password); err == nil {
				t.Errorf("Register(%q, %q) expected validation error", tt.username, tt.password)
			}
		})
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, time.Hour)
	if _, err := svc.Register(ctx, "alice", "password1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "password2"); appErr.GetCode(err) != appErr.RecordAlreadyExists {
		t.Fatalf("expected RecordAlreadyExists, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	tokens, err := NewTokenIssuer([]byte("test-secret"), "nanoj-test", time.Nanosecond)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	svc, err := NewService(store, tokens)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "password1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	sess, err := svc.Login(ctx, "alice", "password1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if _, err := svc.Authenticate(ctx, sess.Token); appErr.GetCode(err) != appErr.SessionExpired {
		t.Fatalf("expected SessionExpired, got %v", err)
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, time.Hour)
	if _, err := svc.Register(ctx, "alice", "password1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	sess, err := svc.Login(ctx, "alice", "password1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	tampered := sess.Token[:len(sess.Token)-2] + "xx"
	if _, err := svc.Authenticate(ctx, tampered); appErr.GetCode(err) != appErr.SessionInvalid {
		t.Fatalf("expected SessionInvalid, got %v", err)
	}
}

func TestEnsureAdminBootstrap(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := store.EnsureAdmin(ctx, "admin", "adminpass1"); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	user, err := store.Get(ctx, "admin")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if user.Role != RoleAdmin {
		t.Errorf("Role = %s, want admin", user.Role)
	}
	hash := user.PasswordHash

	// A second bootstrap with a different password must not rotate
	// the existing credential.
	if err := store.EnsureAdmin(ctx, "admin", "otherpass1"); err != nil {
		t.Fatalf("EnsureAdmin again: %v", err)
	}
	user, err = store.Get(ctx, "admin")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if user.PasswordHash != hash {
		t.Error("existing admin password was rotated")
	}
}

func newAuthRouter(t *testing.T, svc *Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", RequireAuth(svc), func(c *gin.Context) {
		c.String(http.StatusOK, CallerFrom(c).Username)
	})
	r.GET("/admin", RequireAuth(svc), RequireAdmin(), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	svc := newTestService(t, time.Hour)
	r := newAuthRouter(t, svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestMiddlewareSetsIdentity(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, time.Hour)
	r := newAuthRouter(t, svc)

	if _, err := svc.Register(ctx, "alice", "password1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	sess, err := svc.Login(ctx, "alice", "password1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "alice" {
		t.Fatalf("status/body = %d/%q, want 200/alice", w.Code, w.Body.String())
	}
}

func TestMiddlewareAdminGate(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	tokens, err := NewTokenIssuer([]byte("test-secret"), "nanoj-test", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	svc, err := NewService(store, tokens)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	r := newAuthRouter(t, svc)

	if err := store.EnsureAdmin(ctx, "root", "adminpass1"); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "password1"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	adminSess, err := svc.Login(ctx, "root", "adminpass1")
	if err != nil {
		t.Fatalf("Login admin: %v", err)
	}
	userSess, err := svc.Login(ctx, "alice", "password1")
	if err != nil {
		t.Fatalf("Login user: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminSess.Token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("admin status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+userSess.Token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("user status = %d, want 403", w.Code)
	}
}
