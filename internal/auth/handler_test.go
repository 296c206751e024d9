package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/metafirst/supervisor/internal/auth"
	"github.com/metafirst/supervisor/internal/shared"
	_ "github.com/metafirst/supervisor/testing"
)

type stubRepo struct {
	user *auth.User
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func activeUser(t *testing.T) *auth.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return &auth.User{ID: 42, Email: "pi@example.org", DisplayName: "PI", PasswordHash: string(hash), IsActive: true}
}

func newRouter(t *testing.T, repo auth.Repository) (chi.Router, *shared.SessionStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionStore(client, "test_session", time.Hour)
	handler := auth.NewHandler(discardLogger(), auth.NewService(repo), sessions)

	r := chi.NewRouter()
	r.Use(auth.TokenLoader(sessions, nil))
	r.Route("/auth", handler.MountRoutes)
	return r, sessions
}

func login(t *testing.T, router chi.Router, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"email":"` + email + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestLoginIssuesToken(t *testing.T) {
	router, sessions := newRouter(t, &stubRepo{user: activeUser(t)})

	res := login(t, router, "pi@example.org", "correct horse")
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", res.Code, res.Body.String())
	}

	var parsed struct {
		Token string `json:"token"`
		User  struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if parsed.Token == "" {
		t.Fatalf("expected token in response")
	}
	if parsed.User.ID != 42 || parsed.User.Email != "pi@example.org" {
		t.Fatalf("unexpected user payload: %+v", parsed.User)
	}

	userID, err := sessions.Lookup(context.Background(), parsed.Token)
	if err != nil {
		t.Fatalf("lookup issued token: %v", err)
	}
	if userID != 42 {
		t.Fatalf("expected user 42, got %d", userID)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	router, _ := newRouter(t, &stubRepo{user: activeUser(t)})

	res := login(t, router, "pi@example.org", "wrong password")
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", res.Code)
	}
}

func TestLoginInactiveUser(t *testing.T) {
	user := activeUser(t)
	user.IsActive = false
	router, _ := newRouter(t, &stubRepo{user: user})

	res := login(t, router, "pi@example.org", "correct horse")
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", res.Code)
	}
}

func TestLoginValidation(t *testing.T) {
	router, _ := newRouter(t, &stubRepo{user: activeUser(t)})

	res := login(t, router, "not-an-email", "correct horse")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", res.Code)
	}
}

func TestMeRequiresToken(t *testing.T) {
	router, _ := newRouter(t, &stubRepo{user: activeUser(t)})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", res.Code)
	}
}

func TestMeWithValidToken(t *testing.T) {
	router, sessions := newRouter(t, &stubRepo{user: activeUser(t)})
	token, err := sessions.Create(context.Background(), 42)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", res.Code, res.Body.String())
	}
	if !strings.Contains(res.Body.String(), "pi@example.org") {
		t.Fatalf("expected user email in body: %s", res.Body.String())
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	router, sessions := newRouter(t, &stubRepo{user: activeUser(t)})
	token, err := sessions.Create(context.Background(), 42)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", res.Code)
	}

	if _, err := sessions.Lookup(context.Background(), token); err == nil {
		t.Fatalf("expected token revoked")
	}
}
