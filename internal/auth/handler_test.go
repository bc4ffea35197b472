package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tiendita-shop/tiendita/internal/shared"
	"github.com/tiendita-shop/tiendita/internal/view"
)

type memoryRepo struct {
	users    map[string]*User
	sessions map[string]string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: map[string]*User{}, sessions: map[string]string{}}
}

func (m *memoryRepo) CreateUser(_ context.Context, user User) error {
	if _, ok := m.users[user.Email]; ok {
		return ErrEmailTaken
	}
	u := user
	u.IsActive = true
	m.users[user.Email] = &u
	return nil
}

func (m *memoryRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	u, ok := m.users[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copy := *u
	return &copy, nil
}

func (m *memoryRepo) FindByConfirmToken(_ context.Context, token string) (*User, error) {
	for _, u := range m.users {
		if u.ConfirmToken != "" && u.ConfirmToken == token {
			copy := *u
			return &copy, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memoryRepo) MarkConfirmed(_ context.Context, userID string) error {
	for _, u := range m.users {
		if u.ID == userID && u.ConfirmedAt.IsZero() {
			u.ConfirmedAt = time.Now()
			u.ConfirmToken = ""
			return nil
		}
	}
	return ErrTokenInvalid
}

func (m *memoryRepo) CreateSession(_ context.Context, id, userID string, _ time.Time, _, _ string) error {
	m.sessions[id] = userID
	return nil
}

func (m *memoryRepo) DeleteSession(_ context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

func (m *memoryRepo) DeleteExpiredSessions(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(t *testing.T, repo Repository) (*Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessions := shared.NewSessionManager(client, "tiendita_session", "test-secret", time.Hour, false)
	views, err := view.NewEngine()
	require.NoError(t, err)
	svc := NewService(repo, testLogger())
	return NewHandler(testLogger(), svc, sessions, views), sessions
}

func seedUser(t *testing.T, repo *memoryRepo, email, password string, confirmed bool) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := User{ID: "user-" + email, Email: email, PasswordHash: string(hash), ConfirmToken: "tok-" + email}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	if confirmed {
		require.NoError(t, repo.MarkConfirmed(context.Background(), user.ID))
	}
	return repo.users[email]
}

func withSession(r *http.Request, sess *shared.Session) *http.Request {
	return r.WithContext(shared.ContextWithSession(r.Context(), sess))
}

func TestLoginSuccessRedirectsToNext(t *testing.T) {
	repo := newMemoryRepo()
	seedUser(t, repo, "owner@example.com", "password1", true)
	h, sessions := newTestHandler(t, repo)

	form := url.Values{"email": {"Owner@Example.com"}, "password": {"password1"}, "next": {"/t/tacos/admin/products"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	sess, err := sessions.Load(req.Context(), req)
	require.NoError(t, err)
	req = withSession(req, sess)

	rec := httptest.NewRecorder()
	h.login(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/t/tacos/admin/products", rec.Header().Get("Location"))
	assert.Equal(t, "user-owner@example.com", sess.User())
	assert.Contains(t, repo.sessions, sess.ID)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newMemoryRepo()
	seedUser(t, repo, "owner@example.com", "password1", true)
	h, sessions := newTestHandler(t, repo)

	form := url.Values{"email": {"owner@example.com"}, "password": {"wrong-pass1"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	sess, err := sessions.Load(req.Context(), req)
	require.NoError(t, err)
	req = withSession(req, sess)

	rec := httptest.NewRecorder()
	h.login(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid email or password")
	assert.Empty(t, sess.User())
}

func TestLoginUnconfirmedAccount(t *testing.T) {
	repo := newMemoryRepo()
	seedUser(t, repo, "new@example.com", "password1", false)
	h, sessions := newTestHandler(t, repo)

	form := url.Values{"email": {"new@example.com"}, "password": {"password1"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	sess, err := sessions.Load(req.Context(), req)
	require.NoError(t, err)
	req = withSession(req, sess)

	rec := httptest.NewRecorder()
	h.login(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "confirm your email")
	assert.Empty(t, sess.User())
}

func TestCallbackConfirmsAndPrefillsLogin(t *testing.T) {
	repo := newMemoryRepo()
	user := seedUser(t, repo, "new@example.com", "password1", false)
	h, sessions := newTestHandler(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?token="+user.ConfirmToken, nil)
	sess, err := sessions.Load(req.Context(), req)
	require.NoError(t, err)
	req = withSession(req, sess)

	rec := httptest.NewRecorder()
	h.callback(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/auth/login", loc.Path)
	assert.Equal(t, "new@example.com", loc.Query().Get("email"))
	assert.True(t, repo.users["new@example.com"].Confirmed())
}

func TestCallbackSpentTokenRedirectsToLogin(t *testing.T) {
	repo := newMemoryRepo()
	user := seedUser(t, repo, "new@example.com", "password1", false)
	h, sessions := newTestHandler(t, repo)
	token := user.ConfirmToken
	require.NoError(t, repo.MarkConfirmed(context.Background(), user.ID))

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?token="+token, nil)
	sess, err := sessions.Load(req.Context(), req)
	require.NoError(t, err)
	req = withSession(req, sess)

	rec := httptest.NewRecorder()
	h.callback(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/login", rec.Header().Get("Location"))
}

func TestLogoutDestroysSession(t *testing.T) {
	repo := newMemoryRepo()
	seedUser(t, repo, "owner@example.com", "password1", true)
	h, sessions := newTestHandler(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	sess, err := sessions.Load(req.Context(), req)
	require.NoError(t, err)
	sess.SetUser("user-owner@example.com")
	repo.sessions[sess.ID] = "user-owner@example.com"
	req = withSession(req, sess)

	rec := httptest.NewRecorder()
	h.logout(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.NotContains(t, repo.sessions, sess.ID)
}

func TestSafeNext(t *testing.T) {
	cases := map[string]string{
		"":                      "",
		"/t/tacos":              "/t/tacos",
		"/t/tacos/admin":        "/t/tacos/admin",
		"//evil.example":        "",
		"https://evil.example":  "",
		"/ok\\..\\strange":      "",
		"relative/path":         "",
	}
	for input, want := range cases {
		assert.Equal(t, want, SafeNext(input), "input %q", input)
	}
}

func TestSignUpAndDuplicateEmail(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testLogger())

	user, err := svc.SignUp(context.Background(), "a@example.com", "password1")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ConfirmToken)
	assert.False(t, user.Confirmed())

	_, err = svc.SignUp(context.Background(), "a@example.com", "password1")
	assert.ErrorIs(t, err, ErrEmailTaken)
}
