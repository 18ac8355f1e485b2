package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/akovalyov/cliphub/internal/common"
	"github.com/akovalyov/cliphub/internal/dbx"
	"github.com/akovalyov/cliphub/internal/logging"
	"github.com/akovalyov/cliphub/internal/server/auth"
	"github.com/akovalyov/cliphub/internal/server/config"
	"github.com/akovalyov/cliphub/internal/server/models"
	sessionsrepo "github.com/akovalyov/cliphub/internal/server/repositories/sessions"
	usersrepo "github.com/akovalyov/cliphub/internal/server/repositories/users"
	"github.com/akovalyov/cliphub/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// In-memory repositories backing a real UserService, so requests exercise
// the genuine lifecycle logic end to end.

type memUsersRepo struct {
	mu    sync.Mutex
	seq   int
	users map[string]*models.User
}

func newMemUsersRepo() *memUsersRepo {
	return &memUsersRepo{users: make(map[string]*models.User)}
}

func (r *memUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return nil, common.ErrAlreadyExists
		}
	}
	r.seq++
	u.ID = "u" + strconv.Itoa(r.seq)
	u.CreatedAt = time.Now()
	r.users[u.ID] = u
	return u, nil
}

func (r *memUsersRepo) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == identifier || u.Email == identifier {
			return u, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, common.ErrNotFound
}

func (r *memUsersRepo) UpdatePasswordHash(ctx context.Context, id string, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r *memUsersRepo) UpdateDetails(ctx context.Context, id string, fullName, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.FullName, u.Email = fullName, email
	return nil
}

func (r *memUsersRepo) UpdateAvatarKey(ctx context.Context, id string, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.AvatarKey = key
	return nil
}

func (r *memUsersRepo) UpdateCoverKey(ctx context.Context, id string, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.CoverKey = key
	return nil
}

type memSessionsRepo struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newMemSessionsRepo() *memSessionsRepo {
	return &memSessionsRepo{tokens: make(map[string]string)}
}

func (r *memSessionsRepo) Set(ctx context.Context, userID string, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[userID] = token
	return nil
}

func (r *memSessionsRepo) Replace(ctx context.Context, userID string, old, new string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old == "" || r.tokens[userID] != old {
		return false, nil
	}
	r.tokens[userID] = new
	return true, nil
}

func (r *memSessionsRepo) Get(ctx context.Context, userID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokens[userID], nil
}

func (r *memSessionsRepo) Clear(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[userID] = ""
	return nil
}

type memRepoManager struct {
	u *memUsersRepo
	s *memSessionsRepo
}

func (m *memRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *memRepoManager) Users(db dbx.DBTX) usersrepo.Repository { return m.u }

func (m *memRepoManager) Sessions(db dbx.DBTX) sessionsrepo.Repository { return m.s }

type fakeMedia struct {
	rm *memRepoManager
}

func (f *fakeMedia) GetUploadURL(ctx context.Context) (string, string, error) {
	return "users/2026/8/30/key", "https://s3/put/users/2026/8/30/key", nil
}

func (f *fakeMedia) GetDownloadURL(ctx context.Context, key string) (string, error) {
	return "https://s3/get/" + key, nil
}

func (f *fakeMedia) SetImage(ctx context.Context, userID string, kind services.ImageKind, key string) error {
	if key == "" {
		return &common.ValidationError{Missing: []string{"key"}}
	}
	switch kind {
	case services.ImageAvatar:
		return f.rm.u.UpdateAvatarKey(ctx, userID, key)
	case services.ImageCover:
		return f.rm.u.UpdateCoverKey(ctx, userID, key)
	}
	return &common.ValidationError{Missing: []string{"kind"}}
}

type testEnv struct {
	router *gin.Engine
	rm     *memRepoManager
	mock   sqlmock.Sqlmock
	issuer *auth.Issuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.CookieSecure = false

	issuer := auth.NewIssuer(
		[]byte(cfg.AccessTokenSecret), []byte(cfg.RefreshTokenSecret),
		cfg.AccessTokenValidityDuration, cfg.RefreshTokenValidityDuration,
	)
	logger := logging.NewSlogLogger(slog.New(slog.DiscardHandler))

	rm := &memRepoManager{u: newMemUsersRepo(), s: newMemSessionsRepo()}
	users := services.NewUserService(db, rm, issuer, logger)
	media := &fakeMedia{rm: rm}

	handler := NewHandler(users, media, cfg, logger)

	router := gin.New()
	RegisterRoutes(router.Group("/api/v1"), handler, issuer)

	return &testEnv{router: router, rm: rm, mock: mock, issuer: issuer}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, fn := range mutate {
		fn(req)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) register(t *testing.T) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/users/register", gin.H{
		"username": "ana", "email": "ana@x.io", "fullName": "Ana", "password": "s3cret!",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func (e *testEnv) login(t *testing.T) (accessToken, refreshToken string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/users/login", gin.H{
		"identifier": "ana", "password": "s3cret!",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.AccessToken, resp.RefreshToken
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(name, value string) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: name, Value: value}) }
}

// --- tests ---

func TestRegister_CreatedAndConflict(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/v1/users/register", gin.H{
		"username": "ana", "email": "ana@x.io", "fullName": "Ana", "password": "s3cret!",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "password")
	assert.NotContains(t, w.Body.String(), "Hash")

	// Same identity again.
	w = e.do(t, http.MethodPost, "/api/v1/users/register", gin.H{
		"username": "ana", "email": "other@x.io", "fullName": "Ana", "password": "pw",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegister_ValidationAggregates(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/v1/users/register", gin.H{
		"username": "", "email": "", "fullName": "Ana", "password": "pw",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "username")
	assert.Contains(t, w.Body.String(), "email")
}

func TestLogin_SetsCookiesAndHidesCredential(t *testing.T) {
	e := newTestEnv(t)
	e.register(t)

	w := e.do(t, http.MethodPost, "/api/v1/users/login", gin.H{
		"identifier": "ana", "password": "s3cret!",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := w.Body.String()
	assert.Contains(t, body, `"accessToken"`)
	assert.Contains(t, body, `"refreshToken"`)
	assert.NotContains(t, body, "passwordHash")

	cookies := w.Result().Cookies()
	var names []string
	for _, c := range cookies {
		names = append(names, c.Name)
		assert.True(t, c.HttpOnly, "cookie %s must be httpOnly", c.Name)
	}
	assert.Contains(t, names, "accessToken")
	assert.Contains(t, names, "refreshToken")
}

func TestLogin_OpaqueFailureForUnknownAndWrong(t *testing.T) {
	e := newTestEnv(t)
	e.register(t)

	wWrong := e.do(t, http.MethodPost, "/api/v1/users/login", gin.H{
		"identifier": "ana", "password": "wrong",
	})
	wUnknown := e.do(t, http.MethodPost, "/api/v1/users/login", gin.H{
		"identifier": "nobody", "password": "s3cret!",
	})

	assert.Equal(t, http.StatusUnauthorized, wWrong.Code)
	assert.Equal(t, http.StatusUnauthorized, wUnknown.Code)
	// Identical responses: no account-existence oracle.
	assert.Equal(t, wWrong.Body.String(), wUnknown.Body.String())
}

func TestRefresh_FromCookie_RotatesToken(t *testing.T) {
	e := newTestEnv(t)
	e.register(t)
	_, r1 := e.login(t)

	w := e.do(t, http.MethodPost, "/api/v1/users/refresh", nil, withCookie("refreshToken", r1))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEqual(t, r1, resp.RefreshToken)

	// The old token is now superseded.
	w = e.do(t, http.MethodPost, "/api/v1/users/refresh", nil, withCookie("refreshToken", r1))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// The rotated token still works, via body fallback this time.
	w = e.do(t, http.MethodPost, "/api/v1/users/refresh", gin.H{"refreshToken": resp.RefreshToken})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRefresh_MissingToken(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/v1/users/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogout_ClearsSessionAndCookies(t *testing.T) {
	e := newTestEnv(t)
	e.register(t)
	access, refresh := e.login(t)

	w := e.do(t, http.MethodPost, "/api/v1/users/logout", nil, bearer(access))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, c := range w.Result().Cookies() {
		assert.Less(t, c.MaxAge, 0, "cookie %s must be expired", c.Name)
	}

	// Prior refresh token is dead.
	w = e.do(t, http.MethodPost, "/api/v1/users/refresh", nil, withCookie("refreshToken", refresh))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/api/v1/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/users/me", nil, bearer("garbage"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCurrentUser_ViaBearerAndCookie(t *testing.T) {
	e := newTestEnv(t)
	e.register(t)
	access, _ := e.login(t)

	w := e.do(t, http.MethodGet, "/api/v1/users/me", nil, bearer(access))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"ana"`)

	// Cookie fallback for browser clients.
	w = e.do(t, http.MethodGet, "/api/v1/users/me", nil, withCookie("accessToken", access))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestChangePassword_FullFlow(t *testing.T) {
	e := newTestEnv(t)
	e.register(t)
	access, refresh := e.login(t)

	// ChangePassword runs in a transaction on the sqlmock handle.
	e.mock.ExpectBegin()
	e.mock.ExpectCommit()

	w := e.do(t, http.MethodPost, "/api/v1/users/change-password", gin.H{
		"oldPassword": "s3cret!", "newPassword": "n3w-pass",
	}, bearer(access))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Session was terminated with the password change.
	w = e.do(t, http.MethodPost, "/api/v1/users/refresh", nil, withCookie("refreshToken", refresh))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Old password no longer logs in, the new one does.
	w = e.do(t, http.MethodPost, "/api/v1/users/login", gin.H{"identifier": "ana", "password": "s3cret!"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = e.do(t, http.MethodPost, "/api/v1/users/login", gin.H{"identifier": "ana", "password": "n3w-pass"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NoError(t, e.mock.ExpectationsWereMet())
}

func TestChangePassword_WrongOldPassword(t *testing.T) {
	e := newTestEnv(t)
	e.register(t)
	access, _ := e.login(t)

	w := e.do(t, http.MethodPost, "/api/v1/users/change-password", gin.H{
		"oldPassword": "wrong", "newPassword": "n3w-pass",
	}, bearer(access))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateDetails(t *testing.T) {
	e := newTestEnv(t)
	e.register(t)
	access, _ := e.login(t)

	w := e.do(t, http.MethodPatch, "/api/v1/users/me", gin.H{
		"fullName": "Ana Banana", "email": "ana2@x.io",
	}, bearer(access))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Ana Banana")
}

func TestMediaFlow_UploadURLThenSetAvatar(t *testing.T) {
	e := newTestEnv(t)
	e.register(t)
	access, _ := e.login(t)

	w := e.do(t, http.MethodPost, "/api/v1/users/media/upload-url", nil, bearer(access))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Key       string `json:"key"`
		UploadURL string `json:"uploadUrl"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Key)
	require.True(t, strings.HasPrefix(resp.UploadURL, "https://"))

	w = e.do(t, http.MethodPatch, "/api/v1/users/avatar", gin.H{"key": resp.Key}, bearer(access))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"avatarUrl":"https://s3/get/`+resp.Key+`"`)
}
