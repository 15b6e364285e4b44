package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, repo *Repo, ts TokenService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()

	protected := r.Group("/", AuthMiddleware(ts, repo))
	protected.GET("/me", func(c *gin.Context) {
		claims := MustGetClaims(c)
		c.JSON(http.StatusOK, gin.H{"user_id": claims.UserID})
	})

	admin := r.Group("/admin", AuthMiddleware(ts, repo), RequireAdmin())
	admin.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func doGet(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	repo := newTestRepo(t)
	ts := testTokenService()
	require.NoError(t, repo.CreateUser(context.Background(), User{ID: "u1", Name: "Ana", Email: "a@x.com", PasswordHash: "h"}))

	u, err := repo.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	token, _, err := ts.Sign(u)
	require.NoError(t, err)

	r := newTestRouter(t, repo, ts)
	w := doGet(r, "/me", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"u1"`)
}

func TestAuthMiddlewareRejectsMissingOrBadToken(t *testing.T) {
	repo := newTestRepo(t)
	r := newTestRouter(t, repo, testTokenService())

	w := doGet(r, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doGet(r, "/me", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareRejectsRevokedToken(t *testing.T) {
	repo := newTestRepo(t)
	ts := testTokenService()
	ctx := context.Background()
	require.NoError(t, repo.CreateUser(ctx, User{ID: "u1", Name: "Ana", Email: "a@x.com", PasswordHash: "h"}))

	u, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	token, _, err := ts.Sign(u)
	require.NoError(t, err)

	// logout bumps the version, stranding every token signed before it
	require.NoError(t, repo.BumpTokenVersion(ctx, "u1"))

	r := newTestRouter(t, repo, ts)
	w := doGet(r, "/me", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	repo := newTestRepo(t)
	ts := testTokenService()
	ctx := context.Background()
	require.NoError(t, repo.CreateUser(ctx, User{ID: "u1", Name: "Ana", Email: "a@x.com", PasswordHash: "h"}))
	require.NoError(t, repo.CreateUser(ctx, User{ID: "u2", Name: "Root", Email: "r@x.com", PasswordHash: "h", Role: RoleAdmin}))

	r := newTestRouter(t, repo, ts)

	user, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	userToken, _, err := ts.Sign(user)
	require.NoError(t, err)

	admin, err := repo.GetByID(ctx, "u2")
	require.NoError(t, err)
	adminToken, _, err := ts.Sign(admin)
	require.NoError(t, err)

	w := doGet(r, "/admin/ping", userToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doGet(r, "/admin/ping", adminToken)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
