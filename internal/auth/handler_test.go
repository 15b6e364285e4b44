package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProfileRouter(t *testing.T, repo *Repo, ts TokenService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()

	h := NewHandler(repo, ts)
	protected := r.Group("/", AuthMiddleware(ts, repo))
	h.RegisterProtectedRoutes(protected)
	return r
}

func doJSON(r *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func signFor(t *testing.T, repo *Repo, ts TokenService, id string) string {
	t.Helper()
	u, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	token, _, err := ts.Sign(u)
	require.NoError(t, err)
	return token
}

func TestUpdateProfileChangesNameAndEmail(t *testing.T) {
	repo := newTestRepo(t)
	ts := testTokenService()
	ctx := context.Background()
	require.NoError(t, repo.CreateUser(ctx, User{ID: "u1", Name: "Ana", Email: "a@x.com", PasswordHash: "h"}))

	r := newProfileRouter(t, repo, ts)
	token := signFor(t, repo, ts, "u1")

	w := doJSON(r, http.MethodPut, "/users/me", token, `{"name":"Ana Maria","email":"Ana.Maria@X.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Ana Maria"`)
	assert.Contains(t, w.Body.String(), `"email":"ana.maria@x.com"`)

	u, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", u.Name)
	assert.Equal(t, "ana.maria@x.com", u.Email)

	// a token signed before the edit still works and GET reflects the edit
	w = doJSON(r, http.MethodGet, "/users/me", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Ana Maria"`)
}

func TestUpdateProfileRejectsTakenEmail(t *testing.T) {
	repo := newTestRepo(t)
	ts := testTokenService()
	ctx := context.Background()
	require.NoError(t, repo.CreateUser(ctx, User{ID: "u1", Name: "Ana", Email: "a@x.com", PasswordHash: "h"}))
	require.NoError(t, repo.CreateUser(ctx, User{ID: "u2", Name: "Luis", Email: "l@x.com", PasswordHash: "h"}))

	r := newProfileRouter(t, repo, ts)
	token := signFor(t, repo, ts, "u1")

	w := doJSON(r, http.MethodPut, "/users/me", token, `{"name":"Ana","email":"l@x.com"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	// keeping one's own email is not a conflict
	w = doJSON(r, http.MethodPut, "/users/me", token, `{"name":"Ana Sofia","email":"a@x.com"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateProfileValidatesInput(t *testing.T) {
	repo := newTestRepo(t)
	ts := testTokenService()
	require.NoError(t, repo.CreateUser(context.Background(), User{ID: "u1", Name: "Ana", Email: "a@x.com", PasswordHash: "h"}))

	r := newProfileRouter(t, repo, ts)
	token := signFor(t, repo, ts, "u1")

	w := doJSON(r, http.MethodPut, "/users/me", token, `{"name":"ab","email":"a@x.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPut, "/users/me", token, `{"name":"Ana","email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPut, "/users/me", "", `{"name":"Ana","email":"a@x.com"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// nothing stuck from the failed attempts
	u, err := repo.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", u.Name)
	assert.Equal(t, "a@x.com", u.Email)
}
