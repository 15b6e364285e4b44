package reviews

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bibliohub/internal/auth"
)

func newTestRouter(t *testing.T, repo *Repo, userID string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()

	h := NewHandler(repo, nil)
	protected := r.Group("/", func(c *gin.Context) {
		c.Set(auth.CtxClaimsKey, &auth.Claims{UserID: userID})
		c.Next()
	})
	h.RegisterProtectedRoutes(protected)
	return r
}

func postReview(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/reviews", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateCommentLengthCountsRunes(t *testing.T) {
	repo, _, db := newTestRepo(t)
	seedUser(t, db, "u1", "Ana")
	seedBook(t, db, "b1", "Ficciones")
	r := newTestRouter(t, repo, "u1")

	// eight accented runes occupy sixteen bytes; still too short
	w := postReview(r, `{"book_id":"b1","rating":4,"comment":"ññññññññ"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// ten runes is the minimum, multibyte or not
	w = postReview(r, `{"book_id":"b1","rating":4,"comment":"ñañañañaña"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateCommentUpperBoundCountsRunes(t *testing.T) {
	repo, _, db := newTestRepo(t)
	seedUser(t, db, "u1", "Ana")
	seedUser(t, db, "u2", "Luis")
	seedBook(t, db, "b1", "Rayuela")
	r := newTestRouter(t, repo, "u1")

	// a thousand two-byte runes is exactly the cap
	w := postReview(r, `{"book_id":"b1","rating":5,"comment":"`+strings.Repeat("é", 1000)+`"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	r2 := newTestRouter(t, repo, "u2")
	w = postReview(r2, `{"book_id":"b1","rating":5,"comment":"`+strings.Repeat("é", 1001)+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateMapsRepoErrors(t *testing.T) {
	repo, _, db := newTestRepo(t)
	seedUser(t, db, "u1", "Ana")
	seedBook(t, db, "b1", "Aura")
	r := newTestRouter(t, repo, "u1")

	w := postReview(r, `{"book_id":"missing","rating":3,"comment":"a review of a ghost"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = postReview(r, `{"book_id":"b1","rating":3,"comment":"short and very sharp"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = postReview(r, `{"book_id":"b1","rating":5,"comment":"changed my mind entirely"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}
