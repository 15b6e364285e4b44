package reviews

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"bibliohub/internal/auth"
	"bibliohub/internal/notify"
)

const (
	minCommentLen = 10
	maxCommentLen = 1000
)

type Handler struct {
	Repo       *Repo
	Dispatcher *notify.Dispatcher
}

func NewHandler(repo *Repo, dispatcher *notify.Dispatcher) *Handler {
	return &Handler{Repo: repo, Dispatcher: dispatcher}
}

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/books/:id/reviews", h.listByBook)
}

func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	rg.POST("/reviews", h.create)
	rg.DELETE("/reviews/:id", h.delete)
}

type createReq struct {
	BookID  string `json:"book_id"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *Handler) create(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	bookID := strings.TrimSpace(req.BookID)
	if bookID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "book_id required"})
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rating must be between 1 and 5"})
		return
	}
	comment := strings.TrimSpace(req.Comment)
	// count runes, not bytes, so accented comments are measured fairly
	if n := utf8.RuneCountInString(comment); n < minCommentLen || n > maxCommentLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "comment must be 10-1000 chars"})
		return
	}

	review, err := h.Repo.Create(c.Request.Context(), claims.UserID, bookID, req.Rating, comment)
	if err != nil {
		switch {
		case errors.Is(err, ErrBookNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
		case errors.Is(err, ErrDuplicate):
			c.JSON(http.StatusConflict, gin.H{"error": "you already reviewed this book"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		}
		return
	}

	if h.Dispatcher != nil {
		h.Dispatcher.PushAdmin(map[string]any{
			"type":      "review_created",
			"review_id": review.ID,
			"book_id":   review.BookID,
			"rating":    review.Rating,
		})
	}

	c.JSON(http.StatusCreated, review)
}

func (h *Handler) listByBook(c *gin.Context) {
	bookID := strings.TrimSpace(c.Param("id"))
	if bookID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "book id required"})
		return
	}

	limit := parseInt(c.Query("limit"), 20)
	offset := parseInt(c.Query("offset"), 0)

	items, err := h.Repo.ListByBook(c.Request.Context(), bookID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"limit":  limit,
		"offset": offset,
		"items":  items,
	})
}

func (h *Handler) delete(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id required"})
		return
	}

	ok, err := h.Repo.Delete(c.Request.Context(), id, claims.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
