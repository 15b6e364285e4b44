package loans

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bibliohub/internal/auth"
)

type Handler struct {
	Service *Service
	Repo    *Repo
}

func NewHandler(service *Service, repo *Repo) *Handler {
	return &Handler{Service: service, Repo: repo}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/loans", h.create)
	rg.POST("/loans/:id/return", h.returnLoan)
	rg.POST("/loans/:id/extend", h.extend)
	rg.GET("/loans/history", h.history)
}

func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/loans", h.listAll)
	rg.GET("/loans/active", h.listActive)
	rg.GET("/loans/overdue", h.listOverdue)
}

type createReq struct {
	BookID  string `json:"book_id"`
	DueDate string `json:"due_date"`
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

	dueAt, err := parseDate(req.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "due_date must be YYYY-MM-DD or RFC3339"})
		return
	}
	if !dueAt.After(time.Now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "due_date must be in the future"})
		return
	}

	loan, err := h.Service.CreateLoan(c.Request.Context(), claims.UserID, bookID, dueAt)
	if err != nil {
		switch {
		case errors.Is(err, ErrBookNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
		case errors.Is(err, ErrUnavailable):
			c.JSON(http.StatusConflict, gin.H{"error": "book not available"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create loan failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, loan)
}

func (h *Handler) returnLoan(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	loanID := strings.TrimSpace(c.Param("id"))
	if loanID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "loan id required"})
		return
	}

	if err := h.Service.ReturnLoan(c.Request.Context(), loanID, claims.UserID); err != nil {
		if errors.Is(err, ErrLoanNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "loan not found or already returned"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "return failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "book returned"})
}

func (h *Handler) extend(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	loanID := strings.TrimSpace(c.Param("id"))
	if loanID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "loan id required"})
		return
	}

	newDue, err := h.Service.ExtendLoan(c.Request.Context(), loanID, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrLoanNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "loan not found or already returned"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "extend failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "due date extended",
		"new_due_date": newDue.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) history(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	items, err := h.Repo.UserHistory(c.Request.Context(), claims.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) listAll(c *gin.Context) {
	items, err := h.Repo.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) listActive(c *gin.Context) {
	items, err := h.Repo.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) listOverdue(c *gin.Context) {
	items, err := h.Repo.ListOverdue(c.Request.Context(), time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
