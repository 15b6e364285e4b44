package catalog

import (
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"bibliohub/pkg/assets"
)

type Handler struct {
	Repo   *Repo
	Assets assets.Store
}

func NewHandler(repo *Repo, store assets.Store) *Handler {
	return &Handler{Repo: repo, Assets: store}
}

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/books", h.list)
	rg.GET("/books/search", h.search)
	rg.GET("/books/:id", h.getByID)
	rg.GET("/categories", h.listCategories)
}

func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/books", h.create)
	rg.PUT("/books/:id", h.update)
	rg.DELETE("/books/:id", h.remove)
	rg.POST("/categories", h.createCategory)
}

func (h *Handler) create(c *gin.Context) {
	title := strings.TrimSpace(c.PostForm("title"))
	author := strings.TrimSpace(c.PostForm("author"))
	description := strings.TrimSpace(c.PostForm("description"))
	categories := splitCategories(c.PostForm("categories"))

	var missing []string
	if title == "" {
		missing = append(missing, "title")
	}
	if author == "" {
		missing = append(missing, "author")
	}
	if description == "" {
		missing = append(missing, "description")
	}
	if len(categories) == 0 {
		missing = append(missing, "categories")
	}
	if len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "required fields missing: " + strings.Join(missing, ", ")})
		return
	}

	totalCopies, err := strconv.Atoi(strings.TrimSpace(c.PostForm("total_copies")))
	if err != nil || totalCopies < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "total_copies must be >= 1"})
		return
	}

	nb := NewBook{
		Title:       title,
		Author:      author,
		Description: description,
		Categories:  categories,
		PublishedAt: strings.TrimSpace(c.PostForm("published_at")),
		TotalCopies: totalCopies,
	}

	if file, err := c.FormFile("cover"); err == nil {
		url, key, err := h.saveCover(file)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cover upload failed"})
			return
		}
		nb.CoverURL = url
		nb.CoverKey = key
	}

	book, err := h.Repo.Create(c.Request.Context(), nb)
	if err != nil {
		if nb.CoverKey != "" {
			_ = h.Assets.Delete(nb.CoverKey)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}

	c.JSON(http.StatusCreated, book)
}

func (h *Handler) update(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id required"})
		return
	}

	var upd BookUpdate
	if v, ok := c.GetPostForm("title"); ok {
		v = strings.TrimSpace(v)
		if v == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title cannot be empty"})
			return
		}
		upd.Title = &v
	}
	if v, ok := c.GetPostForm("author"); ok {
		v = strings.TrimSpace(v)
		if v == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "author cannot be empty"})
			return
		}
		upd.Author = &v
	}
	if v, ok := c.GetPostForm("description"); ok {
		v = strings.TrimSpace(v)
		upd.Description = &v
	}
	if v, ok := c.GetPostForm("published_at"); ok {
		v = strings.TrimSpace(v)
		upd.PublishedAt = &v
	}
	if v, ok := c.GetPostForm("categories"); ok {
		upd.Categories = splitCategories(v)
	}
	if v, ok := c.GetPostForm("total_copies"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "total_copies must be >= 1"})
			return
		}
		upd.TotalCopies = &n
	}

	// Cover replacement: upload the new asset first, commit the row,
	// and only then delete the old blob. A crash in between orphans a
	// file instead of breaking a referenced cover.
	oldKey := ""
	if file, err := c.FormFile("cover"); err == nil {
		prev, err := h.Repo.CoverKey(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
			return
		}
		oldKey = prev

		url, key, err := h.saveCover(file)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cover upload failed"})
			return
		}
		upd.CoverURL = &url
		upd.CoverKey = &key
	}

	book, err := h.Repo.Update(c.Request.Context(), id, upd)
	if err != nil {
		if upd.CoverKey != nil {
			_ = h.Assets.Delete(*upd.CoverKey)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if book == nil {
		if upd.CoverKey != nil {
			_ = h.Assets.Delete(*upd.CoverKey)
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
		return
	}

	if oldKey != "" {
		if err := h.Assets.Delete(oldKey); err != nil {
			log.Printf("[catalog] delete replaced cover %s: %v", oldKey, err)
		}
	}

	c.JSON(http.StatusOK, book)
}

func (h *Handler) remove(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id required"})
		return
	}

	coverKey, err := h.Repo.CoverKey(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}

	ok, err := h.Repo.Delete(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
		return
	}

	if coverKey != "" {
		if err := h.Assets.Delete(coverKey); err != nil {
			log.Printf("[catalog] delete cover %s: %v", coverKey, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *Handler) getByID(c *gin.Context) {
	book, err := h.Repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if book == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *Handler) list(c *gin.Context) {
	limit := parseInt(c.Query("limit"), 20)
	offset := parseInt(c.Query("offset"), 0)

	items, total, err := h.Repo.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  limit,
		"offset": offset,
		"items":  items,
	})
}

func (h *Handler) search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}

	items, err := h.Repo.Search(c.Request.Context(), query, parseInt(c.Query("limit"), 20))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) listCategories(c *gin.Context) {
	items, err := h.Repo.ListCategories(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) createCategory(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
		return
	}

	cat, err := h.Repo.CreateCategory(c.Request.Context(), req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, cat)
}

func (h *Handler) saveCover(file *multipart.FileHeader) (string, string, error) {
	f, err := file.Open()
	if err != nil {
		return "", "", err
	}
	defer f.Close()
	return h.Assets.Save(file.Filename, f)
}

func splitCategories(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
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
