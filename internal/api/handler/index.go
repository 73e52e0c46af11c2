package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/leyan/cinevec/internal/service"
	"github.com/leyan/cinevec/internal/vectorindex"
)

// IndexHandler handles index administration endpoints.
type IndexHandler struct {
	searchService *service.SearchService
}

// NewIndexHandler creates a new index handler.
// Parameters:
//   - searchService: search service instance.
// Returns:
//   - *IndexHandler: initialized handler.
func NewIndexHandler(searchService *service.SearchService) *IndexHandler {
	return &IndexHandler{
		searchService: searchService,
	}
}

// Rebuild handles POST /api/v1/index/rebuild. With ?force=true the snapshot
// cache is bypassed and every vector is recomputed.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *IndexHandler) Rebuild(c *gin.Context) {
	force := c.Query("force") == "true"

	status, err := h.searchService.Rebuild(c.Request.Context(), force)
	if err != nil {
		switch {
		case errors.Is(err, vectorindex.ErrEmptyCorpus):
			c.JSON(http.StatusConflict, gin.H{
				"error": "Cannot build index from an empty corpus",
			})
		case errors.Is(err, service.ErrEmbeddingService):
			c.JSON(http.StatusBadGateway, gin.H{
				"error": "Embedding service unavailable: " + err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Rebuild failed: " + err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, status)
}

// Status handles GET /api/v1/index/status. It never triggers a build.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *IndexHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.searchService.IndexStatusNow())
}
