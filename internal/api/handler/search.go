package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/leyan/cinevec/internal/service"
	"github.com/leyan/cinevec/internal/vectorindex"
)

// SearchHandler handles search-related endpoints.
type SearchHandler struct {
	searchService *service.SearchService
}

// NewSearchHandler creates a new search handler.
// Parameters:
//   - searchService: search service instance.
// Returns:
//   - *SearchHandler: initialized handler.
func NewSearchHandler(searchService *service.SearchService) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
	}
}

// Search handles POST /api/v1/search.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) Search(c *gin.Context) {
	var req service.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	result, err := h.searchService.Search(c.Request.Context(), &req)
	if err != nil {
		writeSearchError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SearchGet handles GET /api/v1/search for simple search queries.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) SearchGet(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Query parameter 'q' is required",
		})
		return
	}

	req := service.SearchRequest{
		Query: query,
		Filters: service.SearchFilters{
			Country:  c.Query("country"),
			Genre:    c.Query("genre"),
			Director: c.Query("director"),
			Actor:    c.Query("actor"),
		},
	}

	if topK, err := strconv.Atoi(c.Query("top_k")); err == nil {
		req.TopK = topK
	}
	if year, err := strconv.Atoi(c.Query("year")); err == nil {
		req.Filters.YearMin = &year
		req.Filters.YearMax = &year
	}

	result, err := h.searchService.Search(c.Request.Context(), &req)
	if err != nil {
		writeSearchError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Similar handles GET /api/v1/movies/:id/similar.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) Similar(c *gin.Context) {
	id := c.Param("id")
	topK, _ := strconv.Atoi(c.DefaultQuery("top_k", "0"))

	result, err := h.searchService.SimilarByID(c.Request.Context(), id, topK)
	if err != nil {
		writeSearchError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetStats handles GET /api/v1/stats.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) GetStats(c *gin.Context) {
	stats, err := h.searchService.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get stats: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// writeSearchError maps service errors onto HTTP statuses: upstream
// embedding failures are a bad gateway, an empty corpus makes the index
// unavailable, anything else is internal.
func writeSearchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEmbeddingService):
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Embedding service unavailable: " + err.Error(),
		})
	case errors.Is(err, vectorindex.ErrEmptyCorpus):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Index unavailable: " + err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Search failed: " + err.Error(),
		})
	}
}
