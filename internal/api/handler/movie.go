package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/leyan/cinevec/internal/service"
)

// MovieHandler handles movie catalog endpoints.
type MovieHandler struct {
	searchService *service.SearchService
}

// NewMovieHandler creates a new movie handler.
// Parameters:
//   - searchService: search service instance.
// Returns:
//   - *MovieHandler: initialized handler.
func NewMovieHandler(searchService *service.SearchService) *MovieHandler {
	return &MovieHandler{
		searchService: searchService,
	}
}

// ListMovies handles GET /api/v1/movies.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *MovieHandler) ListMovies(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	year, _ := strconv.Atoi(c.Query("year"))

	result, err := h.searchService.ListMovies(c.Request.Context(), service.ListQuery{
		Keyword: c.Query("keyword"),
		Year:    year,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list movies: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetMovie handles GET /api/v1/movies/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *MovieHandler) GetMovie(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Movie ID is required",
		})
		return
	}

	movie, err := h.searchService.GetMovieByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Movie not found",
		})
		return
	}

	c.JSON(http.StatusOK, movie)
}

// GetGenres handles GET /api/v1/genres.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *MovieHandler) GetGenres(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	genres, err := h.searchService.Genres(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get genres: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"genres": genres,
		"total":  len(genres),
	})
}
