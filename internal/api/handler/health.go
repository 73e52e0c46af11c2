package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/leyan/cinevec/internal/service"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	searchService *service.SearchService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(searchService *service.SearchService) *HealthHandler {
	return &HealthHandler{searchService: searchService}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"index_ready": h.searchService.IndexStatusNow().Ready,
	})
}
