package api

import (
	"github.com/gin-gonic/gin"
	"github.com/leyan/cinevec/internal/api/handler"
	"github.com/leyan/cinevec/internal/api/middleware"
	"github.com/leyan/cinevec/internal/service"
)

// RouterConfig carries the router-level settings.
type RouterConfig struct {
	Mode            string // debug, release, test
	AllowedOrigins  []string
	AllowAllOrigins bool
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(searchService *service.SearchService, cfg RouterConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.AllowedOrigins,
		AllowAllOrigins: cfg.AllowAllOrigins,
	}))

	healthHandler := handler.NewHealthHandler(searchService)
	searchHandler := handler.NewSearchHandler(searchService)
	movieHandler := handler.NewMovieHandler(searchService)
	indexHandler := handler.NewIndexHandler(searchService)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Search
		v1.POST("/search", searchHandler.Search)
		v1.GET("/search", searchHandler.SearchGet)

		// Movies
		v1.GET("/movies", movieHandler.ListMovies)
		v1.GET("/movies/:id", movieHandler.GetMovie)
		v1.GET("/movies/:id/similar", searchHandler.Similar)

		// Genres
		v1.GET("/genres", movieHandler.GetGenres)

		// Index administration
		v1.POST("/index/rebuild", indexHandler.Rebuild)
		v1.GET("/index/status", indexHandler.Status)

		// Stats
		v1.GET("/stats", searchHandler.GetStats)
	}

	return r
}
