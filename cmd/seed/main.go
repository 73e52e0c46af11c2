package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/google/uuid"
	"github.com/leyan/cinevec/internal/config"
	"github.com/leyan/cinevec/internal/domain"
	"github.com/leyan/cinevec/internal/logger"
	"github.com/leyan/cinevec/internal/repository"
)

// seedMovie mirrors the export format of the scraper: a flat JSON array of
// movie objects keyed like the domain model.
type seedMovie struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Year        int      `json:"year"`
	Country     string   `json:"country"`
	Genres      []string `json:"genres"`
	Directors   []string `json:"directors"`
	Actors      []string `json:"actors"`
	Rating      float64  `json:"rating"`
	RatingCount int      `json:"rating_count"`
	PosterURL   string   `json:"poster_url"`
	SourceURL   string   `json:"source_url"`
}

func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "text",
		ServiceName: "cinevec-seed",
	})
	logger.SetDefaultLogger(appLogger)

	filePath := flag.String("file", "./data/movies.json", "Path to the movie JSON export")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	movieRepo := repository.NewMovieRepository(db)

	raw, err := os.ReadFile(*filePath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to read seed file")
	}

	var seeds []seedMovie
	if err := json.Unmarshal(raw, &seeds); err != nil {
		appLogger.WithError(err).Fatal("Failed to parse seed file")
	}

	ctx := context.Background()
	inserted := 0
	skipped := 0
	for i := range seeds {
		s := &seeds[i]
		if s.Title == "" {
			skipped++
			continue
		}
		id := s.ID
		if id == "" {
			id = uuid.New().String()
		}
		movie := &domain.Movie{
			ID:          id,
			Title:       s.Title,
			Summary:     s.Summary,
			Year:        s.Year,
			Country:     s.Country,
			Genres:      domain.StringArray(s.Genres),
			Directors:   domain.StringArray(s.Directors),
			Actors:      domain.StringArray(s.Actors),
			Rating:      s.Rating,
			RatingCount: s.RatingCount,
			PosterURL:   s.PosterURL,
			SourceURL:   s.SourceURL,
		}
		if err := movieRepo.Upsert(ctx, movie); err != nil {
			appLogger.WithError(err).WithField("title", s.Title).Warn("Failed to upsert movie")
			skipped++
			continue
		}
		inserted++
	}

	appLogger.WithFields(logger.Fields{
		"inserted": inserted,
		"skipped":  skipped,
	}).Info("Seeding complete")
}
