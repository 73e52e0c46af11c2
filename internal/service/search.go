package service

import (
	"context"
	"fmt"
	"time"

	"github.com/leyan/cinevec/internal/domain"
	"github.com/leyan/cinevec/internal/logger"
	"github.com/leyan/cinevec/internal/vectorindex"
)

// MovieReader is the read-only view of the record store the query router
// needs. *repository.MovieRepository satisfies it; tests substitute a fake.
type MovieReader interface {
	GetAll(ctx context.Context) ([]domain.Movie, error)
	GetByID(ctx context.Context, id string) (*domain.Movie, error)
	ListPaginated(ctx context.Context, limit, offset int) ([]domain.Movie, error)
	SearchByKeyword(ctx context.Context, keyword string, limit int) ([]domain.Movie, error)
	ListByYear(ctx context.Context, year, limit int) ([]domain.Movie, error)
	Count(ctx context.Context) (int64, error)
	TopGenres(ctx context.Context, limit int) ([]string, error)
}

// SearchConfig holds configuration for the search service.
type SearchConfig struct {
	DefaultTopK      int
	MaxTopK          int
	FilterOversample int     // candidate multiplier when filters are active
	ScoreThreshold   float32 // drop candidates scoring below this; 0 disables
	MinSummaryRunes  int     // corpus quality floor, see CorpusRecords
}

// SearchService is the query router: it extracts structured filters from
// free text, embeds the query, searches the vector index, and re-ranks by
// the structured criteria. A missing index is built implicitly on the first
// query (the documented IndexNotBuilt policy).
type SearchService struct {
	movieRepo MovieReader
	index     *vectorindex.Store
	embedding EmbeddingProvider
	logger    *logger.Logger
	cfg       SearchConfig
}

// NewSearchService creates a new search service.
// Parameters:
//   - movieRepo: read-only record store.
//   - index: vector index store.
//   - embedding: embedding provider shared by build and query paths.
//   - log: logger instance.
//   - cfg: search configuration settings; zero fields get defaults.
// Returns:
//   - *SearchService: initialized search service.
func NewSearchService(
	movieRepo MovieReader,
	index *vectorindex.Store,
	embedding EmbeddingProvider,
	log *logger.Logger,
	cfg SearchConfig,
) *SearchService {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = 100
	}
	if cfg.FilterOversample <= 1 {
		cfg.FilterOversample = 4
	}
	if cfg.MinSummaryRunes <= 0 {
		cfg.MinSummaryRunes = 5
	}
	return &SearchService{
		movieRepo: movieRepo,
		index:     index,
		embedding: embedding,
		logger:    log,
		cfg:       cfg,
	}
}

// SearchRequest represents a similarity search request. Filters set here
// take priority over filters extracted from the query text.
type SearchRequest struct {
	Query   string        `json:"query" binding:"required"`
	TopK    int           `json:"top_k"`
	Filters SearchFilters `json:"filters"`
}

// SearchResponse represents the search response.
type SearchResponse struct {
	Results []domain.MovieSearchResult `json:"results"`
	Total   int                        `json:"total"`
	Query   string                     `json:"query"`

	// Filters is the effective structured predicate (extracted + request).
	Filters SearchFilters `json:"filters"`

	// FilterIgnored is true when the filter eliminated every candidate and
	// the unfiltered top results were returned instead.
	FilterIgnored bool `json:"filter_ignored"`

	Generation uint64 `json:"generation"`
}

// Search performs semantic retrieval with structured filtering.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - req: search request parameters.
// Returns:
//   - *SearchResponse: ordered results and filter outcome.
//   - error: non-nil if the index cannot be built or the query cannot be
//     embedded; embedding failures wrap ErrEmbeddingService.
func (s *SearchService) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}
	if topK > s.cfg.MaxTopK {
		topK = s.cfg.MaxTopK
	}

	// Step 1: structured hint extraction, total by construction.
	filters := ExtractFilters(req.Query).Merge(req.Filters)

	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldComponent: "search",
	})

	// Implicit build on first query.
	ix, err := s.index.Ensure(ctx, s.fetchCorpus, s.embedding)
	if err != nil {
		return nil, fmt.Errorf("index unavailable: %w", err)
	}

	// Step 2: query embedding; failures are explicit, never a best-effort
	// guess.
	queryVec, err := s.embedding.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	// Step 3: similarity search. Oversample when a filter is active so the
	// post-filter cut still has topK survivors to choose from.
	candidateK := topK
	if !filters.IsZero() {
		candidateK = topK * s.cfg.FilterOversample
	}

	start := time.Now()
	hits, err := ix.Search(queryVec, candidateK)
	if err != nil {
		return nil, fmt.Errorf("index search failed: %w", err)
	}

	if s.cfg.ScoreThreshold > 0 {
		kept := hits[:0]
		for _, hit := range hits {
			if hit.Score >= s.cfg.ScoreThreshold {
				kept = append(kept, hit)
			}
		}
		hits = kept
	}

	// Step 4: filter application. An all-eliminating filter falls back to
	// the unfiltered ranking with an explicit signal instead of returning
	// nothing.
	filterIgnored := false
	selected := hits
	if !filters.IsZero() {
		filtered := make([]vectorindex.Hit, 0, topK)
		for _, hit := range hits {
			if filters.Matches(&hit.Meta) {
				filtered = append(filtered, hit)
			}
		}
		if len(filtered) == 0 && len(hits) > 0 {
			filterIgnored = true
		} else {
			selected = filtered
		}
	}
	if len(selected) > topK {
		selected = selected[:topK]
	}

	results := make([]domain.MovieSearchResult, len(selected))
	for i, hit := range selected {
		results[i] = domain.MovieSearchResult{MovieMeta: hit.Meta, Score: hit.Score}
	}

	logger.With(logger.Fields{
		logger.FieldCount:      len(results),
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldGeneration: ix.Generation(),
	}).Info(ctx, "Search completed: query=%q, top_k=%d, filter_ignored=%v", req.Query, topK, filterIgnored)

	return &SearchResponse{
		Results:       results,
		Total:         len(results),
		Query:         req.Query,
		Filters:       filters,
		FilterIgnored: filterIgnored,
		Generation:    ix.Generation(),
	}, nil
}

// SimilarByID returns the nearest neighbors of an indexed movie, excluding
// the movie itself.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: movie ID; must be present in the current index.
//   - topK: maximum number of neighbors.
// Returns:
//   - *SearchResponse: ordered neighbors.
//   - error: non-nil if the movie is not indexed or the search fails.
func (s *SearchService) SimilarByID(ctx context.Context, id string, topK int) (*SearchResponse, error) {
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}
	if topK > s.cfg.MaxTopK {
		topK = s.cfg.MaxTopK
	}

	ix, err := s.index.Ensure(ctx, s.fetchCorpus, s.embedding)
	if err != nil {
		return nil, fmt.Errorf("index unavailable: %w", err)
	}

	vec, ok := ix.Vector(id)
	if !ok {
		return nil, fmt.Errorf("movie %s is not in the index", id)
	}

	hits, err := ix.Search(vec, topK+1)
	if err != nil {
		return nil, fmt.Errorf("index search failed: %w", err)
	}

	results := make([]domain.MovieSearchResult, 0, topK)
	for _, hit := range hits {
		if hit.ID == id {
			continue
		}
		results = append(results, domain.MovieSearchResult{MovieMeta: hit.Meta, Score: hit.Score})
		if len(results) == topK {
			break
		}
	}

	return &SearchResponse{
		Results:    results,
		Total:      len(results),
		Generation: ix.Generation(),
	}, nil
}

// Rebuild fetches the full corpus and builds a fresh index generation,
// replacing the previous one atomically on success.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - force: bypass the snapshot cache.
// Returns:
//   - *IndexStatus: state of the newly published generation.
//   - error: non-nil if the corpus is empty or embedding fails; the
//     previous index stays in place.
func (s *SearchService) Rebuild(ctx context.Context, force bool) (*IndexStatus, error) {
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldComponent: "indexer",
	})

	records, err := s.fetchCorpus(ctx)
	if err != nil {
		return nil, err
	}

	ix, err := s.index.Build(ctx, records, s.embedding, force)
	if err != nil {
		return nil, err
	}
	return indexStatusOf(ix), nil
}

// fetchCorpus loads every movie and converts the usable ones to index
// records, preserving repository order for deterministic tie-breaks.
func (s *SearchService) fetchCorpus(ctx context.Context) ([]vectorindex.Record, error) {
	movies, err := s.movieRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	return CorpusRecords(movies, s.cfg.MinSummaryRunes), nil
}

// IndexStatus describes the currently published index generation.
type IndexStatus struct {
	Ready      bool   `json:"ready"`
	Generation uint64 `json:"generation,omitempty"`
	Size       int    `json:"size,omitempty"`
	Dimension  int    `json:"dimension,omitempty"`
}

func indexStatusOf(ix *vectorindex.Index) *IndexStatus {
	return &IndexStatus{
		Ready:      true,
		Generation: ix.Generation(),
		Size:       ix.Size(),
		Dimension:  ix.Dimension(),
	}
}

// IndexStatusNow reports the current index state without triggering a build.
func (s *SearchService) IndexStatusNow() *IndexStatus {
	ix, err := s.index.Current()
	if err != nil {
		return &IndexStatus{Ready: false}
	}
	return indexStatusOf(ix)
}

// Stats returns search-related statistics.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - map[string]interface{}: aggregated stats for corpus and index.
//   - error: non-nil if statistics cannot be computed.
func (s *SearchService) Stats(ctx context.Context) (map[string]interface{}, error) {
	total, err := s.movieRepo.Count(ctx)
	if err != nil {
		return nil, err
	}

	genres, err := s.movieRepo.TopGenres(ctx, 9)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"total_movies": total,
		"top_genres":   genres,
		"index":        s.IndexStatusNow(),
	}, nil
}

// Genres returns the most common genres in the corpus.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of genres; non-positive uses 20.
// Returns:
//   - []string: genres ordered by frequency.
//   - error: non-nil if aggregation fails.
func (s *SearchService) Genres(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.movieRepo.TopGenres(ctx, limit)
}

// GetMovieByID retrieves a movie by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: movie ID.
// Returns:
//   - *domain.Movie: movie record if found.
//   - error: non-nil if lookup fails.
func (s *SearchService) GetMovieByID(ctx context.Context, id string) (*domain.Movie, error) {
	return s.movieRepo.GetByID(ctx, id)
}

// MovieListResponse represents the response for listing movies.
type MovieListResponse struct {
	Results []domain.Movie `json:"results"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

// ListQuery narrows a catalog listing. Keyword takes priority over Year;
// both empty means plain pagination.
type ListQuery struct {
	Keyword string
	Year    int
	Limit   int
	Offset  int
}

// ListMovies retrieves movies from the catalog. Keyword and year listings
// go straight to the database; they are browse operations, not semantic
// retrieval.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - q: listing parameters; zero fields get defaults.
// Returns:
//   - *MovieListResponse: list results.
//   - error: non-nil if retrieval fails.
func (s *SearchService) ListMovies(ctx context.Context, q ListQuery) (*MovieListResponse, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	var movies []domain.Movie
	var err error
	switch {
	case q.Keyword != "":
		movies, err = s.movieRepo.SearchByKeyword(ctx, q.Keyword, q.Limit)
	case q.Year > 0:
		movies, err = s.movieRepo.ListByYear(ctx, q.Year, q.Limit)
	default:
		movies, err = s.movieRepo.ListPaginated(ctx, q.Limit, q.Offset)
	}
	if err != nil {
		return nil, err
	}

	return &MovieListResponse{
		Results: movies,
		Total:   len(movies),
		Limit:   q.Limit,
		Offset:  q.Offset,
	}, nil
}
