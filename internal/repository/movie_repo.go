package repository

import (
	"context"

	"github.com/leyan/cinevec/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MovieRepository handles movie data operations.
// The index builder and query router treat it as read-only; writes happen
// only through the seeding path.
type MovieRepository struct {
	db *gorm.DB
}

// NewMovieRepository creates a new MovieRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *MovieRepository: repository instance bound to db.
func NewMovieRepository(db *gorm.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// Upsert creates or updates a movie record keyed by its source URL.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - movie: movie record to create or update.
// Returns:
//   - error: non-nil if the upsert fails.
func (r *MovieRepository) Upsert(ctx context.Context, movie *domain.Movie) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_url"}},
		UpdateAll: true,
	}).Create(movie).Error
}

// GetByID retrieves a movie by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: movie ID.
// Returns:
//   - *domain.Movie: movie record if found.
//   - error: non-nil if lookup fails.
func (r *MovieRepository) GetByID(ctx context.Context, id string) (*domain.Movie, error) {
	var movie domain.Movie
	if err := r.db.WithContext(ctx).First(&movie, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &movie, nil
}

// GetAll retrieves the full corpus in stable primary-key order.
// The index builder relies on this ordering for deterministic tie-breaks.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - []domain.Movie: all movie records.
//   - error: non-nil if the query fails.
func (r *MovieRepository) GetAll(ctx context.Context) ([]domain.Movie, error) {
	var movies []domain.Movie
	if err := r.db.WithContext(ctx).Order("id").Find(&movies).Error; err != nil {
		return nil, err
	}
	return movies, nil
}

// Count returns the total number of movie records.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - int64: number of records.
//   - error: non-nil if the query fails.
func (r *MovieRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Movie{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListPaginated retrieves movies with pagination, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.Movie: matching movie records.
//   - error: non-nil if the query fails.
func (r *MovieRepository) ListPaginated(ctx context.Context, limit, offset int) ([]domain.Movie, error) {
	var movies []domain.Movie
	if err := r.db.WithContext(ctx).
		Limit(limit).
		Offset(offset).
		Order("created_at DESC, id").
		Find(&movies).Error; err != nil {
		return nil, err
	}
	return movies, nil
}

// SearchByKeyword performs a LIKE search over title and summary.
// Used as the keyword fallback path when the vector index is unavailable.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - keyword: substring to match.
//   - limit: maximum number of records to return.
// Returns:
//   - []domain.Movie: matching movie records.
//   - error: non-nil if the query fails.
func (r *MovieRepository) SearchByKeyword(ctx context.Context, keyword string, limit int) ([]domain.Movie, error) {
	var movies []domain.Movie
	pattern := "%" + keyword + "%"
	if err := r.db.WithContext(ctx).
		Where("title LIKE ? OR summary LIKE ?", pattern, pattern).
		Limit(limit).
		Order("rating DESC, id").
		Find(&movies).Error; err != nil {
		return nil, err
	}
	return movies, nil
}

// ListByYear retrieves movies released in the given year.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - year: release year to filter by.
//   - limit: maximum number of records to return.
// Returns:
//   - []domain.Movie: matching movie records.
//   - error: non-nil if the query fails.
func (r *MovieRepository) ListByYear(ctx context.Context, year, limit int) ([]domain.Movie, error) {
	var movies []domain.Movie
	if err := r.db.WithContext(ctx).
		Where("year = ?", year).
		Limit(limit).
		Order("rating DESC, id").
		Find(&movies).Error; err != nil {
		return nil, err
	}
	return movies, nil
}

// TopGenres returns the most frequent genres across active records.
// Genres are stored as a JSON array column, so the aggregation happens
// in Go rather than SQL.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of genres to return.
// Returns:
//   - []string: genre names ordered by descending frequency.
//   - error: non-nil if the query fails.
func (r *MovieRepository) TopGenres(ctx context.Context, limit int) ([]string, error) {
	var rows []domain.Movie
	if err := r.db.WithContext(ctx).Select("genres").Find(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	order := make([]string, 0)
	for _, m := range rows {
		for _, g := range m.Genres {
			if g == "" {
				continue
			}
			if counts[g] == 0 {
				order = append(order, g)
			}
			counts[g]++
		}
	}

	// Selection by count, first-seen order breaking ties
	top := make([]string, 0, limit)
	used := make(map[string]bool, limit)
	for len(top) < limit && len(top) < len(order) {
		best := ""
		for _, g := range order {
			if used[g] {
				continue
			}
			if best == "" || counts[g] > counts[best] {
				best = g
			}
		}
		if best == "" {
			break
		}
		used[best] = true
		top = append(top, best)
	}
	return top, nil
}
