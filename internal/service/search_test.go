package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/leyan/cinevec/internal/domain"
	"github.com/leyan/cinevec/internal/logger"
	"github.com/leyan/cinevec/internal/vectorindex"
)

// fakeMovieRepo serves a fixed corpus without a database.
type fakeMovieRepo struct {
	movies  []domain.Movie
	getErr  error
	getAlls int
}

func (r *fakeMovieRepo) GetAll(ctx context.Context) ([]domain.Movie, error) {
	r.getAlls++
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.movies, nil
}

func (r *fakeMovieRepo) GetByID(ctx context.Context, id string) (*domain.Movie, error) {
	for i := range r.movies {
		if r.movies[i].ID == id {
			return &r.movies[i], nil
		}
	}
	return nil, fmt.Errorf("movie not found: %s", id)
}

func (r *fakeMovieRepo) ListPaginated(ctx context.Context, limit, offset int) ([]domain.Movie, error) {
	if offset >= len(r.movies) {
		return []domain.Movie{}, nil
	}
	end := offset + limit
	if end > len(r.movies) {
		end = len(r.movies)
	}
	return r.movies[offset:end], nil
}

func (r *fakeMovieRepo) SearchByKeyword(ctx context.Context, keyword string, limit int) ([]domain.Movie, error) {
	var out []domain.Movie
	for _, m := range r.movies {
		if strings.Contains(m.Title, keyword) || strings.Contains(m.Summary, keyword) {
			out = append(out, m)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeMovieRepo) ListByYear(ctx context.Context, year, limit int) ([]domain.Movie, error) {
	var out []domain.Movie
	for _, m := range r.movies {
		if m.Year == year {
			out = append(out, m)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeMovieRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(r.movies)), nil
}

func (r *fakeMovieRepo) TopGenres(ctx context.Context, limit int) ([]string, error) {
	return []string{"剧情"}, nil
}

// fakeProvider maps texts to fixed vectors by title keyword so rankings are
// fully deterministic. Unknown texts get the query vector.
type fakeProvider struct {
	byKeyword map[string][]float32
	queryVec  []float32
	failQuery bool
	failBatch bool
}

func (p *fakeProvider) vectorFor(text string) []float32 {
	for kw, vec := range p.byKeyword {
		if strings.Contains(text, kw) {
			return vec
		}
	}
	return p.queryVec
}

func (p *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if p.failQuery {
		return nil, fmt.Errorf("%w: connection refused", ErrEmbeddingService)
	}
	return p.vectorFor(text), nil
}

func (p *fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if p.failBatch {
		return nil, fmt.Errorf("%w: connection refused", ErrEmbeddingService)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = p.vectorFor(text)
	}
	return out, nil
}

func (p *fakeProvider) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return p.Embed(ctx, query)
}

func (p *fakeProvider) Dimensions() int { return 4 }

func testMovies() []domain.Movie {
	return []domain.Movie{
		{
			ID:      "m1",
			Title:   "Alpha",
			Year:    2010,
			Country: "中国大陆",
			Genres:  domain.StringArray{"剧情"},
			Summary: "一个关于友情的漫长故事，横跨十年。",
		},
		{
			ID:      "m2",
			Title:   "Beta",
			Year:    2012,
			Country: "美国",
			Genres:  domain.StringArray{"科幻"},
			Summary: "宇航员在遥远星球上求生的故事。",
		},
		{
			ID:      "m3",
			Title:   "Gamma",
			Year:    2012,
			Country: "日本",
			Genres:  domain.StringArray{"动画"},
			Summary: "少年与机器人共同成长的冒险。",
		},
	}
}

// testProvider ranks Alpha > Beta > Gamma against the query vector.
func testProvider() *fakeProvider {
	return &fakeProvider{
		byKeyword: map[string][]float32{
			"Alpha": {1, 0, 0, 0},
			"Beta":  {0.9, 0.3, 0, 0},
			"Gamma": {0.8, 0.5, 0, 0},
		},
		queryVec: []float32{1, 0, 0, 0},
	}
}

func newTestService(t *testing.T, repo *fakeMovieRepo, provider EmbeddingProvider) *SearchService {
	t.Helper()
	log := logger.New(&logger.Config{Level: "error", Output: io.Discard})
	store := vectorindex.NewStore(vectorindex.StoreOptions{})
	return NewSearchService(repo, store, provider, log, SearchConfig{
		DefaultTopK:      5,
		MaxTopK:          10,
		FilterOversample: 4,
		MinSummaryRunes:  5,
	})
}

func TestSearch_YearFilterSelectsMatchingRecords(t *testing.T) {
	repo := &fakeMovieRepo{movies: testMovies()}
	svc := newTestService(t, repo, testProvider())

	resp, err := svc.Search(context.Background(), &SearchRequest{
		Query: "find the one from 2012",
		TopK:  2,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if resp.FilterIgnored {
		t.Error("filter matched records, FilterIgnored should be false")
	}
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results, want 2: %+v", len(resp.Results), resp.Results)
	}
	// m1 (2010) is the best unfiltered hit but must be excluded; the two
	// 2012 records come back in descending similarity order.
	if resp.Results[0].ID != "m2" || resp.Results[1].ID != "m3" {
		t.Errorf("got [%s %s], want [m2 m3]", resp.Results[0].ID, resp.Results[1].ID)
	}
	if resp.Results[0].Score < resp.Results[1].Score {
		t.Errorf("results out of order: %f < %f", resp.Results[0].Score, resp.Results[1].Score)
	}
	if resp.Filters.YearMin == nil || *resp.Filters.YearMin != 2012 {
		t.Errorf("extracted filters not reported: %+v", resp.Filters)
	}
}

func TestSearch_NoFilterReturnsSimilarityOrder(t *testing.T) {
	repo := &fakeMovieRepo{movies: testMovies()}
	svc := newTestService(t, repo, testProvider())

	resp, err := svc.Search(context.Background(), &SearchRequest{
		Query: "a long story about friendship",
		TopK:  3,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	want := []string{"m1", "m2", "m3"}
	if len(resp.Results) != len(want) {
		t.Fatalf("got %d results, want %d", len(resp.Results), len(want))
	}
	for i, id := range want {
		if resp.Results[i].ID != id {
			t.Errorf("result[%d] = %s, want %s", i, resp.Results[i].ID, id)
		}
	}
	for i := 1; i < len(resp.Results); i++ {
		if resp.Results[i].Score > resp.Results[i-1].Score {
			t.Errorf("scores not descending at %d", i)
		}
	}
}

func TestSearch_FilterEliminatingAllFallsBack(t *testing.T) {
	repo := &fakeMovieRepo{movies: testMovies()}
	svc := newTestService(t, repo, testProvider())

	resp, err := svc.Search(context.Background(), &SearchRequest{
		Query:   "any movie at all",
		TopK:    2,
		Filters: SearchFilters{Country: "法国"},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if !resp.FilterIgnored {
		t.Error("expected FilterIgnored when the filter eliminates every candidate")
	}
	if len(resp.Results) != 2 {
		t.Fatalf("fallback should return unfiltered top results, got %d", len(resp.Results))
	}
	if resp.Results[0].ID != "m1" {
		t.Errorf("fallback top result = %s, want m1", resp.Results[0].ID)
	}
}

func TestSearch_EmbeddingFailureReturnsError(t *testing.T) {
	repo := &fakeMovieRepo{movies: testMovies()}
	provider := testProvider()
	svc := newTestService(t, repo, provider)

	// Build first so only the query embedding fails.
	if _, err := svc.Rebuild(context.Background(), false); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	provider.failQuery = true

	resp, err := svc.Search(context.Background(), &SearchRequest{Query: "anything"})
	if !errors.Is(err, ErrEmbeddingService) {
		t.Fatalf("expected ErrEmbeddingService, got %v", err)
	}
	if resp != nil {
		t.Error("no partial response on embedding failure")
	}
}

func TestSearch_BuildsIndexImplicitly(t *testing.T) {
	repo := &fakeMovieRepo{movies: testMovies()}
	svc := newTestService(t, repo, testProvider())

	if svc.IndexStatusNow().Ready {
		t.Fatal("index should not be ready before the first query")
	}

	if _, err := svc.Search(context.Background(), &SearchRequest{Query: "anything"}); err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	status := svc.IndexStatusNow()
	if !status.Ready {
		t.Fatal("first query should have built the index")
	}
	if status.Size != 3 {
		t.Errorf("index size = %d, want 3", status.Size)
	}
	if repo.getAlls != 1 {
		t.Errorf("corpus fetched %d times, want 1", repo.getAlls)
	}

	// Subsequent queries reuse the published generation.
	if _, err := svc.Search(context.Background(), &SearchRequest{Query: "again"}); err != nil {
		t.Fatalf("second Search failed: %v", err)
	}
	if repo.getAlls != 1 {
		t.Errorf("second query re-fetched the corpus (%d fetches)", repo.getAlls)
	}
}

func TestSearch_TopKClamped(t *testing.T) {
	repo := &fakeMovieRepo{movies: testMovies()}
	svc := newTestService(t, repo, testProvider())

	resp, err := svc.Search(context.Background(), &SearchRequest{Query: "anything", TopK: 500})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(resp.Results) != 3 {
		t.Errorf("got %d results, want the whole corpus (3)", len(resp.Results))
	}
}

func TestSearch_ShortSummariesExcludedFromIndex(t *testing.T) {
	movies := testMovies()
	movies = append(movies, domain.Movie{ID: "m4", Title: "Delta", Year: 2020, Summary: "短"})
	repo := &fakeMovieRepo{movies: movies}
	svc := newTestService(t, repo, testProvider())

	resp, err := svc.Search(context.Background(), &SearchRequest{Query: "anything", TopK: 10})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, r := range resp.Results {
		if r.ID == "m4" {
			t.Error("record below the summary quality floor was indexed")
		}
	}
	if svc.IndexStatusNow().Size != 3 {
		t.Errorf("index size = %d, want 3", svc.IndexStatusNow().Size)
	}
}

func TestSimilarByID_ExcludesSelf(t *testing.T) {
	repo := &fakeMovieRepo{movies: testMovies()}
	svc := newTestService(t, repo, testProvider())

	resp, err := svc.SimilarByID(context.Background(), "m2", 2)
	if err != nil {
		t.Fatalf("SimilarByID failed: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(resp.Results))
	}
	for _, r := range resp.Results {
		if r.ID == "m2" {
			t.Error("SimilarByID must not return the movie itself")
		}
	}
}

func TestSimilarByID_UnknownID(t *testing.T) {
	repo := &fakeMovieRepo{movies: testMovies()}
	svc := newTestService(t, repo, testProvider())

	if _, err := svc.SimilarByID(context.Background(), "nope", 2); err == nil {
		t.Fatal("expected an error for an ID that is not indexed")
	}
}

func TestRebuild_EmptyCorpus(t *testing.T) {
	repo := &fakeMovieRepo{}
	svc := newTestService(t, repo, testProvider())

	_, err := svc.Rebuild(context.Background(), false)
	if !errors.Is(err, vectorindex.ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}
}

func TestListMovies(t *testing.T) {
	repo := &fakeMovieRepo{movies: testMovies()}
	svc := newTestService(t, repo, testProvider())
	ctx := context.Background()

	resp, err := svc.ListMovies(ctx, ListQuery{})
	if err != nil {
		t.Fatalf("ListMovies failed: %v", err)
	}
	if resp.Total != 3 || resp.Limit != 20 {
		t.Errorf("default listing: total=%d limit=%d", resp.Total, resp.Limit)
	}

	resp, err = svc.ListMovies(ctx, ListQuery{Year: 2012})
	if err != nil {
		t.Fatalf("ListMovies by year failed: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("year listing: total=%d, want 2", resp.Total)
	}

	resp, err = svc.ListMovies(ctx, ListQuery{Keyword: "Alpha"})
	if err != nil {
		t.Fatalf("ListMovies by keyword failed: %v", err)
	}
	if resp.Total != 1 || resp.Results[0].ID != "m1" {
		t.Errorf("keyword listing: %+v", resp.Results)
	}
}

func TestStats(t *testing.T) {
	repo := &fakeMovieRepo{movies: testMovies()}
	svc := newTestService(t, repo, testProvider())

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats["total_movies"].(int64) != 3 {
		t.Errorf("total_movies = %v, want 3", stats["total_movies"])
	}
}
