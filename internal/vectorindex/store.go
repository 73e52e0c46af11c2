package vectorindex

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leyan/cinevec/internal/domain"
	"github.com/leyan/cinevec/internal/logger"
)

// Embedder turns batches of text into fixed-length vectors. Failures must be
// reported as errors, never as empty or truncated vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// StoreOptions configures a Store.
type StoreOptions struct {
	// CachePath is the snapshot cache file. Empty disables caching.
	CachePath string

	// BatchSize is the number of texts sent per embedding call.
	BatchSize int
}

// Store owns the single logical index. Reads go through an atomic pointer
// and never block; builds serialize on a mutex.
//
// Concurrency policy: callers that invoke Ensure while a build is running
// block until the build finishes and then reuse its result. Build always
// constructs a fresh generation. Readers observe either the previous
// generation or the new one, never a partially populated structure.
type Store struct {
	current atomic.Pointer[Index]
	buildMu sync.Mutex
	genSeq  atomic.Uint64
	opts    StoreOptions
}

// NewStore creates an empty Store. No index is available until the first
// successful Build or Ensure.
func NewStore(opts StoreOptions) *Store {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	return &Store{opts: opts}
}

// Current returns the published index, or ErrIndexNotBuilt before the first
// successful build.
func (s *Store) Current() (*Index, error) {
	ix := s.current.Load()
	if ix == nil {
		return nil, ErrIndexNotBuilt
	}
	return ix, nil
}

// Ready reports whether an index generation has been published.
func (s *Store) Ready() bool {
	return s.current.Load() != nil
}

// Ensure returns the current index, building one from fetch if none exists.
// Concurrent callers serialize on the build lock; all of them end up with
// the generation produced by whichever caller ran the build.
// Parameters:
//   - ctx: context for cancellation; a cancelled caller stops waiting but
//     does not abort a build another caller is running.
//   - fetch: corpus loader, invoked only when a build is needed.
//   - embedder: embedding capability used for the build.
// Returns:
//   - *Index: the published index.
//   - error: non-nil if a needed build fails.
func (s *Store) Ensure(ctx context.Context, fetch func(context.Context) ([]Record, error), embedder Embedder) (*Index, error) {
	if ix := s.current.Load(); ix != nil {
		return ix, nil
	}

	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	// Another caller may have finished the build while we waited.
	if ix := s.current.Load(); ix != nil {
		return ix, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: corpus fetch failed: %w", err)
	}
	return s.buildLocked(ctx, records, embedder, false)
}

// Build constructs a new index generation from records and publishes it
// atomically. The previous generation stays visible until the new one is
// complete, and stays in place if the build fails for any reason.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - records: non-empty corpus; ErrEmptyCorpus otherwise.
//   - embedder: embedding capability; any per-record failure fails the
//     whole build.
//   - force: bypass the snapshot cache even if it matches.
// Returns:
//   - *Index: the newly published index.
//   - error: non-nil if the build fails; the previous index is untouched.
func (s *Store) Build(ctx context.Context, records []Record, embedder Embedder, force bool) (*Index, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	return s.buildLocked(ctx, records, embedder, force)
}

func (s *Store) buildLocked(ctx context.Context, records []Record, embedder Embedder, force bool) (*Index, error) {
	if len(records) == 0 {
		return nil, ErrEmptyCorpus
	}

	start := time.Now()
	gen := s.genSeq.Add(1)

	// Snapshot cache: reuse a cached generation when its record count still
	// matches the corpus.
	if !force && s.opts.CachePath != "" {
		if cached, err := loadSnapshot(s.opts.CachePath); err == nil {
			if cached.Size() == len(records) {
				cached.generation = gen
				s.current.Store(cached)
				logger.With(logger.Fields{
					logger.FieldGeneration: gen,
					logger.FieldCount:      cached.Size(),
				}).Info(ctx, "Index loaded from snapshot cache")
				return cached, nil
			}
			logger.CtxInfo(ctx, "Snapshot cache stale: cached=%d, corpus=%d, rebuilding", cached.Size(), len(records))
		} else {
			logger.CtxDebug(ctx, "Snapshot cache unavailable: %v", err)
		}
	}

	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.Text
	}

	vectors := make([][]float32, 0, len(records))
	dim := 0
	for lo := 0; lo < len(texts); lo += s.opts.BatchSize {
		hi := lo + s.opts.BatchSize
		if hi > len(texts) {
			hi = len(texts)
		}
		batch, err := embedder.EmbedBatch(ctx, texts[lo:hi])
		if err != nil {
			return nil, fmt.Errorf("vectorindex: embedding batch [%d:%d] failed: %w", lo, hi, err)
		}
		if len(batch) != hi-lo {
			return nil, fmt.Errorf("vectorindex: embedder returned %d vectors for %d texts", len(batch), hi-lo)
		}
		for _, vec := range batch {
			if dim == 0 {
				dim = len(vec)
			}
			if len(vec) == 0 || len(vec) != dim {
				return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), dim)
			}
			vectors = append(vectors, Normalize(vec))
		}
	}

	ids := make([]string, len(records))
	meta := make(map[string]domain.MovieMeta, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
		meta[rec.ID] = rec.Meta
	}

	ix := &Index{
		generation: gen,
		dim:        dim,
		ids:        ids,
		vectors:    vectors,
		meta:       meta,
	}

	// Single atomic swap: this is the only point where readers can start
	// observing the new generation.
	s.current.Store(ix)

	if s.opts.CachePath != "" {
		if err := saveSnapshot(s.opts.CachePath, ix); err != nil {
			logger.CtxWarn(ctx, "Failed to persist index snapshot: %v", err)
		}
	}

	logger.With(logger.Fields{
		logger.FieldGeneration: gen,
		logger.FieldCount:      len(ids),
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info(ctx, "Index build completed: dim=%d", dim)

	return ix, nil
}
