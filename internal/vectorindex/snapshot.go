package vectorindex

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leyan/cinevec/internal/domain"
)

// snapshotVersion guards against loading snapshots written by an
// incompatible layout.
const snapshotVersion = 1

// snapshot is the gob-serializable form of an Index.
type snapshot struct {
	Version int
	Dim     int
	IDs     []string
	Vectors [][]float32
	Meta    map[string]domain.MovieMeta
}

// saveSnapshot writes the index to path via a temp file and rename, so a
// crash mid-write never leaves a truncated cache behind.
func saveSnapshot(path string, ix *Index) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}

	snap := snapshot{
		Version: snapshotVersion,
		Dim:     ix.dim,
		IDs:     ix.ids,
		Vectors: ix.vectors,
		Meta:    ix.meta,
	}
	if err := gob.NewEncoder(f).Encode(&snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close snapshot temp file: %w", err)
	}
	return os.Rename(tmp, path)
}

// loadSnapshot reads a previously saved index from path. The caller assigns
// the generation number.
func loadSnapshot(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("snapshot version %d not supported", snap.Version)
	}
	if len(snap.IDs) != len(snap.Vectors) {
		return nil, fmt.Errorf("snapshot corrupt: %d ids, %d vectors", len(snap.IDs), len(snap.Vectors))
	}
	for _, vec := range snap.Vectors {
		if len(vec) != snap.Dim {
			return nil, fmt.Errorf("snapshot corrupt: vector dim %d, want %d", len(vec), snap.Dim)
		}
	}

	return &Index{
		dim:     snap.Dim,
		ids:     snap.IDs,
		vectors: snap.Vectors,
		meta:    snap.Meta,
	}, nil
}
