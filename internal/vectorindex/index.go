package vectorindex

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"media-curator/internal/logging"
	"media-curator/internal/metrics"
)

// ErrDimensionMismatch is returned when a vector's length does not match
// the index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Match is one nearest-neighbor search hit.
type Match struct {
	ID     int64   // embedding record id (segment id in the metadata store)
	FileID int64   // owning media file id
	Score  float32 // inner product over normalized vectors (cosine similarity)
}

type record struct {
	FileID int64
	Vector []float32
}

// Index is a flat inner-product nearest-neighbor index over normalized
// embedding vectors, persisted as a snapshot file next to the metadata
// database. Vectors are keyed by embedding record id and grouped by owning
// file id so a file's whole generation can be replaced atomically.
type Index struct {
	mu      sync.RWMutex
	path    string
	dim     int
	records map[int64]record
	byFile  map[int64][]int64
}

// snapshot is the on-disk representation.
type snapshot struct {
	Dim     int
	IDs     []int64
	FileIDs []int64
	Vectors [][]float32
}

// Open loads the index snapshot at path, or creates an empty index with the
// given dimension if no snapshot exists.
func Open(path string, dim int) (*Index, error) {
	ix := &Index{
		path:    path,
		dim:     dim,
		records: make(map[int64]record),
		byFile:  make(map[int64][]int64),
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		logging.Info("Vector index: starting empty (%s, dim=%d)", path, dim)
		return ix, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode vector index: %w", err)
	}
	if snap.Dim != dim {
		return nil, fmt.Errorf("vector index dimension is %d, expected %d: %w", snap.Dim, dim, ErrDimensionMismatch)
	}

	for i, id := range snap.IDs {
		ix.records[id] = record{FileID: snap.FileIDs[i], Vector: snap.Vectors[i]}
		ix.byFile[snap.FileIDs[i]] = append(ix.byFile[snap.FileIDs[i]], id)
	}

	metrics.VectorIndexSize.Set(float64(len(ix.records)))
	logging.Info("Vector index: loaded %d records from %s", len(ix.records), path)
	return ix, nil
}

// Len returns the number of embedding records in the index.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.records)
}

// Dim returns the index dimension.
func (ix *Index) Dim() int {
	return ix.dim
}

// IDsForFile returns the embedding record ids owned by a file, sorted.
func (ix *Index) IDsForFile(fileID int64) []int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	ids := make([]int64, len(ix.byFile[fileID]))
	copy(ids, ix.byFile[fileID])
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ReplaceFile atomically replaces all vectors owned by fileID with the given
// set and persists the snapshot. Passing an empty map removes the file from
// the index. Vectors are normalized on insert so inner product search equals
// cosine similarity.
func (ix *Index) ReplaceFile(fileID int64, vectors map[int64][]float32) error {
	for id, vec := range vectors {
		if len(vec) != ix.dim {
			return fmt.Errorf("record %d has dimension %d, index wants %d: %w", id, len(vec), ix.dim, ErrDimensionMismatch)
		}
	}

	ix.mu.Lock()

	for _, id := range ix.byFile[fileID] {
		delete(ix.records, id)
	}
	delete(ix.byFile, fileID)

	for id, vec := range vectors {
		ix.records[id] = record{FileID: fileID, Vector: normalize(vec)}
		ix.byFile[fileID] = append(ix.byFile[fileID], id)
	}

	metrics.VectorIndexSize.Set(float64(len(ix.records)))
	snap := ix.snapshotLocked()
	ix.mu.Unlock()

	return ix.persist(snap)
}

// DeleteFile removes all vectors owned by fileID and persists the snapshot.
func (ix *Index) DeleteFile(fileID int64) error {
	return ix.ReplaceFile(fileID, nil)
}

// Search returns the topK nearest records to the query vector by cosine
// similarity, ordered by descending score with ties broken by ascending id.
// An empty index yields an empty result, not an error.
func (ix *Index) Search(query []float32, topK int) ([]Match, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query has dimension %d, index wants %d: %w", len(query), ix.dim, ErrDimensionMismatch)
	}
	if topK < 1 {
		return []Match{}, nil
	}

	start := time.Now()
	defer func() {
		metrics.VectorSearchDuration.Observe(time.Since(start).Seconds())
	}()

	q := normalize(query)

	ix.mu.RLock()
	matches := make([]Match, 0, len(ix.records))
	for id, rec := range ix.records {
		matches = append(matches, Match{ID: id, FileID: rec.FileID, Score: dot(q, rec.Vector)})
	}
	ix.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// snapshotLocked builds an on-disk snapshot. Caller must hold at least a
// read lock.
func (ix *Index) snapshotLocked() *snapshot {
	snap := &snapshot{
		Dim:     ix.dim,
		IDs:     make([]int64, 0, len(ix.records)),
		FileIDs: make([]int64, 0, len(ix.records)),
		Vectors: make([][]float32, 0, len(ix.records)),
	}
	for id, rec := range ix.records {
		snap.IDs = append(snap.IDs, id)
		snap.FileIDs = append(snap.FileIDs, rec.FileID)
		snap.Vectors = append(snap.Vectors, rec.Vector)
	}
	return snap
}

// persist writes the snapshot to a temp file and renames it into place so a
// crash mid-write never corrupts the index.
func (ix *Index) persist(snap *snapshot) error {
	tmp := fmt.Sprintf("%s.%d.tmp", ix.path, os.Getpid())

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create index temp file: %w", err)
	}

	if err := gob.NewEncoder(f).Encode(snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode vector index: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close index temp file: %w", err)
	}

	if err := os.Rename(tmp, ix.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace vector index: %w", err)
	}
	return nil
}

// Save persists the current contents. ReplaceFile and DeleteFile already
// persist on every call; Save exists for shutdown paths.
func (ix *Index) Save() error {
	ix.mu.RLock()
	snap := ix.snapshotLocked()
	ix.mu.RUnlock()
	return ix.persist(snap)
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	if norm == 0 {
		copy(out, vec)
		return out
	}
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
