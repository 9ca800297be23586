package vectorindex

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func newTestIndex(t *testing.T, dim int) *Index {
	t.Helper()
	ix, err := Open(filepath.Join(t.TempDir(), "vectors.idx"), dim)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return ix
}

func TestSearchEmptyIndex(t *testing.T) {
	t.Parallel()
	ix := newTestIndex(t, 4)

	matches, err := ix.Search([]float32{1, 0, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("Search() on empty index returned %d matches, want 0", len(matches))
	}
}

func TestExactMatchIsTopResult(t *testing.T) {
	t.Parallel()
	ix := newTestIndex(t, 3)

	vectors := map[int64][]float32{
		1: {1, 0, 0},
		2: {0, 1, 0},
		3: {0.5, 0.5, 0},
	}
	if err := ix.ReplaceFile(10, vectors); err != nil {
		t.Fatalf("ReplaceFile() error = %v", err)
	}

	matches, err := ix.Search([]float32{0, 1, 0}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}
	if matches[0].ID != 2 {
		t.Errorf("top match id = %d, want 2", matches[0].ID)
	}
	if math.Abs(float64(matches[0].Score)-1.0) > 1e-5 {
		t.Errorf("top match score = %f, want ~1.0", matches[0].Score)
	}
}

func TestSearchNormalizesQuery(t *testing.T) {
	t.Parallel()
	ix := newTestIndex(t, 2)

	if err := ix.ReplaceFile(1, map[int64][]float32{1: {3, 4}}); err != nil {
		t.Fatalf("ReplaceFile() error = %v", err)
	}

	// Scaled copies of the same direction must score identically.
	m1, err := ix.Search([]float32{3, 4}, 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	m2, err := ix.Search([]float32{30, 40}, 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if math.Abs(float64(m1[0].Score-m2[0].Score)) > 1e-6 {
		t.Errorf("scores differ for scaled queries: %f vs %f", m1[0].Score, m2[0].Score)
	}
	if math.Abs(float64(m1[0].Score)-1.0) > 1e-5 {
		t.Errorf("self-match score = %f, want ~1.0", m1[0].Score)
	}
}

func TestSearchTiesBrokenByID(t *testing.T) {
	t.Parallel()
	ix := newTestIndex(t, 2)

	// Two identical vectors under different ids.
	if err := ix.ReplaceFile(1, map[int64][]float32{7: {1, 0}, 3: {1, 0}}); err != nil {
		t.Fatalf("ReplaceFile() error = %v", err)
	}

	matches, err := ix.Search([]float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if matches[0].ID != 3 || matches[1].ID != 7 {
		t.Errorf("tie order = [%d %d], want [3 7]", matches[0].ID, matches[1].ID)
	}
}

func TestReplaceFileRemovesOldGeneration(t *testing.T) {
	t.Parallel()
	ix := newTestIndex(t, 2)

	if err := ix.ReplaceFile(5, map[int64][]float32{1: {1, 0}, 2: {0, 1}}); err != nil {
		t.Fatalf("ReplaceFile() gen1 error = %v", err)
	}
	if err := ix.ReplaceFile(5, map[int64][]float32{9: {1, 1}}); err != nil {
		t.Fatalf("ReplaceFile() gen2 error = %v", err)
	}

	if got := ix.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
	ids := ix.IDsForFile(5)
	if len(ids) != 1 || ids[0] != 9 {
		t.Errorf("IDsForFile(5) = %v, want [9]", ids)
	}
}

func TestDeleteFile(t *testing.T) {
	t.Parallel()
	ix := newTestIndex(t, 2)

	if err := ix.ReplaceFile(5, map[int64][]float32{1: {1, 0}}); err != nil {
		t.Fatalf("ReplaceFile() error = %v", err)
	}
	if err := ix.DeleteFile(5); err != nil {
		t.Fatalf("DeleteFile() error = %v", err)
	}
	if got := ix.Len(); got != 0 {
		t.Errorf("Len() = %d after delete, want 0", got)
	}
	if ids := ix.IDsForFile(5); len(ids) != 0 {
		t.Errorf("IDsForFile(5) = %v after delete, want empty", ids)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vectors.idx")
	ix, err := Open(path, 3)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := ix.ReplaceFile(1, map[int64][]float32{11: {1, 0, 0}}); err != nil {
		t.Fatalf("ReplaceFile() error = %v", err)
	}
	if err := ix.ReplaceFile(2, map[int64][]float32{21: {0, 1, 0}, 22: {0, 0, 1}}); err != nil {
		t.Fatalf("ReplaceFile() error = %v", err)
	}

	reopened, err := Open(path, 3)
	if err != nil {
		t.Fatalf("Open() after persist error = %v", err)
	}
	if got := reopened.Len(); got != 3 {
		t.Fatalf("reopened Len() = %d, want 3", got)
	}

	matches, err := reopened.Search([]float32{0, 1, 0}, 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if matches[0].ID != 21 || matches[0].FileID != 2 {
		t.Errorf("top match = %+v, want id 21 file 2", matches[0])
	}
}

func TestOpenDimensionMismatch(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vectors.idx")
	ix, err := Open(path, 4)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := ix.ReplaceFile(1, map[int64][]float32{1: {1, 0, 0, 0}}); err != nil {
		t.Fatalf("ReplaceFile() error = %v", err)
	}

	_, err = Open(path, 8)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Open() with wrong dim error = %v, want ErrDimensionMismatch", err)
	}
}

func TestDimensionChecks(t *testing.T) {
	t.Parallel()
	ix := newTestIndex(t, 3)

	if err := ix.ReplaceFile(1, map[int64][]float32{1: {1, 0}}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("ReplaceFile() short vector error = %v, want ErrDimensionMismatch", err)
	}
	if _, err := ix.Search([]float32{1, 0}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Search() short query error = %v, want ErrDimensionMismatch", err)
	}
}
