package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"media-curator/internal/database"
	"media-curator/internal/extract"
	"media-curator/internal/vectorindex"
)

const testDim = 4

// fakeExtractor produces deterministic vectors and canned model output so
// the pipeline can be exercised without model services.
type fakeExtractor struct {
	failPaths     map[string]bool
	descs         []extract.FrameDescription
	transcript    []extract.TranscriptChunk
	transcribeErr error
	tagErr        error
	gate          chan struct{} // when set, EmbedImage blocks until closed
}

func vecFor(seed string) []float32 {
	v := make([]float32, testDim)
	for i, b := range []byte(seed) {
		v[i%testDim] += float32(b)
	}
	return v
}

func (f *fakeExtractor) TagImage(ctx context.Context, path string) ([]extract.Tag, error) {
	if f.tagErr != nil {
		return nil, f.tagErr
	}
	return []extract.Tag{
		{Category: "general", Name: "fake", Confidence: 0.9},
		{Category: "character", Name: "alice", Confidence: 0.8},
	}, nil
}

func (f *fakeExtractor) EmbedImage(ctx context.Context, path string) ([]float32, error) {
	if f.gate != nil {
		<-f.gate
	}
	if f.failPaths[filepath.Base(path)] {
		return nil, errors.New("model refused the image")
	}
	return vecFor(path), nil
}

func (f *fakeExtractor) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return vecFor(text), nil
}

func (f *fakeExtractor) DescribeKeyframes(ctx context.Context, path string) ([]extract.FrameDescription, error) {
	return f.descs, nil
}

func (f *fakeExtractor) TranscribeSpeech(ctx context.Context, path string) ([]extract.TranscriptChunk, error) {
	if f.transcribeErr != nil {
		return nil, f.transcribeErr
	}
	return f.transcript, nil
}

func (f *fakeExtractor) Dimension() int { return testDim }

type testEnv struct {
	db      *database.Database
	index   *vectorindex.Index
	scanner *Scanner
	fake    *fakeExtractor
	dir     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tmp := t.TempDir()
	db, err := database.New(context.Background(), filepath.Join(tmp, "library.db"))
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	index, err := vectorindex.Open(filepath.Join(tmp, "vectors.idx"), testDim)
	if err != nil {
		t.Fatalf("vectorindex.Open() error = %v", err)
	}

	mediaDir := filepath.Join(tmp, "media")
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		t.Fatal(err)
	}

	fake := &fakeExtractor{}
	sc := New(db, index, fake, Config{MediaDir: mediaDir, Workers: 1})
	sc.probe = func(ctx context.Context, path string) (*extract.VideoInfo, error) {
		return &extract.VideoInfo{Duration: 30, Width: 640, Height: 360, HasAudio: true}, nil
	}
	sc.dimensions = func(path string) (int, int, error) { return 800, 600, nil }

	return &testEnv{db: db, index: index, scanner: sc, fake: fake, dir: mediaDir}
}

func (e *testEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScanIndexesNewFiles(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.writeFile(t, "a.jpg", "image a")
	env.writeFile(t, "sub/b.png", "image b")

	status, err := env.scanner.Run(Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if status.Phase != PhaseCompleted {
		t.Errorf("phase = %q, want completed", status.Phase)
	}
	if status.ProcessedCount != 2 || status.FailedCount != 0 {
		t.Errorf("processed/failed = %d/%d, want 2/0", status.ProcessedCount, status.FailedCount)
	}
	if status.ProgressPercent != 100 {
		t.Errorf("progress = %f, want 100", status.ProgressPercent)
	}

	file, err := env.db.GetFileByPath(context.Background(), filepath.Join(env.dir, "a.jpg"))
	if err != nil {
		t.Fatalf("GetFileByPath() error = %v", err)
	}
	if file.Status != database.StatusProcessed {
		t.Errorf("file status = %q, want processed", file.Status)
	}
	if file.Width != 800 || file.Height != 600 {
		t.Errorf("dimensions = %dx%d, want 800x600", file.Width, file.Height)
	}
	if len(file.CharacterTags) != 1 || file.CharacterTags[0] != "alice" {
		t.Errorf("character tags = %v, want [alice]", file.CharacterTags)
	}
	if got := env.index.Len(); got != 2 {
		t.Errorf("index Len() = %d, want 2", got)
	}
}

func TestScanSkipsUnchangedFiles(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.writeFile(t, "a.jpg", "image a")
	env.writeFile(t, "b.jpg", "image b")

	if _, err := env.scanner.Run(Options{}); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	status, err := env.scanner.Run(Options{})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if status.ProcessedCount != 0 || status.SkippedCount != 2 {
		t.Errorf("processed/skipped = %d/%d, want 0/2", status.ProcessedCount, status.SkippedCount)
	}
}

func TestScanReprocessesModifiedFile(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	path := env.writeFile(t, "a.jpg", "image a")
	env.writeFile(t, "b.jpg", "image b")

	if _, err := env.scanner.Run(Options{}); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("image a, edited"), 0o644); err != nil {
		t.Fatal(err)
	}

	status, err := env.scanner.Run(Options{})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if status.ProcessedCount != 1 || status.SkippedCount != 1 {
		t.Errorf("processed/skipped = %d/%d, want 1/1", status.ProcessedCount, status.SkippedCount)
	}
}

func TestForceReprocessKeepsSingleGeneration(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	path := env.writeFile(t, "a.jpg", "image a")

	if _, err := env.scanner.Run(Options{}); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	status, err := env.scanner.Run(Options{Force: true})
	if err != nil {
		t.Fatalf("forced Run() error = %v", err)
	}
	if status.ProcessedCount != 1 || status.SkippedCount != 0 {
		t.Errorf("processed/skipped = %d/%d, want 1/0", status.ProcessedCount, status.SkippedCount)
	}

	ctx := context.Background()
	file, err := env.db.GetFileByPath(ctx, path)
	if err != nil {
		t.Fatalf("GetFileByPath() error = %v", err)
	}
	segIDs, err := env.db.SegmentIDsForFile(ctx, file.ID)
	if err != nil {
		t.Fatalf("SegmentIDsForFile() error = %v", err)
	}
	if len(segIDs) != 1 {
		t.Errorf("segments after reprocess = %d, want 1", len(segIDs))
	}
	if got := env.index.Len(); got != 1 {
		t.Errorf("index Len() = %d, want 1", got)
	}
	if ids := env.index.IDsForFile(file.ID); len(ids) != 1 || ids[0] != segIDs[0] {
		t.Errorf("index ids = %v, want %v", ids, segIDs)
	}
}

func TestScanFailuresDoNotAbortJob(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	for i := 0; i < 9; i++ {
		env.writeFile(t, fmt.Sprintf("ok%d.jpg", i), fmt.Sprintf("image %d", i))
	}
	broken := env.writeFile(t, "broken.jpg", "bad image")
	env.fake.failPaths = map[string]bool{"broken.jpg": true}

	status, err := env.scanner.Run(Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if status.Phase != PhaseCompleted {
		t.Errorf("phase = %q, want completed", status.Phase)
	}
	if status.ProcessedCount != 9 || status.FailedCount != 1 {
		t.Errorf("processed/failed = %d/%d, want 9/1", status.ProcessedCount, status.FailedCount)
	}

	file, err := env.db.GetFileByPath(context.Background(), broken)
	if err != nil {
		t.Fatalf("GetFileByPath() error = %v", err)
	}
	if file.Status != database.StatusFailed {
		t.Errorf("failed file status = %q, want failed", file.Status)
	}
	if got := env.index.Len(); got != 9 {
		t.Errorf("index Len() = %d, want 9", got)
	}
}

func TestFailedReprocessDropsVectors(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	path := env.writeFile(t, "a.jpg", "image a")

	if _, err := env.scanner.Run(Options{}); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if got := env.index.Len(); got != 1 {
		t.Fatalf("index Len() after first scan = %d, want 1", got)
	}

	if err := os.WriteFile(path, []byte("image a, edited"), 0o644); err != nil {
		t.Fatal(err)
	}
	env.fake.failPaths = map[string]bool{"a.jpg": true}

	status, err := env.scanner.Run(Options{})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if status.FailedCount != 1 {
		t.Fatalf("failed = %d, want 1", status.FailedCount)
	}

	ctx := context.Background()
	file, err := env.db.GetFileByPath(ctx, path)
	if err != nil {
		t.Fatalf("GetFileByPath() error = %v", err)
	}
	if file.Status != database.StatusFailed {
		t.Errorf("status = %q, want failed", file.Status)
	}

	// A failed file owns no segments, so it must own no vectors either.
	segIDs, err := env.db.SegmentIDsForFile(ctx, file.ID)
	if err != nil {
		t.Fatalf("SegmentIDsForFile() error = %v", err)
	}
	if len(segIDs) != 0 {
		t.Errorf("segments = %d, want 0", len(segIDs))
	}
	if ids := env.index.IDsForFile(file.ID); len(ids) != 0 {
		t.Errorf("index still holds vectors %v for failed file", ids)
	}
	if got := env.index.Len(); got != 0 {
		t.Errorf("index Len() = %d, want 0", got)
	}
}

func TestStoreOutageFailsJob(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.writeFile(t, "a.jpg", "image a")
	env.writeFile(t, "b.jpg", "image b")
	env.writeFile(t, "c.jpg", "image c")

	// Simulate the metadata store going away before the scan runs.
	if err := env.db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	status, err := env.scanner.Run(Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if status.Phase != PhaseError {
		t.Errorf("phase = %q, want error", status.Phase)
	}
	if status.Error == "" {
		t.Error("expected a job-level error message")
	}
	if status.IsActive {
		t.Error("job still reports active after store failure")
	}
}

func TestScanEmptyFolder(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	status, err := env.scanner.Run(Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if status.Phase != PhaseCompleted {
		t.Errorf("phase = %q, want completed", status.Phase)
	}
	if status.TotalFiles != 0 {
		t.Errorf("total = %d, want 0", status.TotalFiles)
	}
	if status.ProgressPercent != 100 {
		t.Errorf("progress = %f, want 100", status.ProgressPercent)
	}
}

func TestScanSkipsExcludedAndHiddenDirs(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.scanner.cfg.ExcludeDirs = []string{"trash"}
	env.writeFile(t, "keep.jpg", "keep")
	env.writeFile(t, "trash/skip.jpg", "skip")
	env.writeFile(t, ".hidden/skip.jpg", "skip")
	env.writeFile(t, "notes.txt", "not media")

	status, err := env.scanner.Run(Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if status.TotalFiles != 1 || status.ProcessedCount != 1 {
		t.Errorf("total/processed = %d/%d, want 1/1", status.TotalFiles, status.ProcessedCount)
	}
}

func TestScanVideoProducesSegments(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	path := env.writeFile(t, "clip.mp4", "fake video bytes")
	env.fake.descs = []extract.FrameDescription{
		{Timestamp: 10, Text: "a boat on a lake"},
		{Timestamp: 20, Text: "people waving from the shore"},
	}
	env.fake.transcript = []extract.TranscriptChunk{
		{Start: 0, End: 4, Text: "welcome aboard"},
	}

	status, err := env.scanner.Run(Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if status.ProcessedCount != 1 {
		t.Fatalf("processed = %d, want 1", status.ProcessedCount)
	}

	ctx := context.Background()
	file, err := env.db.GetFileByPath(ctx, path)
	if err != nil {
		t.Fatalf("GetFileByPath() error = %v", err)
	}
	if file.MediaType != "video" || file.Duration != 30 {
		t.Errorf("file = %+v, want video with duration 30", file)
	}

	segIDs, err := env.db.SegmentIDsForFile(ctx, file.ID)
	if err != nil {
		t.Fatalf("SegmentIDsForFile() error = %v", err)
	}
	segs, err := env.db.GetSegmentsByIDs(ctx, segIDs)
	if err != nil {
		t.Fatalf("GetSegmentsByIDs() error = %v", err)
	}
	kinds := map[database.SegmentKind]int{}
	for _, seg := range segs {
		kinds[seg.Kind]++
	}
	if kinds[database.SegmentKindVideo] != 1 || kinds[database.SegmentKindKeyframe] != 2 || kinds[database.SegmentKindTranscript] != 1 {
		t.Errorf("segment kinds = %v, want 1 video, 2 keyframe, 1 transcript", kinds)
	}
	if got := env.index.Len(); got != 4 {
		t.Errorf("index Len() = %d, want 4", got)
	}
}

func TestScanRejectsInvalidTarget(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.writeFile(t, "a.jpg", "image a")

	if _, err := env.scanner.Run(Options{TargetPath: filepath.Join(env.dir, "nope")}); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("missing target error = %v, want ErrInvalidTarget", err)
	}
	if _, err := env.scanner.Run(Options{TargetPath: filepath.Join(env.dir, "a.jpg")}); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("file target error = %v, want ErrInvalidTarget", err)
	}
	if st := env.scanner.Status(); st.Phase != PhaseIdle {
		t.Errorf("phase = %q, want idle after rejected starts", st.Phase)
	}
}

func TestScanTargetAndExcludeOverrides(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.writeFile(t, "outside.jpg", "ignored")
	sub := filepath.Dir(env.writeFile(t, "inner/keep.jpg", "keep"))
	env.writeFile(t, "inner/junk/skip.jpg", "skip")

	status, err := env.scanner.Run(Options{TargetPath: sub, ExcludeDirs: []string{"junk"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if status.TotalFiles != 1 || status.ProcessedCount != 1 {
		t.Errorf("total/processed = %d/%d, want 1/1", status.TotalFiles, status.ProcessedCount)
	}
}

func TestPartialExtractionStillProcesses(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	path := env.writeFile(t, "clip.mp4", "fake video bytes")
	env.fake.descs = []extract.FrameDescription{{Timestamp: 10, Text: "a boat on a lake"}}
	env.fake.transcribeErr = errors.New("whisper unavailable")
	env.fake.tagErr = errors.New("tagger unavailable")

	status, err := env.scanner.Run(Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if status.ProcessedCount != 1 || status.FailedCount != 0 {
		t.Fatalf("processed/failed = %d/%d, want 1/0", status.ProcessedCount, status.FailedCount)
	}

	ctx := context.Background()
	file, err := env.db.GetFileByPath(ctx, path)
	if err != nil {
		t.Fatalf("GetFileByPath() error = %v", err)
	}
	if file.Status != database.StatusProcessed {
		t.Errorf("status = %q, want processed despite modality failures", file.Status)
	}
	if file.ErrorMsg == "" {
		t.Error("expected a diagnostic note on the file")
	}
	if len(file.Tags) != 0 {
		t.Errorf("tags = %v, want none", file.Tags)
	}

	segIDs, err := env.db.SegmentIDsForFile(ctx, file.ID)
	if err != nil {
		t.Fatalf("SegmentIDsForFile() error = %v", err)
	}
	if len(segIDs) != 2 {
		t.Errorf("segments = %d, want video + keyframe only", len(segIDs))
	}
	if got := env.index.Len(); got != 2 {
		t.Errorf("index Len() = %d, want 2", got)
	}
}

func TestStartRejectsConcurrentScan(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.writeFile(t, "a.jpg", "image a")
	env.fake.gate = make(chan struct{})

	jobID, err := env.scanner.Start(Options{})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if jobID == "" {
		t.Error("Start() returned empty job id")
	}

	if _, err := env.scanner.Start(Options{}); !errors.Is(err, ErrScanInProgress) {
		t.Errorf("second Start() error = %v, want ErrScanInProgress", err)
	}

	close(env.fake.gate)
	deadline := time.After(5 * time.Second)
	for env.scanner.Status().IsActive {
		select {
		case <-deadline:
			t.Fatal("scan did not finish")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if st := env.scanner.Status(); st.Phase != PhaseCompleted {
		t.Errorf("phase = %q, want completed", st.Phase)
	}
}
