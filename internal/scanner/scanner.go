package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"media-curator/internal/database"
	"media-curator/internal/extract"
	"media-curator/internal/logging"
	"media-curator/internal/media"
	"media-curator/internal/mediatypes"
	"media-curator/internal/metrics"
	"media-curator/internal/vectorindex"
	"media-curator/internal/workers"
)

// Config holds the scan pipeline settings.
type Config struct {
	// MediaDir is the library root to scan.
	MediaDir string

	// ExcludeDirs lists directory names skipped anywhere in the tree.
	ExcludeDirs []string

	// Workers is the extraction concurrency. Zero means size from the
	// available CPUs.
	Workers int
}

// Scanner walks the media library, runs feature extraction on new or
// changed files and keeps the metadata store and vector index in step.
// One scan runs at a time; Start rejects overlapping requests.
type Scanner struct {
	db        *database.Database
	index     *vectorindex.Index
	extractor extract.Extractor
	cfg       Config

	running atomic.Bool
	job     *jobState

	// Overridable for tests; default to ffprobe and image header decoding.
	probe      func(ctx context.Context, path string) (*extract.VideoInfo, error)
	dimensions func(path string) (int, int, error)
}

// New creates a Scanner over the given stores and extractor.
func New(db *database.Database, index *vectorindex.Index, extractor extract.Extractor, cfg Config) *Scanner {
	if cfg.Workers < 1 {
		cfg.Workers = workers.ForIO(8)
	}
	return &Scanner{
		db:         db,
		index:      index,
		extractor:  extractor,
		cfg:        cfg,
		job:        newJobState(),
		probe:      extract.ProbeVideo,
		dimensions: media.Dimensions,
	}
}

// Options tunes a single scan run.
type Options struct {
	// TargetPath overrides the configured media dir for this run.
	TargetPath string

	// Force reprocesses every file regardless of fingerprints.
	Force bool

	// ExcludeDirs adds run-specific exclusions on top of the configured
	// ones.
	ExcludeDirs []string
}

// Status returns the current scan job snapshot.
func (s *Scanner) Status() Status {
	return s.job.snapshot()
}

// resolveTarget validates the scan root before any job state changes.
func (s *Scanner) resolveTarget(opts Options) (string, error) {
	target := opts.TargetPath
	if target == "" {
		target = s.cfg.MediaDir
	}
	info, err := os.Stat(target)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidTarget, target)
	}
	return target, nil
}

// Start launches a scan in the background and returns its job id. Returns
// ErrScanInProgress when a scan is already running and ErrInvalidTarget
// when the target path is unusable, both before any filesystem work.
func (s *Scanner) Start(opts Options) (string, error) {
	target, err := s.resolveTarget(opts)
	if err != nil {
		return "", err
	}
	if !s.running.CompareAndSwap(false, true) {
		return "", ErrScanInProgress
	}

	jobID := uuid.NewString()
	s.job.begin(jobID)
	logging.Info("Scan %s starting (dir=%s, force=%v, workers=%d)", jobID, target, opts.Force, s.cfg.Workers)

	// The job outlives the HTTP request that started it.
	go s.run(context.Background(), jobID, target, opts)
	return jobID, nil
}

// Run performs a scan synchronously. Used by Start's background goroutine
// and by tests that need deterministic completion.
func (s *Scanner) Run(opts Options) (Status, error) {
	target, err := s.resolveTarget(opts)
	if err != nil {
		return s.job.snapshot(), err
	}
	if !s.running.CompareAndSwap(false, true) {
		return s.job.snapshot(), ErrScanInProgress
	}
	jobID := uuid.NewString()
	s.job.begin(jobID)
	s.run(context.Background(), jobID, target, opts)
	return s.job.snapshot(), nil
}

func (s *Scanner) run(ctx context.Context, jobID, target string, opts Options) {
	defer s.running.Store(false)

	start := time.Now()
	metrics.ScansTotal.Inc()
	metrics.ScanIsRunning.Set(1)
	defer func() {
		metrics.ScanIsRunning.Set(0)
		metrics.ScanLastRunTimestamp.SetToCurrentTime()
		metrics.ScanLastRunDuration.Set(time.Since(start).Seconds())
	}()

	paths, err := s.collectFiles(target, opts.ExcludeDirs)
	if err != nil {
		metrics.ScanErrors.Inc()
		logging.Error("Scan %s aborted during traversal: %v", jobID, err)
		s.job.fail(err)
		return
	}
	s.job.setTotal(len(paths))
	logging.Info("Scan %s found %d indexable files", jobID, len(paths))

	// A store failure aborts the job: the first one wins, the workers stop
	// picking up new files, and already-started files finish on their own.
	var jobErr error
	var jobErrOnce sync.Once
	var aborted atomic.Bool
	abort := func(err error) {
		jobErrOnce.Do(func() {
			jobErr = err
			aborted.Store(true)
		})
	}

	queue := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range queue {
				if aborted.Load() {
					continue
				}
				if err := s.processOne(ctx, path, opts.Force); err != nil {
					abort(err)
				}
			}
		}()
	}
	for _, path := range paths {
		if aborted.Load() {
			break
		}
		queue <- path
	}
	close(queue)
	wg.Wait()

	if jobErr != nil {
		metrics.ScanErrors.Inc()
		logging.Error("Scan %s aborted: %v", jobID, jobErr)
		s.job.fail(jobErr)
		return
	}

	if err := s.db.SetMetadata(ctx, "last_scanned", time.Now().UTC().Format(time.RFC3339)); err != nil {
		logging.Warn("Scan %s could not record completion time: %v", jobID, err)
	}

	s.job.complete()
	st := s.job.snapshot()
	logging.Info("Scan %s completed in %s: %d processed, %d skipped, %d failed",
		jobID, time.Since(start).Round(time.Millisecond), st.ProcessedCount, st.SkippedCount, st.FailedCount)
}

// collectFiles walks the target and returns every indexable file in
// deterministic lexical order. Hidden and excluded directories are pruned.
func (s *Scanner) collectFiles(target string, extraExcludes []string) ([]string, error) {
	excluded := make(map[string]bool, len(s.cfg.ExcludeDirs)+len(extraExcludes))
	for _, name := range s.cfg.ExcludeDirs {
		excluded[name] = true
	}
	for _, name := range extraExcludes {
		excluded[name] = true
	}

	var paths []string
	err := filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != target && (excluded[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if mediatypes.IsIndexable(filepath.Ext(path)) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", target, err)
	}
	return paths, nil
}

// storeError marks a failure of one of the stores themselves, as opposed
// to a failure extracting one file. Store failures abort the whole job;
// continuing would just record every remaining file as failed against a
// store that cannot accept writes.
type storeError struct {
	err error
}

func (e *storeError) Error() string { return e.err.Error() }
func (e *storeError) Unwrap() error { return e.err }

// processOne handles a single file end to end. Extraction failures are
// recorded against the file and never abort the scan; a returned error
// means the stores are failing and the job must stop.
func (s *Scanner) processOne(ctx context.Context, path string, force bool) error {
	s.job.fileStarted(path)
	start := time.Now()
	outcome := "processed"
	defer func() {
		s.job.fileDone(outcome, time.Since(start))
		metrics.ScanFilesProcessed.WithLabelValues(outcome).Inc()
	}()

	info, err := os.Stat(path)
	if err != nil {
		outcome = "failed"
		logging.Error("Failed to stat %s: %v", path, err)
		return nil
	}

	hash := ComputeFingerprint(path, info)
	if !force {
		fp, err := s.db.LookupFingerprint(ctx, path)
		if err != nil {
			logging.Warn("Fingerprint lookup failed for %s, reprocessing: %v", path, err)
		} else if fp != nil && fp.Hash == hash && fp.Processed {
			outcome = "skipped"
			logging.Debug("Skipping unchanged file %s", path)
			return nil
		}
	}

	if err := s.processFile(ctx, path, info, hash); err != nil {
		outcome = "failed"

		var se *storeError
		if errors.As(err, &se) {
			return err
		}
		logging.Error("Failed to process %s: %v", path, err)

		failed := &database.MediaFile{
			Path:      path,
			FileHash:  hash,
			MediaType: string(mediatypes.GetMediaType(filepath.Ext(path))),
			FileSize:  info.Size(),
			ModTime:   info.ModTime(),
		}
		if dbErr := s.db.MarkFailed(ctx, failed, err.Error()); dbErr != nil {
			return &storeError{fmt.Errorf("failed to record failure for %s: %w", path, dbErr)}
		}
		// MarkFailed dropped the file's segments; the prior generation's
		// vectors must leave the index too or the stores disagree on the
		// set of live ids.
		if idxErr := s.index.DeleteFile(failed.ID); idxErr != nil {
			return &storeError{fmt.Errorf("failed to drop vectors for %s: %w", path, idxErr)}
		}
	}
	return nil
}

// processFile runs extraction and commits results in the order that keeps
// the stores consistent across a crash at any point: metadata lands first
// with the file still pending, then vectors, then the processed flag.
func (s *Scanner) processFile(ctx context.Context, path string, info fs.FileInfo, hash string) error {
	mediaType := mediatypes.GetMediaType(filepath.Ext(path))
	file := &database.MediaFile{
		Path:      path,
		FileHash:  hash,
		MediaType: string(mediaType),
		FileSize:  info.Size(),
		ModTime:   info.ModTime(),
	}

	var segments []*database.Segment
	var vectors [][]float32

	addSegment := func(seg *database.Segment, vec []float32) {
		segments = append(segments, seg)
		vectors = append(vectors, vec)
	}

	// A failing modality never discards the others. The file still counts
	// as processed with whatever segments succeeded; the failure is kept
	// as a diagnostic note on the row. Only losing the visual embedding is
	// fatal, since a processed file must have at least one vector.
	var notes []string
	soft := func(modality string, err error) {
		notes = append(notes, fmt.Sprintf("%s: %v", modality, err))
		logging.Warn("Extractor %s failed for %s: %v", modality, path, err)
	}

	switch mediaType {
	case mediatypes.MediaTypeImage:
		if w, h, err := s.dimensions(path); err != nil {
			logging.Warn("Could not read dimensions of %s: %v", path, err)
		} else {
			file.Width, file.Height = w, h
		}

		vec, err := s.extractor.EmbedImage(ctx, path)
		if err != nil {
			return fmt.Errorf("image embedding failed: %w", err)
		}
		addSegment(&database.Segment{Kind: database.SegmentKindImage}, vec)

	case mediatypes.MediaTypeVideo:
		vi, err := s.probe(ctx, path)
		if err != nil {
			return fmt.Errorf("video probe failed: %w", err)
		}
		file.Width, file.Height = vi.Width, vi.Height
		file.Duration = vi.Duration

		vec, err := s.extractor.EmbedImage(ctx, path)
		if err != nil {
			return fmt.Errorf("video embedding failed: %w", err)
		}
		addSegment(&database.Segment{Kind: database.SegmentKindVideo, EndSec: vi.Duration}, vec)

		if descs, err := s.extractor.DescribeKeyframes(ctx, path); err != nil {
			soft("keyframe description", err)
		} else {
			for _, d := range descs {
				dv, err := s.extractor.EmbedText(ctx, d.Text)
				if err != nil {
					soft("keyframe embedding", err)
					break
				}
				addSegment(&database.Segment{
					Kind:     database.SegmentKindKeyframe,
					Text:     d.Text,
					StartSec: d.Timestamp,
					EndSec:   d.Timestamp,
				}, dv)
			}
		}

		if chunks, err := s.extractor.TranscribeSpeech(ctx, path); err != nil {
			soft("transcription", err)
		} else {
			for _, c := range chunks {
				cv, err := s.extractor.EmbedText(ctx, c.Text)
				if err != nil {
					soft("transcript embedding", err)
					break
				}
				addSegment(&database.Segment{
					Kind:     database.SegmentKindTranscript,
					Text:     c.Text,
					StartSec: c.Start,
					EndSec:   c.End,
				}, cv)
			}
		}

	default:
		return fmt.Errorf("unsupported media type for %s", path)
	}

	var tags []database.TagRecord
	if rawTags, err := s.extractor.TagImage(ctx, path); err != nil {
		soft("tagging", err)
	} else {
		tags = make([]database.TagRecord, 0, len(rawTags))
		for _, t := range rawTags {
			tags = append(tags, database.TagRecord{
				Category:   database.TagCategory(t.Category),
				Name:       t.Name,
				Confidence: t.Confidence,
			})
		}
	}

	file.ErrorMsg = strings.Join(notes, "; ")

	if err := s.db.ReplaceFileData(ctx, file, tags, segments); err != nil {
		return &storeError{fmt.Errorf("metadata write failed for %s: %w", path, err)}
	}

	byID := make(map[int64][]float32, len(segments))
	for i, seg := range segments {
		byID[seg.ID] = vectors[i]
	}
	if err := s.index.ReplaceFile(file.ID, byID); err != nil {
		return &storeError{fmt.Errorf("vector index write failed for %s: %w", path, err)}
	}

	if err := s.db.MarkProcessed(ctx, file.ID); err != nil {
		return &storeError{fmt.Errorf("promotion failed for %s: %w", path, err)}
	}
	return nil
}
