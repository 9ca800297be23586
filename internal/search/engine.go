package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"media-curator/internal/database"
	"media-curator/internal/logging"
	"media-curator/internal/metrics"
	"media-curator/internal/vectorindex"
)

// ErrEmptyQuery is returned when the query text is blank.
var ErrEmptyQuery = errors.New("search query is empty")

const (
	// DefaultTopK is the result count when the caller does not ask for one.
	DefaultTopK = 12
	// MaxTopK caps the result count per search.
	MaxTopK = 100

	// fetchMultiplier oversamples the index so per-file deduplication
	// still yields topK distinct files.
	fetchMultiplier = 8
)

// TextEmbedder encodes query text into the library's embedding space.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Result is one ranked search hit. Snippet carries the text of the
// best-matching described keyframe or transcript chunk when one matched,
// with StartSec pointing at its position in the video.
type Result struct {
	File     *database.MediaFile `json:"file"`
	Score    float32             `json:"score"`
	Snippet  string              `json:"snippet,omitempty"`
	StartSec float64             `json:"start_sec,omitempty"`
}

// Engine answers natural-language queries against the vector index and
// hydrates results from the metadata store.
type Engine struct {
	db       *database.Database
	index    *vectorindex.Index
	embedder TextEmbedder
}

// New creates a search engine over the given stores and embedder.
func New(db *database.Database, index *vectorindex.Index, embedder TextEmbedder) *Engine {
	return &Engine{db: db, index: index, embedder: embedder}
}

// Search embeds the query, finds the nearest segments and returns one
// result per file ranked by its best segment score. An empty library
// yields an empty result set.
func (e *Engine) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK < 1 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	metrics.SemanticSearchesTotal.Inc()

	vec, err := e.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	matches, err := e.index.Search(vec, topK*fetchMultiplier)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return []Result{}, nil
	}

	// Group matches by file, preserving rank order. The first match seen
	// for a file is its best score.
	byFile := make(map[int64][]vectorindex.Match)
	var fileOrder []int64
	for _, m := range matches {
		if _, seen := byFile[m.FileID]; !seen {
			fileOrder = append(fileOrder, m.FileID)
		}
		byFile[m.FileID] = append(byFile[m.FileID], m)
	}
	if len(fileOrder) > topK {
		fileOrder = fileOrder[:topK]
	}

	var segIDs []int64
	for _, fileID := range fileOrder {
		for _, m := range byFile[fileID] {
			segIDs = append(segIDs, m.ID)
		}
	}
	segByID, err := e.db.GetSegmentsByIDs(ctx, segIDs)
	if err != nil {
		return nil, err
	}

	fileByID, err := e.db.GetFilesByIDs(ctx, fileOrder)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(fileOrder))
	for _, fileID := range fileOrder {
		file := fileByID[fileID]
		if file == nil {
			// The index can briefly hold a file the metadata store no
			// longer has mid-reprocess.
			logging.Debug("Search dropping unknown file id %d", fileID)
			continue
		}
		if file.Status != database.StatusProcessed {
			continue
		}

		fileMatches := byFile[fileID]
		res := Result{File: file, Score: fileMatches[0].Score}

		// The snippet is the text of the winning record itself. A win on
		// the image or video-level embedding carries no snippet, even if a
		// text segment of the same file matched further down.
		if seg := segByID[fileMatches[0].ID]; seg != nil && seg.HasText() {
			res.Snippet = seg.Text
			res.StartSec = seg.StartSec
		}
		results = append(results, res)
	}
	return results, nil
}
