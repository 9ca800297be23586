package database

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ListOptions selects a page of the gallery browse path.
type ListOptions struct {
	Limit     int
	Offset    int
	Character string
	Series    string
	Tag       string
	MediaType string
}

// ListMedia returns processed files matching the filters, ordered by
// ingestion time descending (newest first), then id descending for a stable
// order within the same second. This is the non-semantic browse path and is
// independent of the vector index.
func (d *Database) ListMedia(ctx context.Context, opts ListOptions) ([]*MediaFile, error) {
	start := time.Now()

	if opts.Limit < 1 {
		opts.Limit = 50
	}
	if opts.Limit > 500 {
		opts.Limit = 500
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	where := []string{"f.status = ?"}
	args := []any{StatusProcessed}

	addTagFilter := func(category TagCategory, name string) {
		where = append(where, `EXISTS (
			SELECT 1 FROM file_tags ft JOIN tags t ON t.id = ft.tag_id
			WHERE ft.file_id = f.id AND t.category = ? AND t.name = ? COLLATE NOCASE)`)
		args = append(args, category, name)
	}

	if opts.Character != "" && opts.Character != "All" {
		addTagFilter(TagCategoryCharacter, opts.Character)
	}
	if opts.Series != "" && opts.Series != "All" {
		addTagFilter(TagCategorySeries, opts.Series)
	}
	if opts.Tag != "" {
		addTagFilter(TagCategoryGeneral, opts.Tag)
	}
	if opts.MediaType != "" {
		where = append(where, "f.media_type = ?")
		args = append(args, opts.MediaType)
	}

	query := "SELECT " + fileColumns + " FROM files f WHERE " + strings.Join(where, " AND ") +
		" ORDER BY f.ingested_at DESC, f.id DESC LIMIT ? OFFSET ?"
	args = append(args, opts.Limit, opts.Offset)

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, query, args...)
	recordQuery("list_media", start, err)
	if err != nil {
		return nil, fmt.Errorf("list query failed: %w", err)
	}
	defer rows.Close()

	files := []*MediaFile{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := d.attachTags(ctx, files); err != nil {
		return nil, err
	}
	return files, nil
}

// CalculateStats computes library-wide counts.
func (d *Database) CalculateStats(ctx context.Context) (*LibraryStats, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats LibraryStats
	err := d.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN media_type = 'image' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN media_type = 'video' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'processed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM files`).Scan(
		&stats.TotalFiles, &stats.TotalImages, &stats.TotalVideos,
		&stats.ProcessedFiles, &stats.FailedFiles,
	)
	if err != nil {
		recordQuery("calculate_stats", start, err)
		return nil, fmt.Errorf("stats query failed: %w", err)
	}

	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM segments").Scan(&stats.TotalSegments); err != nil {
		recordQuery("calculate_stats", start, err)
		return nil, err
	}
	err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tags").Scan(&stats.TotalTags)
	recordQuery("calculate_stats", start, err)
	if err != nil {
		return nil, err
	}

	if lastScanned, err := d.GetMetadata(ctx, "last_scanned"); err == nil && lastScanned != "" {
		if t, perr := time.Parse(time.RFC3339, lastScanned); perr == nil {
			stats.LastScanned = t
		}
	}

	return &stats, nil
}
