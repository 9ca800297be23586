package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// getOrCreateTag resolves a tag id inside a transaction, creating the tag
// lazily on first use. Tags are shared across files and never deleted here.
func getOrCreateTag(ctx context.Context, tx *sql.Tx, category TagCategory, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("tag name cannot be empty")
	}

	var tagID int64
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM tags WHERE category = ? AND name = ? COLLATE NOCASE",
		category, name,
	).Scan(&tagID)
	if err == nil {
		return tagID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("tag lookup failed: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO tags (category, name) VALUES (?, ?)",
		category, name,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create tag %q: %w", name, err)
	}
	return res.LastInsertId()
}

// attachTags loads tag names for a batch of files and splits them into the
// general/character/series slices the gallery expects.
func (d *Database) attachTags(ctx context.Context, files []*MediaFile) error {
	if len(files) == 0 {
		return nil
	}

	start := time.Now()

	ids := make([]int64, len(files))
	byID := make(map[int64]*MediaFile, len(files))
	for i, f := range files {
		ids[i] = f.ID
		byID[f.ID] = f
	}

	query := fmt.Sprintf(`
		SELECT ft.file_id, t.category, t.name
		FROM file_tags ft
		JOIN tags t ON t.id = ft.tag_id
		WHERE ft.file_id IN (%s)
		ORDER BY t.name`, placeholders(len(ids)))

	rows, err := d.db.QueryContext(ctx, query, int64Args(ids)...)
	recordQuery("attach_tags", start, err)
	if err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fileID int64
		var category TagCategory
		var name string
		if err := rows.Scan(&fileID, &category, &name); err != nil {
			return err
		}
		f, ok := byID[fileID]
		if !ok {
			continue
		}
		switch category {
		case TagCategoryCharacter:
			f.CharacterTags = append(f.CharacterTags, name)
		case TagCategorySeries:
			f.SeriesTags = append(f.SeriesTags, name)
		default:
			f.Tags = append(f.Tags, name)
		}
	}
	return rows.Err()
}

// DistinctTagNames returns the sorted distinct tag names of a category that
// are linked to at least one processed file. Used for gallery filter lists.
func (d *Database) DistinctTagNames(ctx context.Context, category TagCategory) ([]string, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT DISTINCT t.name
		FROM tags t
		JOIN file_tags ft ON ft.tag_id = t.id
		JOIN files f ON f.id = ft.file_id
		WHERE t.category = ? AND f.status = ?
		ORDER BY t.name`,
		category, StatusProcessed,
	)
	recordQuery("distinct_tag_names", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s tags: %w", category, err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
