package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// LookupFingerprint reports what the store knows about a path. Returns nil
// when the path has never been seen.
func (d *Database) LookupFingerprint(ctx context.Context, path string) (*Fingerprint, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var fp Fingerprint
	var status FileStatus
	err := d.db.QueryRowContext(ctx,
		"SELECT id, file_hash, status FROM files WHERE path = ?",
		path,
	).Scan(&fp.FileID, &fp.Hash, &status)

	if errors.Is(err, sql.ErrNoRows) {
		recordQuery("lookup_fingerprint", start, nil)
		return nil, nil
	}
	recordQuery("lookup_fingerprint", start, err)
	if err != nil {
		return nil, fmt.Errorf("fingerprint lookup failed: %w", err)
	}

	fp.Processed = status == StatusProcessed
	return &fp, nil
}

// ReplaceFileData writes one complete generation of derived data for a file
// in a single transaction: the file row is upserted with status 'pending',
// all prior segments and tag links are deleted, and the new ones inserted.
// Segment ids are filled in on the passed segments; the caller pushes those
// ids into the vector index and then promotes the file with MarkProcessed.
//
// Delete-then-insert (not merge) is deliberate: a reprocessed file must
// never retain segments from a previous generation.
//
// file.ErrorMsg, when set, is stored as a diagnostic note. This carries
// partial-extraction failures on files that still end up processed.
func (d *Database) ReplaceFileData(ctx context.Context, file *MediaFile, tags []TagRecord, segments []*Segment) error {
	start := time.Now()

	var errMsg sql.NullString
	if file.ErrorMsg != "" {
		errMsg = sql.NullString{String: file.ErrorMsg, Valid: true}
	}

	err := d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO files (path, file_hash, media_type, file_size, width, height, duration, mod_time, status, error_msg)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				file_hash = excluded.file_hash,
				media_type = excluded.media_type,
				file_size = excluded.file_size,
				width = excluded.width,
				height = excluded.height,
				duration = excluded.duration,
				mod_time = excluded.mod_time,
				status = excluded.status,
				error_msg = excluded.error_msg`,
			file.Path, file.FileHash, file.MediaType, file.FileSize,
			file.Width, file.Height, file.Duration, file.ModTime.Unix(),
			StatusPending, errMsg,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert file: %w", err)
		}

		fileID, err := res.LastInsertId()
		if err != nil || fileID == 0 {
			// Upsert on an existing row does not report the id; fetch it.
			if err := tx.QueryRowContext(ctx, "SELECT id FROM files WHERE path = ?", file.Path).Scan(&fileID); err != nil {
				return fmt.Errorf("failed to resolve file id: %w", err)
			}
		}
		file.ID = fileID

		if _, err := tx.ExecContext(ctx, "DELETE FROM segments WHERE file_id = ?", fileID); err != nil {
			return fmt.Errorf("failed to delete prior segments: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM file_tags WHERE file_id = ?", fileID); err != nil {
			return fmt.Errorf("failed to delete prior tag links: %w", err)
		}

		for _, tag := range tags {
			tagID, err := getOrCreateTag(ctx, tx, tag.Category, tag.Name)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO file_tags (file_id, tag_id, confidence) VALUES (?, ?, ?)",
				fileID, tagID, tag.Confidence,
			); err != nil {
				return fmt.Errorf("failed to link tag %q: %w", tag.Name, err)
			}
		}

		for _, seg := range segments {
			res, err := tx.ExecContext(ctx,
				"INSERT INTO segments (file_id, kind, text, start_sec, end_sec) VALUES (?, ?, ?, ?, ?)",
				fileID, seg.Kind, seg.Text, seg.StartSec, seg.EndSec,
			)
			if err != nil {
				return fmt.Errorf("failed to insert segment: %w", err)
			}
			seg.ID, err = res.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to read segment id: %w", err)
			}
			seg.FileID = fileID
		}

		return nil
	})

	recordQuery("replace_file_data", start, err)
	return err
}

// MarkProcessed promotes a file to 'processed' once its vectors are safely
// in the index. This is the commit point of the per-file replace discipline.
// Any diagnostic note written by ReplaceFileData is kept.
func (d *Database) MarkProcessed(ctx context.Context, fileID int64) error {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx,
		"UPDATE files SET status = ? WHERE id = ?",
		StatusProcessed, fileID,
	)
	recordQuery("mark_processed", start, err)
	return err
}

// MarkFailed records a per-file failure. The row is upserted so failures on
// first encounter are visible too; any prior derived data for the path is
// removed since it no longer reflects the file's content.
func (d *Database) MarkFailed(ctx context.Context, file *MediaFile, errMsg string) error {
	start := time.Now()

	err := d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO files (path, file_hash, media_type, file_size, mod_time, status, error_msg)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				file_hash = excluded.file_hash,
				status = excluded.status,
				error_msg = excluded.error_msg`,
			file.Path, file.FileHash, file.MediaType, file.FileSize,
			file.ModTime.Unix(), StatusFailed, errMsg,
		)
		if err != nil {
			return fmt.Errorf("failed to record failure: %w", err)
		}

		fileID, err := res.LastInsertId()
		if err != nil || fileID == 0 {
			if err := tx.QueryRowContext(ctx, "SELECT id FROM files WHERE path = ?", file.Path).Scan(&fileID); err != nil {
				return fmt.Errorf("failed to resolve file id: %w", err)
			}
		}
		file.ID = fileID

		_, err = tx.ExecContext(ctx, "DELETE FROM segments WHERE file_id = ?", fileID)
		return err
	})

	recordQuery("mark_failed", start, err)
	return err
}

const fileColumns = "id, path, file_hash, media_type, file_size, width, height, duration, mod_time, ingested_at, status, COALESCE(error_msg, '')"

func scanFile(row interface{ Scan(...any) error }) (*MediaFile, error) {
	var f MediaFile
	var modTime, ingestedAt int64
	err := row.Scan(&f.ID, &f.Path, &f.FileHash, &f.MediaType, &f.FileSize,
		&f.Width, &f.Height, &f.Duration, &modTime, &ingestedAt, &f.Status, &f.ErrorMsg)
	if err != nil {
		return nil, err
	}
	f.ModTime = time.Unix(modTime, 0)
	f.IngestedAt = time.Unix(ingestedAt, 0)
	f.Tags = []string{}
	f.CharacterTags = []string{}
	f.SeriesTags = []string{}
	return &f, nil
}

// GetFileByID retrieves a single file by id, with tags loaded.
func (d *Database) GetFileByID(ctx context.Context, id int64) (*MediaFile, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, "SELECT "+fileColumns+" FROM files WHERE id = ?", id)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		recordQuery("get_file_by_id", start, nil)
		return nil, ErrNotFound
	}
	recordQuery("get_file_by_id", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get file %d: %w", id, err)
	}

	if err := d.attachTags(ctx, []*MediaFile{f}); err != nil {
		return nil, err
	}
	return f, nil
}

// GetFileByPath retrieves a single file by its absolute path, with tags loaded.
func (d *Database) GetFileByPath(ctx context.Context, path string) (*MediaFile, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, "SELECT "+fileColumns+" FROM files WHERE path = ?", path)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		recordQuery("get_file_by_path", start, nil)
		return nil, ErrNotFound
	}
	recordQuery("get_file_by_path", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", path, err)
	}

	if err := d.attachTags(ctx, []*MediaFile{f}); err != nil {
		return nil, err
	}
	return f, nil
}

// GetFilesByIDs retrieves multiple files by id, with tags loaded.
// Missing ids are silently absent from the result map.
func (d *Database) GetFilesByIDs(ctx context.Context, ids []int64) (map[int64]*MediaFile, error) {
	if len(ids) == 0 {
		return map[int64]*MediaFile{}, nil
	}

	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM files WHERE id IN (%s)", fileColumns, placeholders(len(ids)))
	rows, err := d.db.QueryContext(ctx, query, int64Args(ids)...)
	recordQuery("get_files_by_ids", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get files: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]*MediaFile, len(ids))
	files := make([]*MediaFile, 0, len(ids))
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result[f.ID] = f
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := d.attachTags(ctx, files); err != nil {
		return nil, err
	}
	return result, nil
}

// GetSegmentsByIDs retrieves segments by id.
func (d *Database) GetSegmentsByIDs(ctx context.Context, ids []int64) (map[int64]*Segment, error) {
	if len(ids) == 0 {
		return map[int64]*Segment{}, nil
	}

	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := fmt.Sprintf(
		"SELECT id, file_id, kind, text, start_sec, end_sec FROM segments WHERE id IN (%s)",
		placeholders(len(ids)),
	)
	rows, err := d.db.QueryContext(ctx, query, int64Args(ids)...)
	recordQuery("get_segments_by_ids", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get segments: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]*Segment, len(ids))
	for rows.Next() {
		var s Segment
		if err := rows.Scan(&s.ID, &s.FileID, &s.Kind, &s.Text, &s.StartSec, &s.EndSec); err != nil {
			return nil, err
		}
		result[s.ID] = &s
	}
	return result, rows.Err()
}

// SegmentIDsForFile returns the ids of all segments owned by a file.
func (d *Database) SegmentIDsForFile(ctx context.Context, fileID int64) ([]int64, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT id FROM segments WHERE file_id = ? ORDER BY id", fileID)
	recordQuery("segment_ids_for_file", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// placeholders returns "?, ?, ..." with n entries.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
