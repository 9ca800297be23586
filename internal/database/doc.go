// Package database provides the SQLite metadata store for the media curator.
//
// It holds one row per physical media file plus the derived data the
// extraction pipeline produces:
//   - Tags, namespaced by category (general, character, series)
//   - Segments (whole-image, whole-video, keyframe descriptions, transcript
//     chunks) whose row ids double as embedding record ids in the vector index
//   - Fingerprints (path + content hash) for change detection
//
// The database uses WAL mode so gallery and search reads stay unblocked
// while a scan commits. Replacing a file's derived data happens in a single
// transaction (delete-then-insert), and a file only reaches status
// 'processed' after its vectors are persisted in the vector index.
package database
