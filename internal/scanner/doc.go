// Package scanner implements the background indexing job: walking the
// media library, fingerprinting files to skip unchanged ones, running
// feature extraction and committing results to the metadata store and
// vector index.
//
// Commits follow a fixed order so a crash at any point leaves the stores
// consistent: metadata first with the file still pending, vectors second,
// the processed flag last. A file only counts as indexed once the flag is
// set, so a half-committed file is simply reprocessed on the next scan.
//
// One scan runs at a time. Progress, counts and a smoothed ETA are
// published through Status without blocking extraction work.
package scanner
