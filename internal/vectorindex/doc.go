// Package vectorindex provides the nearest-neighbor search structure for
// semantic retrieval.
//
// The index is a flat inner-product scan over L2-normalized vectors, which
// for a local single-process library of tens of thousands of embeddings is
// faster than the constant factors of an approximate structure and has no
// external dependencies. Records are keyed by embedding record id (the
// owning segment's row id in the metadata store) and grouped by media file
// id so a reprocessed file's whole generation can be swapped in one call.
//
// Every mutation persists a full snapshot via temp-file + rename, keeping
// the on-disk index readable after a crash at any point.
package vectorindex
