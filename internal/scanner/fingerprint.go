package scanner

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"media-curator/internal/logging"
)

// fingerprintChunkSize is how much of each end of a file goes into the
// fingerprint. Hashing the edges instead of the whole file keeps rescans
// of large video libraries cheap while still catching edits, truncation
// and re-encodes.
const fingerprintChunkSize = 8 * 1024

// ComputeFingerprint returns the change-detection fingerprint for a file:
// an md5 over its size, modification time and the first and last 8 KiB of
// content. Files the process cannot read fall back to a hash of the path
// so they still get a stable identity.
func ComputeFingerprint(path string, info fs.FileInfo) string {
	f, err := os.Open(path)
	if err != nil {
		logging.Warn("Fingerprint falling back to path hash for %s: %v", path, err)
		return pathFingerprint(path)
	}
	defer f.Close()

	h := md5.New()
	fmt.Fprintf(h, "%d_%d_", info.Size(), info.ModTime().Unix())

	head := make([]byte, fingerprintChunkSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		logging.Warn("Fingerprint falling back to path hash for %s: %v", path, err)
		return pathFingerprint(path)
	}
	h.Write(head[:n])

	if info.Size() > fingerprintChunkSize {
		tail := make([]byte, fingerprintChunkSize)
		n, err := f.ReadAt(tail, info.Size()-fingerprintChunkSize)
		if err != nil && !errors.Is(err, io.EOF) {
			logging.Warn("Fingerprint falling back to path hash for %s: %v", path, err)
			return pathFingerprint(path)
		}
		h.Write(tail[:n])
	}

	return hex.EncodeToString(h.Sum(nil))
}

func pathFingerprint(path string) string {
	sum := md5.Sum([]byte(path))
	return hex.EncodeToString(sum[:])
}
