package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"

	"media-curator/internal/database"
	"media-curator/internal/logging"
	"media-curator/internal/mediatypes"
)

func (h *Handlers) fileFromRequest(w http.ResponseWriter, r *http.Request) *database.MediaFile {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSONError(w, "invalid file id", http.StatusBadRequest)
		return nil
	}

	file, err := h.db.GetFileByID(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, "file not found", http.StatusNotFound)
		return nil
	}
	if err != nil {
		writeJSONError(w, "failed to load file", http.StatusInternalServerError)
		return nil
	}
	return file
}

// GetThumbnail serves a cached JPEG thumbnail for a file. The optional
// size query parameter is the bounding box edge in pixels.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	file := h.fileFromRequest(w, r)
	if file == nil {
		return
	}

	size := 0
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSONError(w, "invalid size", http.StatusBadRequest)
			return
		}
		size = n
	}

	data, err := h.thumbGen.GetThumbnail(file.ID, file.Path, size)
	if err != nil {
		logging.Warn("Thumbnail failed for file %d (%s): %v", file.ID, file.Path, err)
		writeJSONError(w, "thumbnail generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		logging.Debug("Thumbnail write aborted for file %d: %v", file.ID, err)
	}
}

// GetOriginal serves the original media file bytes with the right content
// type, supporting range requests for video seeking.
func (h *Handlers) GetOriginal(w http.ResponseWriter, r *http.Request) {
	file := h.fileFromRequest(w, r)
	if file == nil {
		return
	}

	if _, err := os.Stat(file.Path); err != nil {
		writeJSONError(w, "file missing on disk", http.StatusNotFound)
		return
	}

	if mime := mediatypes.GetMimeType(filepath.Ext(file.Path)); mime != "" {
		w.Header().Set("Content-Type", mime)
	}
	http.ServeFile(w, r, file.Path)
}
