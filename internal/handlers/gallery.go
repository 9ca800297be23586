package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"media-curator/internal/database"
	"media-curator/internal/search"
)

const defaultGalleryLimit = 60

// GalleryResponse is the paged gallery listing.
type GalleryResponse struct {
	Files  []*database.MediaFile `json:"files"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// ListGallery returns processed files newest first, with optional
// character, series, tag and media_type filters.
func (h *Handlers) ListGallery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := database.ListOptions{
		Limit:     defaultGalleryLimit,
		Character: q.Get("character"),
		Series:    q.Get("series"),
		Tag:       q.Get("tag"),
		MediaType: q.Get("media_type"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSONError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		opts.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONError(w, "invalid offset", http.StatusBadRequest)
			return
		}
		opts.Offset = n
	}

	files, err := h.db.ListMedia(r.Context(), opts)
	if err != nil {
		writeJSONError(w, "failed to list media", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, GalleryResponse{Files: files, Limit: opts.Limit, Offset: opts.Offset})
}

// SearchRequest is the body of POST /gallery/search.
type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// SearchResponse is the ranked semantic search result set.
type SearchResponse struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
}

// SearchGallery answers a natural-language query against the library.
func (h *Handlers) SearchGallery(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	results, err := h.engine.Search(r.Context(), req.Query, req.TopK)
	if errors.Is(err, search.ErrEmptyQuery) {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		writeJSONError(w, "search failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, SearchResponse{Query: req.Query, Results: results})
}

// FiltersResponse lists the distinct tag values usable as gallery filters.
type FiltersResponse struct {
	Characters []string `json:"characters"`
	Series     []string `json:"series"`
	Tags       []string `json:"tags"`
}

// GetFilters returns the filterable tag vocabulary of the processed
// library.
func (h *Handlers) GetFilters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	characters, err := h.db.DistinctTagNames(ctx, database.TagCategoryCharacter)
	if err != nil {
		writeJSONError(w, "failed to load filters", http.StatusInternalServerError)
		return
	}
	series, err := h.db.DistinctTagNames(ctx, database.TagCategorySeries)
	if err != nil {
		writeJSONError(w, "failed to load filters", http.StatusInternalServerError)
		return
	}
	tags, err := h.db.DistinctTagNames(ctx, database.TagCategoryGeneral)
	if err != nil {
		writeJSONError(w, "failed to load filters", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, FiltersResponse{Characters: characters, Series: series, Tags: tags})
}

// ChatRequest is the body of POST /gallery/chat.
type ChatRequest struct {
	FileID int64  `json:"file_id"`
	Prompt string `json:"prompt"`
}

// ChatResponse is the model's answer about a file.
type ChatResponse struct {
	FileID int64  `json:"file_id"`
	Answer string `json:"answer"`
}

// Chat asks the vision model a single-turn question about a library file.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		writeJSONError(w, "prompt is required", http.StatusBadRequest)
		return
	}

	file, err := h.db.GetFileByID(r.Context(), req.FileID)
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, "file not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, "failed to load file", http.StatusInternalServerError)
		return
	}

	answer, err := h.chat.Chat(r.Context(), file.Path, req.Prompt)
	if err != nil {
		writeJSONError(w, "vision model unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, ChatResponse{FileID: file.ID, Answer: answer})
}
