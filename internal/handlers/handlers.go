package handlers

import (
	"time"

	"media-curator/internal/database"
	"media-curator/internal/extract"
	"media-curator/internal/media"
	"media-curator/internal/scanner"
	"media-curator/internal/search"
	"media-curator/internal/vectorindex"
)

// Handlers carries the shared dependencies of all HTTP handlers.
type Handlers struct {
	db        *database.Database
	index     *vectorindex.Index
	scanner   *scanner.Scanner
	engine    *search.Engine
	chat      extract.VisionChat
	thumbGen  *media.ThumbnailGenerator
	startTime time.Time
}

// New wires the handler set.
func New(db *database.Database, index *vectorindex.Index, sc *scanner.Scanner, engine *search.Engine, chat extract.VisionChat, thumbGen *media.ThumbnailGenerator) *Handlers {
	return &Handlers{
		db:        db,
		index:     index,
		scanner:   sc,
		engine:    engine,
		chat:      chat,
		thumbGen:  thumbGen,
		startTime: time.Now(),
	}
}
