package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Project is a portfolio entry: something built, shipped, or published,
// with optional links to a live demo and the source.
type Project struct {
	ID          string
	Title       string
	Description string
	Tags        string // JSON array stored as text
	DemoURL     string
	SourceURL   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EmbeddingRecord is one indexed chunk of text with its vector. RefID
// points back to the entity the chunk came from (a project ID or a
// document reference); ChunkID disambiguates chunks of the same entity.
type EmbeddingRecord struct {
	RefID      string
	ChunkID    string
	SourceKind string // "project" or "document"
	Language   string
	Text       string
	Vector     []float32
	VectorDim  int
	Metadata   string // JSON object stored as text
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
