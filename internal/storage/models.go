package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// CachedDocument is a successfully resolved external document.
type CachedDocument struct {
	URL       string
	Kind      string
	FileID    string
	Method    string // "export", "text" or "ocr"
	Content   string
	FetchedAt time.Time
	Hits      int
}
