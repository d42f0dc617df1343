package plex

import (
	"context"
	"time"
)

// Library is one Plex library section.
type Library struct {
	ID   string
	Name string
	Type string
}

// MediaItem is one playable file in a library, paired with the bundle hash
// that locates its preview artifact inside the Plex data directory.
type MediaItem struct {
	RatingKey  string
	Title      string
	File       string
	Size       int64
	BundleHash string
	AddedAt    time.Time
	UpdatedAt  time.Time
}

// Catalog lists libraries and resolves their media items. It is the narrow
// interface the job engine uses; the HTTP client below is the production
// implementation.
type Catalog interface {
	Libraries(ctx context.Context) ([]Library, error)
	Items(ctx context.Context, libraryID string) ([]MediaItem, error)
}
