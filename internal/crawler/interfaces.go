package crawler

import (
	"context"
	"time"

	"github.com/JakeFAU/jobwatch/internal/listing"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Extractor turns a raw HTML page into listings.
type Extractor interface {
	Extract(body []byte) (Extraction, error)
}

// Store is the durable record of every listing seen so far.
type Store interface {
	// FilterNew returns the candidates whose dedup key is not yet stored, in input order.
	FilterNew(ctx context.Context, candidates []listing.Listing) ([]listing.Listing, error)
	// Append persists listings and returns how many rows were written.
	Append(ctx context.Context, listings []listing.Listing) (int, error)
}

// Mirror copies persisted listings into a secondary store.
type Mirror interface {
	SaveListings(ctx context.Context, runID string, listings []listing.Listing) (int, error)
}

// Notifier delivers a digest of new listings.
type Notifier interface {
	Notify(ctx context.Context, listings []listing.Listing) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
