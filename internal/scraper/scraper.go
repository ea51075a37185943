// Package scraper defines the contract every site-specific harvesting backend
// follows, plus the pagination and retry helpers backends share.
package scraper

import (
	"context"
	"errors"

	"github.com/ternarybob/arbor"

	"ListingHarvester/internal/models"
	"ListingHarvester/internal/session"
	"ListingHarvester/pkg/config"
)

// Done is returned by ListingIterator.Next when no listings remain.
var Done = errors.New("no more listings")

// Parser is implemented by every backend. A module creates one parser per
// successful initialization and discards it after Cleanup.
type Parser interface {
	// Initialize binds the parser to its session.
	Initialize(ctx context.Context, sess *session.Session) error

	// EnumerateListings starts a fresh traversal from the first page.
	// Pages are fetched only as the iterator is consumed.
	EnumerateListings(ctx context.Context) ListingIterator

	// FetchListing parses one detail page into a normalized record.
	FetchListing(ctx context.Context, url string) (models.Listing, error)

	// Run performs the full harvest: pagination, detail fetches, accumulation.
	Run(ctx context.Context) ([]models.Listing, error)

	// Cleanup releases anything the parser holds beyond the session.
	Cleanup() error
}

// ListingIterator yields listing references one at a time, in page order and
// in document order within a page. Next returns Done at the end.
type ListingIterator interface {
	Next(ctx context.Context) (models.ListingRef, error)
}

// Availability may be implemented by a parser that can report its own health.
type Availability interface {
	IsAvailable() bool
}

// Factory builds a parser for one module.
type Factory func(cfg config.Config, logger arbor.ILogger) (Parser, error)

// Collect drains it, returning at most limit refs (no limit when limit <= 0).
func Collect(ctx context.Context, it ListingIterator, limit int) ([]models.ListingRef, error) {
	var refs []models.ListingRef
	for limit <= 0 || len(refs) < limit {
		ref, err := it.Next(ctx)
		if errors.Is(err, Done) {
			break
		}
		if err != nil {
			return refs, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
