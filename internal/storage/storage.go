// Package storage persists harvested listings.
package storage

import (
	"context"
	"fmt"

	"ListingHarvester/internal/models"
)

// Sink stores listings and serves them back to the API.
type Sink interface {
	// SaveListings upserts listings keyed by URL and reports how many were written.
	SaveListings(ctx context.Context, listings []models.Listing) (int, error)
	ListListings(ctx context.Context, filters models.ListingFilters) ([]models.Listing, error)
	CountListings(ctx context.Context, filters models.ListingFilters) (int, error)
	Close() error
}

// Open returns the sink for driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string) (Sink, error) {
	switch driver {
	case "", "sqlite":
		return OpenSQLite(ctx, dsn)
	case "postgres", "postgresql", "pgx":
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}
