package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ListingHarvester/internal/models"
)

const createListingsTablePG = `
CREATE TABLE IF NOT EXISTS listings (
	id          BIGSERIAL PRIMARY KEY,
	listing_id  TEXT,
	source      TEXT,
	url         TEXT UNIQUE,
	title       TEXT,
	price       DOUBLE PRECISION,
	currency    TEXT,
	location    TEXT,
	seller_name TEXT,
	seller_url  TEXT,
	photos      TEXT,
	scraped_at  TIMESTAMPTZ
)`

// Postgres is the pgx pool backed Sink.
type Postgres struct {
	Pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and ensures the listings table exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns < 2 {
		cfg.MaxConns = 2
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := pool.Exec(ctx, createListingsTablePG); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error creating listings table: %w", err)
	}
	return &Postgres{Pool: pool}, nil
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.Pool.Close()
	return nil
}

// SaveListings implements Sink with one batched round trip.
func (p *Postgres) SaveListings(ctx context.Context, listings []models.Listing) (int, error) {
	b := &pgx.Batch{}
	count := 0
	for _, l := range listings {
		if strings.TrimSpace(l.URL) == "" {
			continue
		}
		photos, err := l.Photos.Value()
		if err != nil {
			return 0, err
		}
		b.Queue(`INSERT INTO listings
			(listing_id, source, url, title, price, currency, location, seller_name, seller_url, photos, scraped_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			ON CONFLICT (url) DO UPDATE SET
				title=EXCLUDED.title, price=EXCLUDED.price, currency=EXCLUDED.currency,
				location=EXCLUDED.location, seller_name=EXCLUDED.seller_name,
				seller_url=EXCLUDED.seller_url, photos=EXCLUDED.photos, scraped_at=EXCLUDED.scraped_at`,
			l.ID, l.Source, l.URL, l.Title, l.Price, l.Currency, l.Location,
			l.SellerName, l.SellerURL, photos, l.ScrapedAt,
		)
		count++
	}
	if count == 0 {
		return 0, nil
	}

	br := p.Pool.SendBatch(ctx, b)
	total := 0
	for k := 0; k < count; k++ {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return total, err
		}
		total += int(tag.RowsAffected())
	}
	return total, br.Close()
}

// ListListings implements Sink, newest first.
func (p *Postgres) ListListings(ctx context.Context, filters models.ListingFilters) ([]models.Listing, error) {
	where, args := pgWhere(filters)
	query := `SELECT listing_id, source, url, title, price, currency, location,
	                 seller_name, seller_url, photos, scraped_at
	          FROM listings` + where + " ORDER BY scraped_at DESC, id DESC"
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		if filters.Offset > 0 {
			args = append(args, filters.Offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	rows, err := p.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := []models.Listing{}
	for rows.Next() {
		var l models.Listing
		var photos string
		if err := rows.Scan(
			&l.ID, &l.Source, &l.URL, &l.Title, &l.Price, &l.Currency, &l.Location,
			&l.SellerName, &l.SellerURL, &photos, &l.ScrapedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning listing row: %w", err)
		}
		if err := l.Photos.Scan(photos); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// CountListings implements Sink.
func (p *Postgres) CountListings(ctx context.Context, filters models.ListingFilters) (int, error) {
	where, args := pgWhere(filters)
	var n int
	err := p.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM listings"+where, args...).Scan(&n)
	return n, err
}

func pgWhere(filters models.ListingFilters) (string, []any) {
	if filters.Source == "" {
		return "", nil
	}
	return " WHERE source = $1", []any{filters.Source}
}
