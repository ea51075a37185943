package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ListingHarvester/internal/models"
)

const createListingsTableSQL = `
CREATE TABLE IF NOT EXISTS listings (
	"id" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
	"listing_id" TEXT,
	"source" TEXT,
	"url" TEXT UNIQUE,
	"title" TEXT,
	"price" REAL,
	"currency" TEXT,
	"location" TEXT,
	"seller_name" TEXT,
	"seller_url" TEXT,
	"photos" TEXT,
	"scraped_at" TEXT
);`

// timeFormat is fixed width so that text ordering matches time ordering.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite is the modernc.org/sqlite backed Sink.
type SQLite struct {
	DB *sql.DB
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		path = "listings.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// A single connection keeps in-memory databases alive and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createListingsTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating listings table: %w", err)
	}
	return &SQLite{DB: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.DB.Close()
}

// SaveListings implements Sink.
func (s *SQLite) SaveListings(ctx context.Context, listings []models.Listing) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO listings (
		listing_id, source, url, title, price, currency, location,
		seller_name, seller_url, photos, scraped_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		title=excluded.title,
		price=excluded.price,
		currency=excluded.currency,
		location=excluded.location,
		seller_name=excluded.seller_name,
		seller_url=excluded.seller_url,
		photos=excluded.photos,
		scraped_at=excluded.scraped_at;
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	saved := 0
	for _, l := range listings {
		if l.URL == "" {
			continue
		}
		_, err := stmt.ExecContext(ctx,
			l.ID, l.Source, l.URL, l.Title, l.Price, l.Currency, l.Location,
			l.SellerName, l.SellerURL, l.Photos, l.ScrapedAt.UTC().Format(timeFormat),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to save listing %s: %w", l.URL, err)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return saved, nil
}

// ListListings implements Sink, newest first.
func (s *SQLite) ListListings(ctx context.Context, filters models.ListingFilters) ([]models.Listing, error) {
	where, args := sqliteWhere(filters)
	query := `SELECT listing_id, source, url, title, price, currency, location,
	                 seller_name, seller_url, photos, scraped_at
	          FROM listings` + where + " ORDER BY scraped_at DESC, id DESC"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
		if filters.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filters.Offset)
		}
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := []models.Listing{}
	for rows.Next() {
		var l models.Listing
		var scrapedAt string
		if err := rows.Scan(
			&l.ID, &l.Source, &l.URL, &l.Title, &l.Price, &l.Currency, &l.Location,
			&l.SellerName, &l.SellerURL, &l.Photos, &scrapedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning listing row: %w", err)
		}
		l.ScrapedAt, _ = time.Parse(timeFormat, scrapedAt)
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// CountListings implements Sink.
func (s *SQLite) CountListings(ctx context.Context, filters models.ListingFilters) (int, error) {
	where, args := sqliteWhere(filters)
	var n int
	err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM listings"+where, args...).Scan(&n)
	return n, err
}

func sqliteWhere(filters models.ListingFilters) (string, []any) {
	var conditions []string
	var args []any
	if filters.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filters.Source)
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
