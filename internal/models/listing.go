package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Defaults used when a backend cannot supply a field.
const (
	DefaultTitle    = "Untitled"
	DefaultLocation = "Unknown"
	DefaultSeller   = "Unknown"
	DefaultCurrency = ""
)

// ListingRef points at a listing detail page found while paginating.
type ListingRef struct {
	ID    string `json:"id,omitempty"`
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Page  int    `json:"page"`
}

// Listing holds the canonical fields extracted for one listing.
type Listing struct {
	ID         string          `db:"listing_id" json:"id"`
	Source     string          `db:"source" json:"source"`
	URL        string          `db:"url" json:"url"`
	Title      string          `db:"title" json:"title"`
	Price      float64         `db:"price" json:"price"`
	Currency   string          `db:"currency" json:"currency,omitempty"`
	Location   string          `db:"location" json:"location"`
	SellerName string          `db:"seller_name" json:"seller_name"`
	SellerURL  string          `db:"seller_url" json:"seller_url,omitempty"`
	Photos     JSONStringSlice `db:"photos" json:"photos"`
	ScrapedAt  time.Time       `db:"scraped_at" json:"scraped_at"`
}

// NewListing returns a record with every field set to its default.
func NewListing(source, url string) Listing {
	return Listing{
		Source:     source,
		URL:        url,
		Title:      DefaultTitle,
		Currency:   DefaultCurrency,
		Location:   DefaultLocation,
		SellerName: DefaultSeller,
		Photos:     JSONStringSlice{},
		ScrapedAt:  time.Now(),
	}
}

// ApplyDefaults fills any empty field with its default.
func (l *Listing) ApplyDefaults() {
	if l.Title == "" {
		l.Title = DefaultTitle
	}
	if l.Location == "" {
		l.Location = DefaultLocation
	}
	if l.SellerName == "" {
		l.SellerName = DefaultSeller
	}
	if l.Photos == nil {
		l.Photos = JSONStringSlice{}
	}
	if l.ScrapedAt.IsZero() {
		l.ScrapedAt = time.Now()
	}
	if l.ID == "" {
		l.ID = l.URL
	}
}

// JSONStringSlice is a custom type to handle JSON serialization/deserialization for []string
type JSONStringSlice []string

// Value implements the driver.Valuer interface to convert []string to JSON for database storage
func (j JSONStringSlice) Value() (driver.Value, error) {
	if j == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(j))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface to convert JSON from database to []string
func (j *JSONStringSlice) Scan(value interface{}) error {
	if value == nil {
		*j = JSONStringSlice{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("unsupported type for JSONStringSlice")
	}
	return json.Unmarshal(bytes, j)
}

// ListingFilters holds the query parameters accepted by the listings API.
type ListingFilters struct {
	Source string
	Limit  int
	Offset int
}

// ListingsResponse is the JSON body returned by the listings API.
type ListingsResponse struct {
	Data       []Listing  `json:"data"`
	Pagination Pagination `json:"pagination"`
}

type Pagination struct {
	TotalPages  int `json:"total_pages"`
	CurrentPage int `json:"current_page"`
	Total       int `json:"total"`
}
