// Package mock is an offline backend producing synthetic listings. It is used
// for demos and for exercising the harvest pipeline without a browser.
package mock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"ListingHarvester/internal/models"
	"ListingHarvester/internal/scraper"
	"ListingHarvester/internal/session"
	"ListingHarvester/pkg/config"
	"ListingHarvester/utils"
)

// Name is the registry key of this backend.
const Name = "mock"

// ExtraKey is the site config key holding the Settings.
const ExtraKey = "mock"

// Settings shapes the synthetic site.
type Settings struct {
	Pages   int    `yaml:"pages"`
	PerPage int    `yaml:"per_page"`
	FailOn  string `yaml:"fail_on"` // "initialize", "run" or empty
	Error   string `yaml:"error"`
}

// Parser is the mock backend.
type Parser struct {
	cfg      config.Config
	logger   arbor.ILogger
	settings Settings
	sess     *session.Session
}

// New is a scraper.Factory for the mock backend.
func New(cfg config.Config, logger arbor.ILogger) (scraper.Parser, error) {
	s := Settings{Pages: 2, PerPage: 3, Error: "mock failure"}
	if err := cfg.DecodeExtra(ExtraKey, &s); err != nil {
		return nil, fmt.Errorf("mock backend: %w", err)
	}
	return &Parser{cfg: cfg, logger: logger, settings: s}, nil
}

// Initialize implements scraper.Parser.
func (p *Parser) Initialize(ctx context.Context, sess *session.Session) error {
	if p.settings.FailOn == "initialize" {
		return errors.New(p.settings.Error)
	}
	if sess == nil {
		return errors.New("mock backend needs a session")
	}
	p.sess = sess
	return nil
}

// EnumerateListings implements scraper.Parser.
func (p *Parser) EnumerateListings(ctx context.Context) scraper.ListingIterator {
	return scraper.NewPaginator(p.page, p.cfg.DelayBetweenRequests, p.settings.Pages)
}

// page serves PerPage refs on pages 1..Pages and an empty page after that,
// so a non-positive Pages yields no listings.
func (p *Parser) page(ctx context.Context, page int) ([]models.ListingRef, error) {
	if page > p.settings.Pages {
		return nil, nil
	}
	refs := make([]models.ListingRef, 0, p.settings.PerPage)
	for i := 1; i <= p.settings.PerPage; i++ {
		u := fmt.Sprintf("%s/listing/%d-%d", strings.TrimRight(p.cfg.BaseURL, "/"), page, i)
		refs = append(refs, models.ListingRef{ID: utils.ListingIDFromURL(u), URL: u, Page: page})
	}
	return refs, nil
}

// FetchListing implements scraper.Parser.
func (p *Parser) FetchListing(ctx context.Context, url string) (models.Listing, error) {
	if err := ctx.Err(); err != nil {
		return models.Listing{}, err
	}
	l := models.NewListing(p.cfg.Name, url)
	l.ID = utils.ListingIDFromURL(url)
	l.Title = "Listing " + l.ID
	l.Price = 100
	l.Currency = "USD"
	l.ScrapedAt = time.Now()
	l.ApplyDefaults()
	return l, nil
}

// Run implements scraper.Parser.
func (p *Parser) Run(ctx context.Context) ([]models.Listing, error) {
	if p.settings.FailOn == "run" {
		return nil, errors.New(p.settings.Error)
	}

	var listings []models.Listing
	it := p.EnumerateListings(ctx)
	for {
		ref, err := it.Next(ctx)
		if errors.Is(err, scraper.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		l, err := p.FetchListing(ctx, ref.URL)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	p.logger.Debug().Str("module", p.cfg.Name).Int("listings", len(listings)).Msg("Mock harvest finished")
	return listings, nil
}

// Cleanup implements scraper.Parser.
func (p *Parser) Cleanup() error {
	p.sess = nil
	return nil
}

// IsAvailable implements scraper.Availability.
func (p *Parser) IsAvailable() bool {
	return p.settings.FailOn == ""
}
