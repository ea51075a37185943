// Package selector implements a config-driven backend: listing links and
// detail fields are located with CSS selectors taken from the site config.
package selector

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"ListingHarvester/internal/models"
	"ListingHarvester/internal/scraper"
	"ListingHarvester/internal/session"
	"ListingHarvester/pkg/config"
	"ListingHarvester/utils"
)

// Name is the registry key of this backend.
const Name = "selector"

// ExtraKey is the site config key holding the Selectors.
const ExtraKey = "selectors"

// Selectors locates listing data in rendered pages.
type Selectors struct {
	Listing    string `yaml:"listing"`
	Title      string `yaml:"title"`
	Price      string `yaml:"price"`
	Location   string `yaml:"location"`
	SellerName string `yaml:"seller_name"`
	SellerURL  string `yaml:"seller_url"`
	Photos     string `yaml:"photos"`
	MaxPages   int    `yaml:"max_pages"`
}

// Parser is the selector backend.
type Parser struct {
	cfg       config.Config
	logger    arbor.ILogger
	selectors Selectors
	base      *url.URL
	sess      *session.Session

	// limiter spaces every request of the session, listing and detail pages alike.
	limiter *rate.Limiter
}

// New is a scraper.Factory for the selector backend.
func New(cfg config.Config, logger arbor.ILogger) (scraper.Parser, error) {
	var sel Selectors
	if err := cfg.DecodeExtra(ExtraKey, &sel); err != nil {
		return nil, fmt.Errorf("selector backend: %w", err)
	}
	if sel.Listing == "" {
		return nil, errors.New("selector backend: selectors.listing is required")
	}
	if cfg.ListingsURL == "" {
		return nil, errors.New("selector backend: listings_url is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("selector backend: invalid base_url: %w", err)
	}

	return &Parser{
		cfg:       cfg,
		logger:    logger,
		selectors: sel,
		base:      base,
		limiter:   scraper.NewLimiter(cfg.DelayBetweenRequests),
	}, nil
}

// Initialize implements scraper.Parser.
func (p *Parser) Initialize(ctx context.Context, sess *session.Session) error {
	if sess == nil || sess.Context == nil {
		return errors.New("selector backend needs an open browser context")
	}
	p.sess = sess
	p.limiter = scraper.NewLimiter(p.cfg.DelayBetweenRequests)
	return nil
}

// EnumerateListings implements scraper.Parser. Links already seen earlier in
// the same traversal are skipped.
func (p *Parser) EnumerateListings(ctx context.Context) scraper.ListingIterator {
	seen := map[string]bool{}
	fetch := func(ctx context.Context, page int) ([]models.ListingRef, error) {
		html, err := p.render(ctx, p.cfg.PageURL(page))
		if err != nil {
			return nil, err
		}
		refs, err := p.parseListingPage(html, page)
		if err != nil {
			return nil, err
		}

		fresh := refs[:0]
		for _, ref := range refs {
			if seen[ref.URL] {
				continue
			}
			seen[ref.URL] = true
			fresh = append(fresh, ref)
		}
		p.logger.Debug().Str("module", p.cfg.Name).Int("page", page).Int("listings", len(fresh)).Msg("Listing page parsed")
		return fresh, nil
	}
	return scraper.NewPaginatorWithLimiter(fetch, p.limiter, p.selectors.MaxPages)
}

// FetchListing implements scraper.Parser.
func (p *Parser) FetchListing(ctx context.Context, listingURL string) (models.Listing, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return models.Listing{}, err
	}
	html, err := p.render(ctx, listingURL)
	if err != nil {
		return models.Listing{}, err
	}
	return p.parseDetail(listingURL, html)
}

// Run implements scraper.Parser. Detail pages that keep failing are logged
// and skipped; a failing listing page aborts the run.
func (p *Parser) Run(ctx context.Context) ([]models.Listing, error) {
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

		listing, err := p.FetchListing(ctx, ref.URL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Warn().Err(err).Str("url", ref.URL).Msg("Skipping listing")
			continue
		}
		listings = append(listings, listing)
	}

	p.logger.Info().Str("module", p.cfg.Name).Int("listings", len(listings)).Msg("Harvest finished")
	return listings, nil
}

// Cleanup implements scraper.Parser. The session itself belongs to the module.
func (p *Parser) Cleanup() error {
	p.sess = nil
	return nil
}

func (p *Parser) render(ctx context.Context, target string) (string, error) {
	if p.sess == nil || p.sess.Context == nil {
		return "", errors.New("selector backend is not initialized")
	}

	var html string
	err := scraper.Retry(ctx, p.cfg.MaxRetries, p.cfg.RetryDelay, func(ctx context.Context) error {
		var err error
		html, err = p.sess.Context.Render(ctx, target)
		if err != nil {
			p.logger.Debug().Err(err).Str("url", target).Msg("Render attempt failed")
		}
		return err
	})
	return html, err
}

func (p *Parser) parseListingPage(html string, page int) ([]models.ListingRef, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page %d: %w", page, err)
	}

	var refs []models.ListingRef
	doc.Find(p.selectors.Listing).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			href, ok = s.Find("a[href]").First().Attr("href")
		}
		if !ok {
			return
		}
		abs := p.resolve(href)
		if abs == "" {
			return
		}
		refs = append(refs, models.ListingRef{
			ID:    utils.ListingIDFromURL(abs),
			URL:   abs,
			Title: strings.TrimSpace(s.Text()),
			Page:  page,
		})
	})
	return refs, nil
}

func (p *Parser) parseDetail(listingURL, html string) (models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.Listing{}, fmt.Errorf("failed to parse %s: %w", listingURL, err)
	}

	l := models.NewListing(p.cfg.Name, listingURL)
	l.ID = utils.ListingIDFromURL(listingURL)

	if t := p.text(doc, p.selectors.Title); t != "" {
		l.Title = t
	}
	if raw := p.text(doc, p.selectors.Price); raw != "" {
		l.Price, l.Currency = utils.ParsePrice(raw)
	}
	if loc := p.text(doc, p.selectors.Location); loc != "" {
		l.Location = loc
	}
	if seller := p.text(doc, p.selectors.SellerName); seller != "" {
		l.SellerName = seller
	}
	if p.selectors.SellerURL != "" {
		if href, ok := doc.Find(p.selectors.SellerURL).First().Attr("href"); ok {
			l.SellerURL = p.resolve(href)
		}
	}
	if p.selectors.Photos != "" {
		var photos []string
		doc.Find(p.selectors.Photos).Each(func(_ int, s *goquery.Selection) {
			if src, ok := s.Attr("src"); ok {
				photos = append(photos, p.resolve(src))
			}
		})
		l.Photos = utils.UniqueStrings(photos)
	}

	l.ApplyDefaults()
	return l, nil
}

func (p *Parser) text(doc *goquery.Document, sel string) string {
	if sel == "" {
		return ""
	}
	return strings.Join(strings.Fields(doc.Find(sel).First().Text()), " ")
}

func (p *Parser) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return p.base.ResolveReference(ref).String()
}
