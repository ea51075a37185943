package scraper

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"ListingHarvester/internal/models"
)

// PageFunc fetches the listing references on one 1-based page.
// An empty result marks the end of the listings.
type PageFunc func(ctx context.Context, page int) ([]models.ListingRef, error)

// Paginator is a lazy ListingIterator over numbered pages. A page is fetched
// only after every ref of the previous page has been handed out.
type Paginator struct {
	fetch    PageFunc
	maxPages int
	limiter  *rate.Limiter

	page    int
	buf     []models.ListingRef
	done    bool
	fetched int
}

// NewLimiter returns a limiter letting one request through every delay.
// A non-positive delay never blocks.
func NewLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// NewPaginator returns a paginator starting at page 1. Page fetches are spaced
// at least delay apart. maxPages <= 0 means no page limit.
func NewPaginator(fetch PageFunc, delay time.Duration, maxPages int) *Paginator {
	return NewPaginatorWithLimiter(fetch, NewLimiter(delay), maxPages)
}

// NewPaginatorWithLimiter is NewPaginator pacing page fetches through limiter,
// so a backend can share one budget between listing and detail requests.
func NewPaginatorWithLimiter(fetch PageFunc, limiter *rate.Limiter, maxPages int) *Paginator {
	return &Paginator{
		fetch:    fetch,
		maxPages: maxPages,
		limiter:  limiter,
	}
}

// Next implements ListingIterator.
func (p *Paginator) Next(ctx context.Context) (models.ListingRef, error) {
	for len(p.buf) == 0 {
		if p.done {
			return models.ListingRef{}, Done
		}
		if p.maxPages > 0 && p.page >= p.maxPages {
			p.done = true
			return models.ListingRef{}, Done
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return models.ListingRef{}, err
		}

		p.page++
		p.fetched++
		refs, err := p.fetch(ctx, p.page)
		if err != nil {
			p.done = true
			return models.ListingRef{}, fmt.Errorf("page %d: %w", p.page, err)
		}
		if len(refs) == 0 {
			p.done = true
			return models.ListingRef{}, Done
		}
		for i := range refs {
			if refs[i].Page == 0 {
				refs[i].Page = p.page
			}
		}
		p.buf = refs
	}

	ref := p.buf[0]
	p.buf = p.buf[1:]
	return ref, nil
}

// PagesFetched reports how many pages have been requested so far.
func (p *Paginator) PagesFetched() int {
	return p.fetched
}
