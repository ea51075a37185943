package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"ListingHarvester/internal/scraper"
	"ListingHarvester/internal/session"
	"ListingHarvester/pkg/config"
)

func build(t *testing.T, settings map[string]any) scraper.Parser {
	t.Helper()
	cfg := config.Build(config.Options{
		Name:                   "demo",
		BaseURL:                "https://demo.test/",
		DelayBetweenRequestsMs: new(int),
		Extra:                  map[string]any{ExtraKey: settings},
	})
	p, err := New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	return p
}

func TestRunProducesPagesTimesPerPage(t *testing.T) {
	p := build(t, map[string]any{"pages": 2, "per_page": 4})
	require.NoError(t, p.Initialize(context.Background(), &session.Session{}))

	listings, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 8)
	assert.Equal(t, "https://demo.test/listing/1-1", listings[0].URL)
	assert.Equal(t, "2-4", listings[7].ID)
	assert.Equal(t, 100.0, listings[0].Price)
	assert.Equal(t, "USD", listings[0].Currency)
	assert.Equal(t, "demo", listings[0].Source)
}

func TestEnumerateListingsRestartsFromFirstPage(t *testing.T) {
	p := build(t, map[string]any{"pages": 3, "per_page": 1})
	require.NoError(t, p.Initialize(context.Background(), &session.Session{}))

	first, err := scraper.Collect(context.Background(), p.EnumerateListings(context.Background()), 2)
	require.NoError(t, err)
	again, err := scraper.Collect(context.Background(), p.EnumerateListings(context.Background()), 0)
	require.NoError(t, err)

	assert.Len(t, first, 2)
	assert.Len(t, again, 3)
	assert.Equal(t, first[0], again[0])
}

func TestFailureModes(t *testing.T) {
	p := build(t, map[string]any{"fail_on": "initialize", "error": "blocked"})
	err := p.Initialize(context.Background(), &session.Session{})
	assert.EqualError(t, err, "blocked")
	assert.False(t, p.(scraper.Availability).IsAvailable())

	p = build(t, map[string]any{"fail_on": "run", "error": "network timeout"})
	require.NoError(t, p.Initialize(context.Background(), &session.Session{}))
	_, err = p.Run(context.Background())
	assert.EqualError(t, err, "network timeout")
}

func TestNonPositivePagesYieldNothing(t *testing.T) {
	for _, pages := range []int{0, -1} {
		p := build(t, map[string]any{"pages": pages, "per_page": 2})
		require.NoError(t, p.Initialize(context.Background(), &session.Session{}))

		refs, err := scraper.Collect(context.Background(), p.EnumerateListings(context.Background()), 100)
		require.NoError(t, err)
		assert.Empty(t, refs, "pages=%d", pages)

		listings, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.Empty(t, listings, "pages=%d", pages)
	}
}
