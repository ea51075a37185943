package selector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"ListingHarvester/internal/models"
	"ListingHarvester/internal/scraper"
	"ListingHarvester/internal/session"
	"ListingHarvester/internal/session/sessiontest"
	"ListingHarvester/pkg/config"
)

const listPage1 = `<html><body>
<div class="card"><a class="item" href="/rooms/101">Loft</a></div>
<div class="card"><a class="item" href="/rooms/102">Cabin</a></div>
</body></html>`

const listPage2 = `<html><body>
<div class="card"><a class="item" href="/rooms/102">Cabin</a></div>
<div class="card"><a class="item" href="https://x.test/rooms/103">Villa</a></div>
</body></html>`

const emptyPage = `<html><body><p>No results</p></body></html>`

const detail101 = `<html><body>
<h1 class="title">  Sunny   Loft </h1>
<span class="price">$1,250 / night</span>
<div class="loc">Lisbon</div>
<a class="host" href="/users/7">Ana</a>
<img class="photo" src="/img/1.jpg"><img class="photo" src="/img/1.jpg"><img class="photo" src="/img/2.jpg">
</body></html>`

const detail102 = `<html><body><p>sparse page</p></body></html>`

func testConfig(maxRetries int) config.Config {
	return config.Build(config.Options{
		Name:                   "x",
		BaseURL:                "https://x.test",
		ListingsURL:            "https://x.test/list?page={page}",
		MaxRetries:             &maxRetries,
		RetryDelayMs:           new(int),
		DelayBetweenRequestsMs: new(int),
		Extra: map[string]any{
			ExtraKey: map[string]any{
				"listing":     "a.item",
				"title":       "h1.title",
				"price":       ".price",
				"location":    ".loc",
				"seller_name": "a.host",
				"seller_url":  "a.host",
				"photos":      "img.photo",
			},
		},
	})
}

func pagesFixture() map[string]string {
	return map[string]string{
		"https://x.test/list?page=1": listPage1,
		"https://x.test/list?page=2": listPage2,
		"https://x.test/list?page=3": emptyPage,
		"https://x.test/rooms/101":   detail101,
		"https://x.test/rooms/102":   detail102,
	}
}

func newParser(t *testing.T, cfg config.Config, engine *sessiontest.Engine) *Parser {
	t.Helper()
	p, err := New(cfg, arbor.NewLogger())
	require.NoError(t, err)

	sess, err := session.Acquire(context.Background(), engine, cfg)
	require.NoError(t, err)
	require.NoError(t, p.Initialize(context.Background(), sess))
	return p.(*Parser)
}

func TestNewRequiresListingSelector(t *testing.T) {
	_, err := New(config.Build(config.Options{ListingsURL: "https://x.test/?p={page}"}), arbor.NewLogger())
	assert.Error(t, err)
}

func TestInitializeRequiresContext(t *testing.T) {
	p, err := New(testConfig(0), arbor.NewLogger())
	require.NoError(t, err)
	assert.Error(t, p.Initialize(context.Background(), &session.Session{}))
}

func TestEnumerateListingsDedupsAcrossPages(t *testing.T) {
	p := newParser(t, testConfig(0), sessiontest.NewEngine(pagesFixture()))

	refs, err := scraper.Collect(context.Background(), p.EnumerateListings(context.Background()), 0)
	require.NoError(t, err)

	urls := []string{}
	for _, r := range refs {
		urls = append(urls, r.URL)
	}
	assert.Equal(t, []string{
		"https://x.test/rooms/101",
		"https://x.test/rooms/102",
		"https://x.test/rooms/103",
	}, urls)
	assert.Equal(t, "101", refs[0].ID)
	assert.Equal(t, "Loft", refs[0].Title)
	assert.Equal(t, 2, refs[2].Page)
}

func TestFetchListingExtractsFields(t *testing.T) {
	p := newParser(t, testConfig(0), sessiontest.NewEngine(pagesFixture()))

	l, err := p.FetchListing(context.Background(), "https://x.test/rooms/101")
	require.NoError(t, err)
	assert.Equal(t, "101", l.ID)
	assert.Equal(t, "x", l.Source)
	assert.Equal(t, "Sunny Loft", l.Title)
	assert.Equal(t, 1250.0, l.Price)
	assert.Equal(t, "$", l.Currency)
	assert.Equal(t, "Lisbon", l.Location)
	assert.Equal(t, "Ana", l.SellerName)
	assert.Equal(t, "https://x.test/users/7", l.SellerURL)
	assert.Equal(t, models.JSONStringSlice{"https://x.test/img/1.jpg", "https://x.test/img/2.jpg"}, l.Photos)
}

func TestFetchListingAppliesDefaults(t *testing.T) {
	p := newParser(t, testConfig(0), sessiontest.NewEngine(pagesFixture()))

	l, err := p.FetchListing(context.Background(), "https://x.test/rooms/102")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultTitle, l.Title)
	assert.Equal(t, models.DefaultLocation, l.Location)
	assert.Equal(t, models.DefaultSeller, l.SellerName)
	assert.Equal(t, 0.0, l.Price)
	assert.NotNil(t, l.Photos)
}

func TestRunSkipsFailingDetails(t *testing.T) {
	engine := sessiontest.NewEngine(pagesFixture())
	p := newParser(t, testConfig(1), engine)

	listings, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "101", listings[0].ID)
	assert.Equal(t, "102", listings[1].ID)
}

func TestRunFailsOnListingPageError(t *testing.T) {
	pages := pagesFixture()
	delete(pages, "https://x.test/list?page=1")
	p := newParser(t, testConfig(1), sessiontest.NewEngine(pages))

	_, err := p.Run(context.Background())
	assert.Error(t, err)
}

func TestRenderAfterCleanupFails(t *testing.T) {
	p := newParser(t, testConfig(0), sessiontest.NewEngine(pagesFixture()))
	require.NoError(t, p.Cleanup())

	_, err := p.FetchListing(context.Background(), "https://x.test/rooms/101")
	assert.Error(t, err)
}

func TestRunSpacesListingAndDetailRequests(t *testing.T) {
	cfg := testConfig(0)
	cfg.DelayBetweenRequests = 40 * time.Millisecond
	pages := map[string]string{
		"https://x.test/list?page=1": listPage1,
		"https://x.test/list?page=2": emptyPage,
		"https://x.test/rooms/101":   detail101,
		"https://x.test/rooms/102":   detail102,
	}
	p := newParser(t, cfg, sessiontest.NewEngine(pages))

	// page 1, two details, then the empty page 2: three gaps of 40ms.
	start := time.Now()
	listings, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.GreaterOrEqual(t, time.Since(start), 110*time.Millisecond)
}
