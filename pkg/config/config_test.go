package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestBuildAppliesDefaults(t *testing.T) {
	cfg := Build(Options{
		Name:        "X",
		BaseURL:     "https://x.test",
		ListingsURL: "https://x.test/list?page={page}",
	})

	assert.Equal(t, "X", cfg.Name)
	assert.Equal(t, 60000*time.Millisecond, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 5000*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, 1000*time.Millisecond, cfg.DelayBetweenRequests)
	assert.False(t, cfg.EnableImageLoading)
	assert.True(t, cfg.Headless)
	assert.Equal(t, "en-US", cfg.Locale)
	assert.Equal(t, "America/New_York", cfg.Timezone)
	assert.Equal(t, DefaultGeolocation, cfg.Geolocation)
	assert.Equal(t, "rod", cfg.Engine)
	assert.Equal(t, "selector", cfg.Backend)
	assert.NotNil(t, cfg.ExtraHeaders)
	assert.NotNil(t, cfg.Extra)
}

func TestBuildCallerValuesWin(t *testing.T) {
	geo := Geolocation{Latitude: 51.5, Longitude: -0.12, Accuracy: 5}
	cfg := Build(Options{
		Name:                   "Y",
		BaseURL:                "https://y.test/",
		TimeoutMs:              intPtr(1500),
		DelayBetweenRequestsMs: intPtr(0),
		MaxRetries:             intPtr(0),
		RetryDelayMs:           intPtr(250),
		EnableImageLoading:     boolPtr(true),
		Headless:               boolPtr(false),
		Engine:                 "chromedp",
		Backend:                "mock",
		Locale:                 "en-GB",
		Timezone:               "Europe/London",
		Geolocation:            &geo,
		ExtraHeaders:           map[string]string{"X-Test": "1"},
	})

	assert.Equal(t, "https://y.test", cfg.BaseURL)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeout)
	assert.Equal(t, time.Duration(0), cfg.DelayBetweenRequests)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryDelay)
	assert.True(t, cfg.EnableImageLoading)
	assert.False(t, cfg.Headless)
	assert.Equal(t, "chromedp", cfg.Engine)
	assert.Equal(t, "mock", cfg.Backend)
	assert.Equal(t, "en-GB", cfg.Locale)
	assert.Equal(t, "Europe/London", cfg.Timezone)
	assert.Equal(t, geo, cfg.Geolocation)
	assert.Equal(t, "1", cfg.ExtraHeaders["X-Test"])
}

func TestBuildDoesNotShareCallerMaps(t *testing.T) {
	headers := map[string]string{"A": "1"}
	extra := map[string]any{"k": "v"}
	cfg := Build(Options{ExtraHeaders: headers, Extra: extra})

	headers["A"] = "changed"
	extra["k"] = "changed"

	assert.Equal(t, "1", cfg.ExtraHeaders["A"])
	assert.Equal(t, "v", cfg.Extra["k"])

	clone := cfg.Clone()
	clone.Extra["k"] = "clone"
	assert.Equal(t, "v", cfg.Extra["k"])
}

func TestPageURL(t *testing.T) {
	cfg := Build(Options{ListingsURL: "https://x.test/list?page={page}&sort={page}"})
	assert.Equal(t, "https://x.test/list?page=3&sort=3", cfg.PageURL(3))
}

func TestParseFilePassesUnknownKeysThrough(t *testing.T) {
	data := []byte(`
logging:
  level: debug
sites:
  - name: demo
    base_url: https://demo.test
    listings_url: https://demo.test/list?page={page}
    timeout: 2000
    backend: mock
    mock:
      pages: 2
      per_page: 4
    future_flag: true
`)
	f, err := ParseFile(data)
	require.NoError(t, err)
	assert.Equal(t, "debug", f.Logging.Level)
	assert.Equal(t, "sqlite", f.Storage.Driver)

	site, ok := f.Site("demo")
	require.True(t, ok)
	cfg := Build(site)
	assert.Equal(t, 2000*time.Millisecond, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, true, cfg.Extra["future_flag"])

	var mock struct {
		Pages   int `yaml:"pages"`
		PerPage int `yaml:"per_page"`
	}
	require.NoError(t, cfg.DecodeExtra("mock", &mock))
	assert.Equal(t, 2, mock.Pages)
	assert.Equal(t, 4, mock.PerPage)

	_, ok = f.Site("missing")
	assert.False(t, ok)
}

func TestParseFileEnvOverrides(t *testing.T) {
	t.Setenv("HARVEST_STORAGE_DRIVER", "postgres")
	t.Setenv("HARVEST_STORAGE_DSN", "postgres://localhost/harvest")

	f, err := ParseFile([]byte("storage:\n  driver: sqlite\n"))
	require.NoError(t, err)
	assert.Equal(t, "postgres", f.Storage.Driver)
	assert.Equal(t, "postgres://localhost/harvest", f.Storage.DSN)
}

func TestDecodeExtraMissingKey(t *testing.T) {
	cfg := Build(Options{})
	out := struct{ A int }{A: 7}
	require.NoError(t, cfg.DecodeExtra("nope", &out))
	assert.Equal(t, 7, out.A)
}
