package config

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for every tunable a harvest module understands.
const (
	DefaultTimeout              = 60000 * time.Millisecond
	DefaultDelayBetweenRequests = 1000 * time.Millisecond
	DefaultMaxRetries           = 3
	DefaultRetryDelay           = 5000 * time.Millisecond
	DefaultEnableImageLoading   = false
	DefaultHeadless             = true
	DefaultEngine               = "rod"
	DefaultBackend              = "selector"
	DefaultLocale               = "en-US"
	DefaultTimezone             = "America/New_York"

	// PagePlaceholder is substituted with the page number in ListingsURL.
	PagePlaceholder = "{page}"
)

// DefaultGeolocation is the fallback coordinate granted to every browsing context.
var DefaultGeolocation = Geolocation{Latitude: 40.7128, Longitude: -74.0060, Accuracy: 100}

// Geolocation is a coordinate reported to pages that ask for the user's position.
type Geolocation struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Accuracy  float64 `yaml:"accuracy"`
}

// Options holds caller-supplied overrides for a single site.
// A nil pointer or empty string means "use the default".
// Durations are expressed in milliseconds, matching the site files.
type Options struct {
	Name        string `yaml:"name"`
	BaseURL     string `yaml:"base_url"`
	ListingsURL string `yaml:"listings_url"`

	TimeoutMs              *int  `yaml:"timeout"`
	DelayBetweenRequestsMs *int  `yaml:"delay_between_requests"`
	MaxRetries             *int  `yaml:"max_retries"`
	RetryDelayMs           *int  `yaml:"retry_delay"`
	EnableImageLoading     *bool `yaml:"enable_image_loading"`
	Headless               *bool `yaml:"headless"`

	Engine  string `yaml:"engine"`
	Backend string `yaml:"backend"`

	Locale       string            `yaml:"locale"`
	Timezone     string            `yaml:"timezone"`
	Geolocation  *Geolocation      `yaml:"geolocation"`
	ExtraHeaders map[string]string `yaml:"extra_headers"`

	// Extra collects every key the shell does not recognise. Backends read
	// their own settings from here.
	Extra map[string]any `yaml:",inline"`
}

// Config is the resolved configuration of one harvest module.
// It is built once and passed by value; treat it as read-only.
type Config struct {
	Name        string
	BaseURL     string
	ListingsURL string

	Timeout              time.Duration
	DelayBetweenRequests time.Duration
	MaxRetries           int
	RetryDelay           time.Duration
	EnableImageLoading   bool
	Headless             bool

	Engine  string
	Backend string

	Locale       string
	Timezone     string
	Geolocation  Geolocation
	ExtraHeaders map[string]string

	Extra map[string]any
}

// Defaults returns the default table.
func Defaults() Config {
	return Config{
		Timeout:              DefaultTimeout,
		DelayBetweenRequests: DefaultDelayBetweenRequests,
		MaxRetries:           DefaultMaxRetries,
		RetryDelay:           DefaultRetryDelay,
		EnableImageLoading:   DefaultEnableImageLoading,
		Headless:             DefaultHeadless,
		Engine:               DefaultEngine,
		Backend:              DefaultBackend,
		Locale:               DefaultLocale,
		Timezone:             DefaultTimezone,
		Geolocation:          DefaultGeolocation,
		ExtraHeaders:         map[string]string{},
		Extra:                map[string]any{},
	}
}

// Build resolves overrides against the default table. It never fails.
func Build(o Options) Config {
	cfg := Defaults()

	cfg.Name = strings.TrimSpace(o.Name)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(o.BaseURL), "/")
	cfg.ListingsURL = strings.TrimSpace(o.ListingsURL)

	if o.TimeoutMs != nil {
		cfg.Timeout = millis(*o.TimeoutMs)
	}
	if o.DelayBetweenRequestsMs != nil {
		cfg.DelayBetweenRequests = millis(*o.DelayBetweenRequestsMs)
	}
	if o.MaxRetries != nil {
		cfg.MaxRetries = *o.MaxRetries
	}
	if o.RetryDelayMs != nil {
		cfg.RetryDelay = millis(*o.RetryDelayMs)
	}
	if o.EnableImageLoading != nil {
		cfg.EnableImageLoading = *o.EnableImageLoading
	}
	if o.Headless != nil {
		cfg.Headless = *o.Headless
	}
	if o.Engine != "" {
		cfg.Engine = o.Engine
	}
	if o.Backend != "" {
		cfg.Backend = o.Backend
	}
	if o.Locale != "" {
		cfg.Locale = o.Locale
	}
	if o.Timezone != "" {
		cfg.Timezone = o.Timezone
	}
	if o.Geolocation != nil {
		cfg.Geolocation = *o.Geolocation
	}
	maps.Copy(cfg.ExtraHeaders, o.ExtraHeaders)
	maps.Copy(cfg.Extra, o.Extra)

	return cfg
}

// Clone returns a copy that shares no maps with c.
func (c Config) Clone() Config {
	out := c
	out.ExtraHeaders = maps.Clone(c.ExtraHeaders)
	out.Extra = maps.Clone(c.Extra)
	if out.ExtraHeaders == nil {
		out.ExtraHeaders = map[string]string{}
	}
	if out.Extra == nil {
		out.Extra = map[string]any{}
	}
	return out
}

// PageURL renders ListingsURL for the given 1-based page number.
func (c Config) PageURL(page int) string {
	return strings.ReplaceAll(c.ListingsURL, PagePlaceholder, strconv.Itoa(page))
}

// DecodeExtra decodes the passthrough value stored under key into out.
// A missing key leaves out untouched.
func (c Config) DecodeExtra(key string, out any) error {
	raw, ok := c.Extra[key]
	if !ok {
		return nil
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("re-encode %q: %w", key, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %q: %w", key, err)
	}
	return nil
}

func millis(ms int) time.Duration {
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms) * time.Millisecond
}
