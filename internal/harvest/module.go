// Package harvest drives one pluggable backend through the module lifecycle:
// session acquisition, listing retrieval, and guaranteed release.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"ListingHarvester/internal/engine"
	"ListingHarvester/internal/models"
	"ListingHarvester/internal/scraper"
	"ListingHarvester/internal/session"
	"ListingHarvester/pkg/config"
)

var (
	// ErrNotInitialized is returned by listing operations before a successful Initialize.
	ErrNotInitialized = errors.New("module not initialized")

	// ErrRunInProgress is returned when Run is re-entered on the same module.
	ErrRunInProgress = errors.New("run already in progress")
)

// State is the lifecycle position of a Module.
type State int

const (
	Uninitialized State = iota
	Initialized
	Running
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Info is the static description of a module. The timeout is serialized in
// milliseconds, like the site files.
type Info struct {
	Name      string        `json:"name"`
	BaseURL   string        `json:"base_url"`
	Timeout   time.Duration `json:"-"`
	TimeoutMs int64         `json:"timeout_ms"`
}

// Module owns one backend and the session it runs in. Calls on a single
// Module must be serialized by the caller.
type Module struct {
	cfg     config.Config
	engine  session.Engine
	factory scraper.Factory
	logger  arbor.ILogger

	state   State
	sess    *session.Session
	backend scraper.Parser
	lastErr error
}

// New returns an uninitialized module. A nil eng selects the engine named by
// cfg.Engine when the module is initialized.
func New(cfg config.Config, eng session.Engine, factory scraper.Factory, logger arbor.ILogger) *Module {
	return &Module{
		cfg:     cfg.Clone(),
		engine:  eng,
		factory: factory,
		logger:  logger,
	}
}

// NewFromRegistry returns a module whose backend is looked up by cfg.Backend.
// An unknown backend surfaces as an Initialize failure.
func NewFromRegistry(cfg config.Config, reg *scraper.Registry, eng session.Engine, logger arbor.ILogger) *Module {
	factory, err := reg.Factory(cfg.Backend)
	if err != nil {
		factory = func(config.Config, arbor.ILogger) (scraper.Parser, error) { return nil, err }
	}
	return New(cfg, eng, factory, logger)
}

// Initialize acquires a session, builds the backend and initializes it.
// It reports failure as false after logging it. Whatever the failed attempt
// acquired is kept until the next Initialize or Cleanup.
func (m *Module) Initialize(ctx context.Context) bool {
	if m.state != Uninitialized {
		m.logger.Warn().Str("module", m.cfg.Name).Str("state", m.state.String()).Msg("Module already initialized")
		return true
	}

	if m.sess != nil || m.backend != nil {
		m.release(m.logger)
	}

	if err := m.initialize(ctx); err != nil {
		m.lastErr = err
		m.logger.Error().Err(err).Str("module", m.cfg.Name).Msg("Module initialization failed")
		return false
	}

	m.lastErr = nil
	m.state = Initialized
	m.logger.Info().Str("module", m.cfg.Name).Str("backend", m.cfg.Backend).Str("engine", m.cfg.Engine).Msg("Module initialized")
	return true
}

func (m *Module) initialize(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during initialization: %v", r)
		}
	}()

	eng := m.engine
	if eng == nil {
		if eng, err = engine.New(m.cfg.Engine, m.logger); err != nil {
			return err
		}
	}

	sess, err := session.Acquire(ctx, eng, m.cfg)
	m.sess = sess
	if err != nil {
		return err
	}

	if m.factory == nil {
		return errors.New("no backend factory configured")
	}
	backend, err := m.factory(m.cfg.Clone(), m.logger)
	if err != nil {
		return fmt.Errorf("failed to create backend: %w", err)
	}
	m.backend = backend

	if err := backend.Initialize(ctx, sess); err != nil {
		return fmt.Errorf("backend initialization failed: %w", err)
	}
	return nil
}

// EnumerateListings returns a fresh lazy traversal of the listing pages.
// Abandoning the iterator releases nothing; call Cleanup when done.
func (m *Module) EnumerateListings(ctx context.Context) (scraper.ListingIterator, error) {
	if err := m.require(); err != nil {
		return nil, err
	}
	return m.backend.EnumerateListings(ctx), nil
}

// FetchListing parses one detail page through the backend.
func (m *Module) FetchListing(ctx context.Context, url string) (models.Listing, error) {
	if err := m.require(); err != nil {
		return models.Listing{}, err
	}
	l, err := m.backend.FetchListing(ctx, url)
	if err != nil {
		return models.Listing{}, err
	}
	m.normalize(&l)
	return l, nil
}

// Run performs a full harvest and releases the session afterwards, on both
// the success and the failure path. The only error returned is a precondition
// violation; backend failures are reported inside the Result.
func (m *Module) Run(ctx context.Context) (Result, error) {
	if m.state == Running {
		return Result{}, ErrRunInProgress
	}
	if err := m.require(); err != nil {
		return Result{}, err
	}

	runID := uuid.NewString()
	logger := m.logger.WithCorrelationId(runID)
	started := time.Now()
	m.state = Running
	logger.Info().Str("module", m.cfg.Name).Msg("Harvest run started")

	listings, err := m.runBackend(ctx)

	var res Result
	if err != nil {
		res = HandleModuleError(logger, m.cfg.Name, err, Resources{Session: m.sess, Backend: m.cleaner()})
	} else {
		for i := range listings {
			m.normalize(&listings[i])
		}
		res = successResult(m.cfg.Name, listings, session.Release(logger, m.sess, m.cleaner()))
		logger.Info().Str("module", m.cfg.Name).Int("processed", res.Processed).Msg("Harvest run finished")
	}
	m.sess = nil
	m.backend = nil
	m.state = Uninitialized

	res.RunID = runID
	res.StartedAt = started
	res.Duration = time.Since(started)
	return res, nil
}

func (m *Module) runBackend(ctx context.Context) (listings []models.Listing, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()
	return m.backend.Run(ctx)
}

// Cleanup releases everything the module holds. It is safe to call on a
// module that was never initialized and safe to call repeatedly.
func (m *Module) Cleanup() []error {
	return m.release(m.logger)
}

func (m *Module) release(logger arbor.ILogger) []error {
	diags := session.Release(logger, m.sess, m.cleaner())
	m.sess = nil
	m.backend = nil
	m.state = Uninitialized
	return diags
}

// cleaner keeps a nil backend a nil interface.
func (m *Module) cleaner() session.Cleaner {
	if m.backend == nil {
		return nil
	}
	return m.backend
}

func (m *Module) require() error {
	if m.state != Initialized || m.backend == nil {
		return fmt.Errorf("%s: %w", m.cfg.Name, ErrNotInitialized)
	}
	return nil
}

func (m *Module) normalize(l *models.Listing) {
	if l.Source == "" {
		l.Source = m.cfg.Name
	}
	l.ApplyDefaults()
}

// Info describes the module. It has no side effects.
func (m *Module) Info() Info {
	return Info{
		Name:      m.cfg.Name,
		BaseURL:   m.cfg.BaseURL,
		Timeout:   m.cfg.Timeout,
		TimeoutMs: m.cfg.Timeout.Milliseconds(),
	}
}

// IsAvailable reports whether the module can be invoked. Backends implementing
// scraper.Availability decide for themselves; otherwise it is always true.
// Before Initialize an uninitialized backend is built from the factory to
// answer, and a backend that cannot be built is unavailable.
func (m *Module) IsAvailable() bool {
	backend := m.backend
	if backend == nil {
		if m.factory == nil {
			return false
		}
		b, err := m.factory(m.cfg.Clone(), m.logger)
		if err != nil {
			m.logger.Debug().Err(err).Str("module", m.cfg.Name).Msg("Backend unavailable")
			return false
		}
		backend = b
	}
	if a, ok := backend.(scraper.Availability); ok {
		return a.IsAvailable()
	}
	return true
}

// LastError returns the cause of the most recent failed Initialize, or nil
// once an Initialize has succeeded.
func (m *Module) LastError() error { return m.lastErr }

// Name returns the configured module name.
func (m *Module) Name() string { return m.cfg.Name }

// Config returns a copy of the module configuration.
func (m *Module) Config() config.Config { return m.cfg.Clone() }

// Backend returns the current backend, nil unless initialized.
func (m *Module) Backend() scraper.Parser { return m.backend }

// Session returns the current session, nil unless initialized.
func (m *Module) Session() *session.Session { return m.sess }

// State returns the lifecycle state.
func (m *Module) State() State { return m.state }

// Initialized reports whether listing operations are allowed.
func (m *Module) Initialized() bool { return m.state == Initialized }
