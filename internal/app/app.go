package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"ListingHarvester/internal/harvest"
	"ListingHarvester/internal/scraper"
	"ListingHarvester/internal/scraper/mock"
	"ListingHarvester/internal/scraper/selector"
	"ListingHarvester/internal/session"
	"ListingHarvester/internal/storage"
	"ListingHarvester/pkg/config"
	"ListingHarvester/utils"
)

// App is the main application structure holding all dependencies.
type App struct {
	Config   *config.File
	Sink     storage.Sink
	Registry *scraper.Registry
	Logger   arbor.ILogger

	// Engine overrides the per-site engine choice when set.
	Engine session.Engine
}

// ModuleInfo describes one configured site for the API.
type ModuleInfo struct {
	harvest.Info
	Backend   string `json:"backend"`
	Engine    string `json:"engine"`
	Available bool   `json:"available"`
}

// NewRegistry returns a registry holding every built-in backend.
func NewRegistry() *scraper.Registry {
	reg := scraper.NewRegistry()
	_ = reg.Register(selector.Name, selector.New)
	_ = reg.Register(mock.Name, mock.New)
	return reg
}

// New creates a new application instance.
func New(cfg *config.File, sink storage.Sink, logger arbor.ILogger) *App {
	return &App{
		Config:   cfg,
		Sink:     sink,
		Registry: NewRegistry(),
		Logger:   logger,
	}
}

// Modules builds an uninitialized module per configured site. An empty site
// selects every site.
func (a *App) Modules(site string) ([]*harvest.Module, error) {
	var modules []*harvest.Module
	for _, opts := range a.Config.Sites {
		if site != "" && opts.Name != site {
			continue
		}
		cfg := config.Build(opts)
		modules = append(modules, harvest.NewFromRegistry(cfg, a.Registry, a.Engine, a.Logger))
	}
	if site != "" && len(modules) == 0 {
		return nil, fmt.Errorf("site %q is not configured", site)
	}
	return modules, nil
}

// RunOnce runs one harvest cycle: every selected module runs to completion,
// several at a time, and its listings are saved to the sink.
func (a *App) RunOnce(ctx context.Context, site string) ([]harvest.Result, error) {
	modules, err := a.Modules(site)
	if err != nil {
		return nil, err
	}
	if len(modules) == 0 {
		a.Logger.Warn().Msg("No sites configured, nothing to harvest")
		return nil, nil
	}

	a.Logger.Info().Int("modules", len(modules)).Msg("--- Starting harvest cycle ---")

	numWorkers := utils.GetOptimalWorkerCount(a.Config.Scraper.Workers, a.Logger)
	if numWorkers > len(modules) {
		numWorkers = len(modules)
	}

	jobs := make(chan int, len(modules))
	results := make([]harvest.Result, len(modules))

	var wg sync.WaitGroup
	for w := 1; w <= numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = a.runModule(ctx, modules[i])
			}
		}()
	}

	for i := range modules {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	a.Logger.Info().Int("modules", len(modules)).Int("succeeded", succeeded).Msg("--- Harvest cycle finished ---")
	return results, nil
}

func (a *App) runModule(ctx context.Context, m *harvest.Module) harvest.Result {
	if !m.Initialize(ctx) {
		m.Cleanup()
		err := fmt.Errorf("%s: initialization failed", m.Name())
		if cause := m.LastError(); cause != nil {
			err = fmt.Errorf("%s: initialization failed: %w", m.Name(), cause)
		}
		return harvest.HandleModuleError(a.Logger, m.Name(), err, harvest.Resources{})
	}

	res, err := m.Run(ctx)
	if err != nil {
		m.Cleanup()
		return harvest.HandleModuleError(a.Logger, m.Name(), err, harvest.Resources{})
	}
	if !res.Success || a.Sink == nil {
		return res
	}

	saved, err := a.Sink.SaveListings(ctx, res.Results)
	if err != nil {
		a.Logger.Error().Err(err).Str("module", m.Name()).Msg("Failed to save listings")
		res.Diagnostics = append(res.Diagnostics, "save: "+err.Error())
		return res
	}
	a.Logger.Info().Str("module", m.Name()).Int("processed", res.Processed).Int("saved", saved).Msg("Listings saved")
	return res
}

// RunDaemon runs a cycle immediately and then on the configured cron
// schedule until ctx is cancelled.
func (a *App) RunDaemon(ctx context.Context, site string) error {
	schedule := a.Config.Scraper.Schedule
	if schedule == "" {
		schedule = config.DefaultFile().Scraper.Schedule
	}

	var mu sync.Mutex
	cycle := func() {
		if !mu.TryLock() {
			a.Logger.Warn().Msg("Previous harvest cycle still running, skipping")
			return
		}
		defer mu.Unlock()
		if _, err := a.RunOnce(ctx, site); err != nil {
			a.Logger.Error().Err(err).Msg("Harvest cycle failed")
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, cycle); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	a.Logger.Info().Str("schedule", schedule).Msg("Harvest daemon started")
	cycle()
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	a.Logger.Info().Msg("Harvest daemon stopped")
	return nil
}

// ModuleInfos describes the configured sites without initializing them.
func (a *App) ModuleInfos(site string) []ModuleInfo {
	modules, err := a.Modules(site)
	if err != nil {
		return []ModuleInfo{}
	}
	infos := make([]ModuleInfo, 0, len(modules))
	for _, m := range modules {
		cfg := m.Config()
		infos = append(infos, ModuleInfo{
			Info:      m.Info(),
			Backend:   cfg.Backend,
			Engine:    cfg.Engine,
			Available: m.IsAvailable(),
		})
	}
	return infos
}
