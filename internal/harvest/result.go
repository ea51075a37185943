package harvest

import (
	"encoding/json"
	"time"

	"github.com/ternarybob/arbor"

	"ListingHarvester/internal/models"
	"ListingHarvester/internal/session"
)

// Result is the outcome of one harvest run. On success Results is set (possibly
// empty) and Error is empty; on failure Error is set and Results is nil.
type Result struct {
	RunID       string           `json:"run_id"`
	Module      string           `json:"module"`
	Success     bool             `json:"success"`
	Processed   int              `json:"processed"`
	Results     []models.Listing `json:"-"`
	Error       string           `json:"error,omitempty"`
	Diagnostics []string         `json:"diagnostics,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	Duration    time.Duration    `json:"duration_ns"`
}

// MarshalJSON emits "results" only for successful runs, including empty ones.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	out := struct {
		plain
		Results *[]models.Listing `json:"results,omitempty"`
	}{plain: plain(r)}
	if r.Success {
		results := r.Results
		if results == nil {
			results = []models.Listing{}
		}
		out.Results = &results
	}
	return json.Marshal(out)
}

// Resources is whatever a module held when it failed. Either field may be nil.
type Resources struct {
	Session *session.Session
	Backend session.Cleaner
}

// HandleModuleError logs err against the module name, releases resources and
// returns the failure result. Release problems are attached as diagnostics and
// never replace err.
func HandleModuleError(logger arbor.ILogger, name string, err error, resources Resources) Result {
	logger.Error().Err(err).Str("module", name).Msg("Harvest module failed")

	diags := session.Release(logger, resources.Session, resources.Backend)

	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Result{
		Module:      name,
		Success:     false,
		Processed:   0,
		Error:       msg,
		Diagnostics: diagnostics(diags),
	}
}

func successResult(name string, listings []models.Listing, diags []error) Result {
	if listings == nil {
		listings = []models.Listing{}
	}
	return Result{
		Module:      name,
		Success:     true,
		Processed:   len(listings),
		Results:     listings,
		Diagnostics: diagnostics(diags),
	}
}

func diagnostics(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}
