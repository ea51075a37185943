package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"

	"ListingHarvester/internal/app"
	"ListingHarvester/internal/models"
	"ListingHarvester/internal/storage"
)

// ModuleLister reports the configured harvest modules.
type ModuleLister interface {
	ModuleInfos(site string) []app.ModuleInfo
}

// NewHandler returns the API routes.
func NewHandler(sink storage.Sink, modules ModuleLister, logger arbor.ILogger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/listings", listingsHandler(sink, logger))
	mux.HandleFunc("/modules", modulesHandler(modules))
	return mux
}

// Start serves the API on addr until ctx is cancelled.
func Start(ctx context.Context, addr string, sink storage.Sink, modules ModuleLister, logger arbor.ILogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewHandler(sink, modules, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Msg("Starting API server, endpoints: /listings /modules")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func listingsHandler(sink storage.Sink, logger arbor.ILogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// 1. Parse Pagination Parameters
		queryParams := r.URL.Query()
		page, _ := strconv.Atoi(queryParams.Get("page"))
		if page < 1 {
			page = 1
		}
		limit, _ := strconv.Atoi(queryParams.Get("limit"))
		if limit < 1 {
			limit = 20 // Default limit
		}
		offset := (page - 1) * limit

		filters := models.ListingFilters{Source: queryParams.Get("source"), Limit: limit, Offset: offset}

		// 2. Get Total Count for Pagination
		total, err := sink.CountListings(r.Context(), filters)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to count listings")
			http.Error(w, "Failed to count listings", http.StatusInternalServerError)
			return
		}
		totalPages := int(math.Ceil(float64(total) / float64(limit)))

		// 3. Get Paginated Listings
		listings, err := sink.ListListings(r.Context(), filters)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to get listings")
			http.Error(w, "Failed to get listings", http.StatusInternalServerError)
			return
		}

		response := models.ListingsResponse{
			Data: listings,
			Pagination: models.Pagination{
				TotalPages:  totalPages,
				CurrentPage: page,
				Total:       total,
			},
		}
		writeJSON(w, response)
	}
}

func modulesHandler(modules ModuleLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, modules.ModuleInfos(r.URL.Query().Get("site")))
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
