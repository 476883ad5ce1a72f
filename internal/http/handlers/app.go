package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"neongen/internal/domain"
	"neongen/internal/generation"
	"neongen/internal/infra"
	"neongen/internal/providers/prompt"
	"neongen/internal/training"
)

// App bundles the handler dependencies. Constructed once in main and passed
// to the router.
type App struct {
	Logger    infra.Logger
	Config    *infra.Config
	Styles    domain.StyleRepository
	Analytics domain.AnalyticsRepository
	Submitter *training.Submitter
	Poller    *training.Poller
	Resolver  *generation.Resolver
	Suggester *prompt.StaticSuggester
}

type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data})
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(apiResponse{Success: false, Error: message})
}

// record bumps daily usage counters. Stats are advisory; failures are only
// logged.
func (a *App) record(ctx context.Context, counters map[string]int) {
	if a.Analytics == nil {
		return
	}
	day := time.Now().UTC().Format("2006-01-02")
	if err := a.Analytics.IncrementCounters(ctx, day, counters); err != nil {
		a.Logger.Warn().Err(err).Msg("stats: failed to record counters")
	}
}
