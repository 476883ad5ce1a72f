package handlers

import (
	"errors"
	"net/http"
	"time"

	"neongen/internal/domain"
)

// Stats returns the latest daily usage summary. A fresh deployment with no
// recorded activity yet gets an all-zero summary for today instead of a 404.
func (a *App) Stats(w http.ResponseWriter, r *http.Request) {
	summary, err := a.Analytics.GetSummary(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			now := time.Now().UTC()
			a.json(w, http.StatusOK, &domain.AnalyticsDaily{
				Day:       now.Format("2006-01-02"),
				CreatedAt: now,
				UpdatedAt: now,
			})
			return
		}
		a.Logger.Error().Err(err).Msg("stats: summary failed")
		a.error(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}
	a.json(w, http.StatusOK, summary)
}
