package handlers

import (
	"net/http"
)

// Health reports liveness. It deliberately does not reach the database or the
// provider; a degraded provider should not make the whole service look down.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "neongen",
	})
}
