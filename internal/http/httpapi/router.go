package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"neongen/internal/http/handlers"
	"neongen/internal/middleware"
)

// RouterOptions carries the pieces the middleware chain needs beyond the
// handler container itself.
type RouterOptions struct {
	CountryLookup   middleware.CountryLookup
	AllowedOrigins  []string
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Country(opts.CountryLookup),
		middleware.Logger(app.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}

	r.Get("/api/health", app.Health)

	r.Route("/api/styles", func(r chi.Router) {
		r.Get("/", app.StylesList)
		r.Post("/train", app.StylesTrain)
		r.Get("/train/{jobID}/status", app.StylesTrainStatus)
		r.Get("/{styleID}/prompts", app.StylesPrompts)
		r.Delete("/{styleID}", app.StylesDelete)
	})

	r.Post("/api/images/generate", app.ImagesGenerate)
	r.Get("/api/stats", app.Stats)

	return r
}
