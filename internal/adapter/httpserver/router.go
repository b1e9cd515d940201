package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/hireval/internal/adapter/observability"
)

// ParseOrigins splits a comma-separated origin list, trimming spaces. Empty
// input allows everything.
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter assembles middleware and routes around the Server.
func (s *Server) BuildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(Recoverer())
	r.Use(RequestID())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: ParseOrigins(s.Cfg.CORSAllowOrigins),
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Route("/v1/evaluations", func(vr chi.Router) {
		vr.Group(func(wr chi.Router) {
			wr.Use(httprate.LimitByIP(s.Cfg.RateLimitPerMin, time.Minute))
			wr.Post("/", s.SubmitHandler())
			wr.Delete("/{id}", s.CancelHandler())
		})
		vr.Get("/", s.ListHandler())
		vr.Get("/{id}", s.GetHandler())
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", s.ReadyzHandler())
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return SecurityHeaders(r)
}
