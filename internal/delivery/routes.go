package delivery

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-Id"

// RouterConfig holds the HTTP settings of the router.
type RouterConfig struct {
	AllowedOrigins []string
	RateLimit      int // requests per minute per client IP, 0 disables
}

// NewRouter wires the routes and middleware.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(h.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{
			RequestIDHeader,
			"Content-Disposition",
			"X-Pagesweep-Job-Id",
			"X-Pagesweep-Total-Pages",
			"X-Pagesweep-Removed-Pages",
			"X-Pagesweep-Kept-Pages",
		},
	}))

	r.Get("/healthz", h.Health)

	r.Route("/v1", func(v1 chi.Router) {
		if cfg.RateLimit > 0 {
			v1.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
		}
		v1.Post("/clean", h.Clean)
		v1.Post("/analyze", h.Analyze)
	})
	return r
}

// echoRequestID copies the ID assigned by middleware.RequestID onto the
// response.
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(RequestIDHeader, middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r)
	})
}

// RequestIDFrom returns the request ID assigned by middleware.RequestID.
func RequestIDFrom(ctx context.Context) string {
	return middleware.GetReqID(ctx)
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Info("request",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
