package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/spintune/authcore"
	"github.com/spintune/authcore/middleware"
)

const maxBodyBytes = 1 << 20

// Options tunes the router. The zero value is usable.
type Options struct {
	Logger *zap.Logger
	// Strict makes guarded routes require the user's latest session.
	Strict bool
	// Metrics, when set, is mounted at GET /metrics.
	Metrics http.Handler
}

type handler struct {
	engine *authcore.Engine
	logger *zap.Logger
}

// NewRouter returns the HTTP binding for engine.
func NewRouter(engine *authcore.Engine, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{engine: engine, logger: logger}

	guard := middleware.RequireAuth(engine)
	if opts.Strict {
		guard = middleware.RequireStrict(engine)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(accessLog(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/refresh", h.refresh)
		r.Post("/mfa/verify", h.verifyMFA)

		r.Group(func(r chi.Router) {
			r.Use(guard)
			r.Post("/mfa/setup", h.setupMFA)
			r.Post("/logout", h.logout)
			r.Get("/me", h.profile)
		})
	})

	r.Route("/mfa", func(r chi.Router) {
		r.Use(guard)
		r.Post("/disable", h.disableMFA)
		r.Post("/backup-codes", h.regenerateBackupCodes)
	})

	return r
}

func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimw.GetReqID(r.Context())),
			)
		})
	}
}
