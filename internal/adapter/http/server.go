package adapthttp

import (
	"net/http"
	"time"

	"medreminder/internal/app"
	"medreminder/internal/domain"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	meds       *app.MedicationService
	reports    *app.ReportService
	authSvc    *app.AuthService
	webDir     string
	log        zerolog.Logger
	loc        *time.Location
	now        func() time.Time
	windowDays int
	oidcConfig OIDCConfig
	limiter    *loginLimiter
	metrics    *metrics
	trustProxy bool

	disableAuth bool
}

// Options configures a Server. Zero values fall back to defaults.
type Options struct {
	WebDir     string
	Logger     zerolog.Logger
	Location   *time.Location
	OIDC       OIDCConfig
	LoginRate  float64
	LoginBurst int
	WindowDays int

	// TrustProxy takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable only behind a reverse proxy that sets them.
	TrustProxy bool

	// Now overrides the clock used to resolve "today".
	Now func() time.Time
}

// New creates a Server wired to the given application services.
func New(meds *app.MedicationService, reports *app.ReportService, authSvc *app.AuthService, opts Options) *Server {
	s := &Server{
		meds:       meds,
		reports:    reports,
		authSvc:    authSvc,
		webDir:     opts.WebDir,
		log:        opts.Logger,
		loc:        opts.Location,
		now:        opts.Now,
		windowDays: opts.WindowDays,
		oidcConfig: opts.OIDC,
		trustProxy: opts.TrustProxy,
		limiter:    newLoginLimiter(opts.LoginRate, opts.LoginBurst),
		metrics:    newMetrics(),
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.windowDays <= 0 {
		s.windowDays = domain.DefaultWindowDays
	}
	return s
}

// WithoutAuth disables authentication. Every request runs as user 1.
func (s *Server) WithoutAuth() *Server {
	s.disableAuth = true
	return s
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	if s.trustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(s.requestID)
	r.Use(s.loggingMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(s.metrics.middleware)
	r.Use(withNoCache)

	r.Handle("/metrics", s.metrics.handler())

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		})
		api.Get("/config", s.handleConfig)

		api.Route("/auth", func(ar chi.Router) {
			ar.With(s.limitLogin).Post("/login", s.handleLogin)
			ar.Post("/logout", s.handleLogout)
			ar.With(s.limitLogin).Post("/setup", s.handleSetupUser)
			ar.Get("/sso/login", s.handleSSOLogin)
			ar.Get("/sso/callback", s.handleSSOCallback)
		})

		api.Group(func(pr chi.Router) {
			pr.Use(s.authMiddleware)

			pr.Route("/medications", func(mr chi.Router) {
				mr.Get("/", s.handleListMedications)
				mr.Post("/", s.handleCreateMedication)
				mr.Get("/{id}", s.handleGetMedication)
				mr.Delete("/{id}", s.handleDeleteMedication)
				mr.Put("/{id}/schedule", s.handleUpdateSchedule)
				mr.Post("/{id}/record", s.handleRecordDay)
				mr.Post("/{id}/doses", s.handleRecordDose)
				mr.Get("/{id}/doses", s.handleListDoses)
			})

			pr.Get("/reports/weekly", s.handleWeeklyReport)
			pr.Get("/reports/daily", s.handleDailyReport)
		})
	})

	r.Handle("/*", spaFromDisk(s.webDir))
	return r
}

// today is the current civil date in the server's location.
func (s *Server) today() time.Time {
	return domain.Day(s.now().In(s.loc))
}
