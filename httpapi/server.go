package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	kogu "github.com/nguyen10t2/IT3180-20251-Group-6-sub001"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/metrics/export/prometheus"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/middleware"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/notify"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/store/sqlite"
)

// Options tunes the server surface.
type Options struct {
	// RefreshCookieName names the httpOnly refresh cookie. Defaults to
	// "kogu_refresh".
	RefreshCookieName string
	// RefreshCookieTTL caps the cookie lifetime. Should match the engine's
	// refresh TTL.
	RefreshCookieTTL time.Duration
	// SecureCookies marks the refresh cookie Secure. Enable outside local
	// development.
	SecureCookies bool
	// ExposeMetrics mounts the Prometheus text endpoint at /metrics.
	ExposeMetrics bool
}

// Server wires the auth engine and the SQLite store into an http.Handler.
type Server struct {
	engine *kogu.Engine
	store  *sqlite.Store
	mailer notify.Mailer
	logger *zap.Logger
	opts   Options
}

// NewServer builds a Server. logger may be nil; mailer must not be.
func NewServer(engine *kogu.Engine, store *sqlite.Store, mailer notify.Mailer, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RefreshCookieName == "" {
		opts.RefreshCookieName = "kogu_refresh"
	}
	if opts.RefreshCookieTTL <= 0 {
		opts.RefreshCookieTTL = 14 * 24 * time.Hour
	}
	return &Server{
		engine: engine,
		store:  store,
		mailer: mailer,
		logger: logger,
		opts:   opts,
	}
}

// Handler builds the routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	authed := middleware.Guard(s.engine)
	manager := middleware.RequireRole(kogu.RoleManager)
	accountant := middleware.RequireRole(kogu.RoleAccountant)
	resident := middleware.RequireRole(kogu.RoleResident)
	managerOrResident := middleware.RequireRole(kogu.RoleManager, kogu.RoleResident)

	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/register/accept", s.handleRegisterAccept)
	mux.HandleFunc("POST /auth/resend-otp", s.handleResendOTP)
	mux.HandleFunc("POST /auth/forgot-password", s.handleForgotPassword)
	mux.HandleFunc("POST /auth/forgot-password/accept", s.handleForgotPasswordAccept)
	mux.HandleFunc("POST /auth/reset-password", s.handleResetPassword)

	mux.Handle("GET /users/me", authed(http.HandlerFunc(s.handleMe)))
	mux.Handle("POST /users/me/password", authed(http.HandlerFunc(s.handleChangePassword)))
	mux.Handle("GET /users/residents", authed(manager(http.HandlerFunc(s.handleListResidents))))
	mux.Handle("PATCH /users/{id}/status", authed(manager(http.HandlerFunc(s.handleSetUserStatus))))

	mux.Handle("POST /apartments", authed(manager(http.HandlerFunc(s.handleCreateApartment))))
	mux.Handle("GET /apartments", authed(http.HandlerFunc(s.handleListApartments)))
	mux.Handle("PUT /apartments/{id}/resident", authed(manager(http.HandlerFunc(s.handleAssignResident))))

	mux.Handle("POST /invoices", authed(accountant(http.HandlerFunc(s.handleCreateInvoice))))
	mux.Handle("GET /invoices", authed(http.HandlerFunc(s.handleListInvoices)))
	mux.Handle("GET /invoices/{id}", authed(http.HandlerFunc(s.handleGetInvoice)))
	mux.Handle("POST /invoices/{id}/pay", authed(accountant(http.HandlerFunc(s.handleMarkInvoicePaid))))

	mux.Handle("POST /feedback", authed(resident(http.HandlerFunc(s.handleCreateFeedback))))
	mux.Handle("GET /feedback", authed(managerOrResident(http.HandlerFunc(s.handleListFeedback))))
	mux.Handle("PATCH /feedback/{id}", authed(manager(http.HandlerFunc(s.handleUpdateFeedback))))

	mux.Handle("POST /notifications", authed(manager(http.HandlerFunc(s.handleCreateNotification))))
	mux.Handle("GET /notifications", authed(http.HandlerFunc(s.handleListNotifications)))
	mux.Handle("POST /notifications/{id}/read", authed(http.HandlerFunc(s.handleMarkNotificationRead)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.opts.ExposeMetrics {
		mux.Handle("GET /metrics", prometheus.NewExporter(s.engine).Handler())
	}

	return s.logRequests(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", recorder.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
