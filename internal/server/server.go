package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/Siva2k2k/es-tm/internal/billing"
	"github.com/Siva2k2k/es-tm/internal/invoice"
	"github.com/Siva2k2k/es-tm/internal/timesheet"
)

// Server handles HTTP requests for timesheets, rates, and invoices
type Server struct {
	timesheets *timesheet.Service
	rates      *billing.Catalog
	invoices   *invoice.Service
	basicAuth  BasicAuth
	router     chi.Router
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with a fresh chi router
func NewServer(timesheets *timesheet.Service, rates *billing.Catalog, invoices *invoice.Service, basicAuth BasicAuth) *Server {
	return NewServerWithRouter(timesheets, rates, invoices, basicAuth, chi.NewRouter())
}

// NewServerWithRouter creates a new Server on a caller supplied router
func NewServerWithRouter(timesheets *timesheet.Service, rates *billing.Catalog, invoices *invoice.Service, basicAuth BasicAuth, router chi.Router) *Server {
	s := &Server{
		timesheets: timesheets,
		rates:      rates,
		invoices:   invoices,
		basicAuth:  basicAuth,
		router:     router,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.basicAuth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.basicAuth.Password)) == 1
	return userOK && passOK
}

// requireAuth middleware
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Timesheets"`)
			renderError(w, r, errUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// cors sets CORS headers and answers preflight requests
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+HeaderActorID+", "+HeaderActorRole)
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func (s *Server) registerRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors)

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(withActor)

		r.Route("/timesheets", func(r chi.Router) {
			r.Get("/", s.handleListTimesheets)
			r.With(requireActor).Post("/", s.handleCreateTimesheet)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTimesheet)
				r.Group(func(r chi.Router) {
					r.Use(requireActor)
					r.Delete("/", s.handleDeleteTimesheet)
					r.Put("/entries", s.handleReplaceEntries)
					r.Post("/submit", s.handleSubmitTimesheet)
					r.Post("/decisions", s.handleTimesheetDecision)
					r.Post("/billed", s.handleMarkBilled)
				})
			})
		})
		r.With(requireActor).Post("/entries", s.handleAddEntry)

		r.Route("/rates", func(r chi.Router) {
			r.Get("/", s.handleListRates)
			r.Get("/resolve", s.handleResolveRate)
			r.With(requireActor).Put("/", s.handleUpsertRate)
			r.With(requireActor).Delete("/{id}", s.handleDeleteRate)
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", s.handleListInvoices)
			r.With(requireActor).Post("/", s.handleGenerateInvoice)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetInvoice)
				r.Group(func(r chi.Router) {
					r.Use(requireActor)
					r.Post("/submit", s.handleSubmitInvoice)
					r.Post("/decisions", s.handleInvoiceDecision)
					r.Post("/send", s.handleSendInvoice)
					r.Post("/pay", s.handlePayInvoice)
					r.Post("/cancel", s.handleCancelInvoice)
				})
			})
		})
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
