package voucher

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zombor/lexiflow-mocks/internal/httpapi"
)

// apiKeyHeader carries the shared secret on every voucher request
const apiKeyHeader = "x-api-key"

// Server handles HTTP requests for the accounting API mock
type Server struct {
	service  *Service
	mux      *http.ServeMux
	registry *prometheus.Registry

	vouchersCreated prometheus.Counter
	authFailures    prometheus.Counter
}

// NewServer creates a new Server with default mux
func NewServer(service *Service) *Server {
	return NewServerWithMux(service, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, mux *http.ServeMux) *Server {
	s := &Server{
		service:  service,
		mux:      mux,
		registry: prometheus.NewRegistry(),
		vouchersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lexmock_vouchers_created_total",
			Help: "Vouchers accepted by the mock",
		}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lexmock_auth_failures_total",
			Help: "Requests rejected for a missing or wrong API key",
		}),
	}
	s.registry.MustRegister(s.vouchersCreated, s.authFailures)
	s.registerRoutes()
	return s
}

// requireAPIKey middleware
func (s *Server) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.service.Authorize(r.Header.Get(apiKeyHeader)); err != nil {
			s.authFailures.Inc()
			httpapi.WriteError(w, http.StatusUnauthorized, "Invalid API key")
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/v1/vouchers", s.requireAPIKey(s.handleCreateVoucher))
	s.mux.HandleFunc("GET /api/v1/vouchers", s.requireAPIKey(s.handleListVouchers))
	s.mux.HandleFunc("GET /healthz", httpapi.HandleHealthz)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context, addr string) error {
	return httpapi.ListenAndServe(ctx, addr, s.mux)
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
