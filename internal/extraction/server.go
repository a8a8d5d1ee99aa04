package extraction

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zombor/lexiflow-mocks/internal/httpapi"
)

// Server handles HTTP requests for the OCR mock
type Server struct {
	service  *Service
	mux      *http.ServeMux
	registry *prometheus.Registry

	extractions *prometheus.CounterVec
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
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ocrmock_extractions_total",
			Help: "Successful extractions by how the fields were produced",
		}, []string{"source"}),
	}
	s.registry.MustRegister(s.extractions)
	s.registerRoutes()
	return s
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /ocr/extract", s.handleExtract)
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
