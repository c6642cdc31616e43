package internal

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kazz187/buildingdesk/internal/auth"
	"github.com/kazz187/buildingdesk/internal/config"
	"github.com/kazz187/buildingdesk/pkg/cerr"
	"github.com/kazz187/buildingdesk/pkg/clog"
)

// RouteRegistrar is implemented by every domain server.
type RouteRegistrar interface {
	Routes(r chi.Router)
}

type Server struct {
	mu     sync.Mutex
	server *http.Server
	closed bool

	env     *config.BaseEnv
	tokens  *auth.JWTManager
	checker grpchealth.Checker
	routes  []RouteRegistrar
}

func NewServer(env *config.BaseEnv, tokens *auth.JWTManager, checker grpchealth.Checker, routes ...RouteRegistrar) *Server {
	return &Server{
		env:     env,
		tokens:  tokens,
		checker: checker,
		routes:  routes,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(
			middleware.RequestID,
			middleware.RealIP,
			clog.SlogChiMiddleware(clog.WithChiFilter(clog.DefaultChiHealthCheckFilter)),
			cerr.NewJSONResponseChiMiddleware(),
			auth.Middleware(s.tokens),
		)
		for _, rr := range s.routes {
			rr.Routes(r)
		}
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
		})
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/api/", r)
	mux.Handle(grpchealth.NewHandler(s.checker, connect.WithInterceptors(
		clog.NewSlogConnectUnaryInterceptor(clog.WithConnectFilter(clog.FailedHealthCheckFilter)),
		cerr.NewConvertConnectErrorInterceptor(),
	)))

	return cors.New(cors.Options{
		AllowedOrigins:   s.env.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Connect-Protocol-Version"},
		AllowCredentials: true,
	}).Handler(mux)
}

// ListenAndServe serves until Shutdown. ctx becomes the base context of
// every request. It returns http.ErrServerClosed once Shutdown was called,
// including when Shutdown ran first.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return http.ErrServerClosed
	}
	srv := &http.Server{
		Addr:        addr,
		Handler:     h2c.NewHandler(s.Handler(), &http2.Server{}),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}
	s.server = srv
	s.mu.Unlock()

	slog.Info("starting server", "addr", addr)
	return srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// DependencyChecker reports NOT_SERVING while any dependency fails to ping.
type DependencyChecker struct {
	deps map[string]Pinger
}

func NewDependencyChecker(deps map[string]Pinger) *DependencyChecker {
	return &DependencyChecker{deps: deps}
}

var _ grpchealth.Checker = (*DependencyChecker)(nil)

func (c *DependencyChecker) Check(ctx context.Context, _ *grpchealth.CheckRequest) (*grpchealth.CheckResponse, error) {
	for name, dep := range c.deps {
		if err := dep.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
			return &grpchealth.CheckResponse{Status: grpchealth.StatusNotServing}, nil
		}
	}
	return &grpchealth.CheckResponse{Status: grpchealth.StatusServing}, nil
}
