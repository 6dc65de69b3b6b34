package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/finbridge/mesh-link-gateway/internal/config"
	"github.com/finbridge/mesh-link-gateway/linksession"
	"github.com/finbridge/mesh-link-gateway/mesh"
)

// Server is the link gateway: it issues link tokens (from the vendor API or
// the built-in sandbox), proxies pay and portfolio calls, and tracks link
// sessions in memory.
type Server struct {
	env      string // Environment (e.g., "DEV", "production")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	vendor   *mesh.Client
	sandbox  *mesh.Sandbox
	sessions linksession.Repo
	verifier *oidc.IDTokenVerifier
	nowTime  func() time.Time
}

// New creates a gateway server. The vendor client is built from configured
// credentials; without them the server runs in sandbox mode, which needs a
// sandbox signing key. Neither configured is a startup error.
func New(cfg config.Config, sessionRepo linksession.Repo) (*Server, error) {
	s := &Server{
		mux:      http.NewServeMux(),
		config:   cfg,
		vendor:   mesh.NewClient(cfg),
		sessions: sessionRepo,
		nowTime:  time.Now,
	}
	s.env = cfg.GetEnv()

	if s.vendor == nil {
		s.sandbox = mesh.NewSandbox(envBaseURL(cfg), cfg.GetSandboxSigningKey(), cfg.GetLinkTokenTTL())
		if s.sandbox == nil {
			return nil, fmt.Errorf("[Server New] neither vendor credentials nor a sandbox signing key are configured")
		}
	}

	if issuer := cfg.GetOIDCIssuer(); issuer != "" {
		provider, err := oidc.NewProvider(context.Background(), issuer)
		if err != nil {
			return nil, fmt.Errorf("[Server New] failed to configure OIDC bearer auth: %w", err)
		}
		s.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.GetOIDCAudience()})
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// SweepSessions drops expired link sessions; run it periodically.
func (s *Server) SweepSessions() int {
	return s.sessions.DeleteExpired(s.nowTime())
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}

// envBaseURL pulls the externally visible base URL out of the config when
// it carries one; the sandbox uses it as the token issuer.
func envBaseURL(cfg config.Config) string {
	if envCfg, ok := cfg.(interface{ GetBaseURL() string }); ok {
		return envCfg.GetBaseURL()
	}
	return "mesh-link-gateway"
}
