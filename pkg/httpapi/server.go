// Package httpapi is the thin REST facade mapping LocalZure's HTTP
// surface onto the Key Vault engine and OAuth authority: it decodes
// requests, delegates to pkg/keyvault / pkg/oauth, and maps typed
// errors back to Azure's {"error":{"code","message"}} response shape.
//
// It carries no business logic of its own: a mux built once at
// construction time, handlers that do just enough to bridge HTTP and
// the engine.
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/oladejiayo/localzure-sub003/pkg/keyvault"
	"github.com/oladejiayo/localzure-sub003/pkg/log"
	"github.com/oladejiayo/localzure-sub003/pkg/metrics"
	"github.com/oladejiayo/localzure-sub003/pkg/oauth"
)

// DefaultAPIVersion is the Key Vault REST API version this facade
// emulates. Handlers never read the api-version query parameter, so
// requests that omit it or send another value are served the same way.
const DefaultAPIVersion = "7.3"

// Server is the LocalZure HTTP facade: a Key Vault engine, an OAuth
// issuer, and a composed mux serving both plus /health, /ready and
// /metrics.
type Server struct {
	engine *keyvault.Engine
	issuer *oauth.Issuer
	mux    *http.ServeMux
}

// NewServer builds the facade's mux. baseURL roots the OIDC discovery
// document's endpoint URLs (e.g. "http://localhost:8080").
func NewServer(engine *keyvault.Engine, issuer *oauth.Issuer, baseURL string) *Server {
	s := &Server{engine: engine, issuer: issuer, mux: http.NewServeMux()}
	s.registerRoutes(baseURL)
	return s
}

// Handler returns the facade's http.Handler, instrumented for
// per-route request count and latency.
func (s *Server) Handler() http.Handler {
	return instrument(s.mux)
}

// Start runs the facade on addr until the process is terminated or
// ListenAndServe returns an error.
func (s *Server) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	log.Logger.Info().Str("addr", addr).Msg("http facade listening")
	return server.ListenAndServe()
}

// instrument wraps h with the per-route counters and latency
// histogram declared in pkg/metrics.
func instrument(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)

		route := routeLabel(r.URL.Path)
		metrics.APIRequestsTotal.WithLabelValues(r.Method, route, http.StatusText(rec.status)).Inc()
		timer.ObserveDurationVec(metrics.APIRequestDuration, route)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// routeLabel collapses a concrete request path into its route
// template, so per-route metrics stay low-cardinality instead of one
// series per distinct vault/secret name.
func routeLabel(path string) string {
	if strings.HasPrefix(path, "/.localzure/oauth/") || path == "/.well-known/openid-configuration" {
		return path
	}
	if strings.HasPrefix(path, "/.localzure/debug/") {
		return "/.localzure/debug/{vault}/secrets/{name}/writethrough"
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 {
		return path
	}

	switch segments[1] {
	case "secrets":
		switch len(segments) {
		case 2:
			return "/{vault}/secrets"
		case 3:
			if segments[2] == "versions" {
				return path
			}
			return "/{vault}/secrets/{name}"
		case 4:
			if segments[3] == "versions" {
				return "/{vault}/secrets/{name}/versions"
			}
			return "/{vault}/secrets/{name}/{version}"
		}
	case "deletedsecrets":
		switch len(segments) {
		case 2:
			return "/{vault}/deletedsecrets"
		case 3:
			return "/{vault}/deletedsecrets/{name}"
		case 4:
			return "/{vault}/deletedsecrets/{name}/recover"
		}
	}
	return path
}
