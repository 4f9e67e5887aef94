// Package api exposes the gateway's REST surface: master-data CRUD, the
// checkout path, login, remote-log ingestion, and the WebSocket upgrade
// endpoint. All handlers reply JSON; errors are {"error": "..."}.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/posai/scan-gateway/internal/auth"
	"github.com/posai/scan-gateway/internal/logsink"
	"github.com/posai/scan-gateway/internal/store"
	"github.com/posai/scan-gateway/pb"
)

// StatsBackend is the slice of the inference pool the REST layer needs.
type StatsBackend interface {
	Size() int
	GetServerStats(ctx context.Context) (*pb.ServerStats, error)
}

// LogSink accepts remote-log batches.
type LogSink interface {
	Append(source string, records []logsink.Record) error
}

// Server bundles the REST dependencies. Handlers hang off this struct; no
// global state.
type Server struct {
	store *store.Store
	auth  *auth.Authority
	pool  StatsBackend
	sink  LogSink

	// wsHandler is mounted at wsPath so the frame stream shares the port.
	wsHandler http.Handler
	wsPath    string
}

// NewServer wires the REST surface.
func NewServer(st *store.Store, authority *auth.Authority, pool StatsBackend, sink LogSink, wsPath string, wsHandler http.Handler) *Server {
	return &Server{
		store:     st,
		auth:      authority,
		pool:      pool,
		sink:      sink,
		wsPath:    wsPath,
		wsHandler: wsHandler,
	}
}

// Router builds the mux router with CORS and JSON error handlers.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	r.HandleFunc("/login", s.handleLogin).Methods("POST", "OPTIONS")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/remote-log", s.handleRemoteLog).Methods("POST", "OPTIONS")

	if s.wsHandler != nil {
		r.Handle(s.wsPath, s.wsHandler)
	}

	// Authenticated resources.
	r.HandleFunc("/products", s.withAuth(s.handleListProducts)).Methods("GET")
	r.HandleFunc("/products", s.withAuth(s.handleCreateProduct)).Methods("POST", "OPTIONS")
	r.HandleFunc("/products/{id:[0-9]+}", s.withAuth(s.handleGetProduct)).Methods("GET")
	r.HandleFunc("/products/{id:[0-9]+}", s.withAuth(s.handleUpdateProduct)).Methods("PUT", "OPTIONS")
	r.HandleFunc("/products/{id:[0-9]+}", s.withAuth(s.handleDeleteProduct)).Methods("DELETE", "OPTIONS")

	r.HandleFunc("/categories", s.withAuth(s.handleListCategories)).Methods("GET")
	r.HandleFunc("/categories", s.withAuth(s.handleCreateCategory)).Methods("POST", "OPTIONS")
	r.HandleFunc("/categories/{id:[0-9]+}", s.withAuth(s.handleGetCategory)).Methods("GET")
	r.HandleFunc("/categories/{id:[0-9]+}", s.withAuth(s.handleUpdateCategory)).Methods("PUT", "OPTIONS")
	r.HandleFunc("/categories/{id:[0-9]+}", s.withAuth(s.handleDeleteCategory)).Methods("DELETE", "OPTIONS")

	r.HandleFunc("/transactions", s.withAuth(s.handleCheckout)).Methods("POST", "OPTIONS")
	r.HandleFunc("/transactions", s.withAuth(s.handleListTransactions)).Methods("GET")
	r.HandleFunc("/transactions/summary", s.withAuth(s.handleTransactionSummary)).Methods("GET")
	r.HandleFunc("/transactions/{id:[0-9]+}", s.withAuth(s.handleGetTransaction)).Methods("GET")
	r.HandleFunc("/transactions/{id:[0-9]+}/items", s.withAuth(s.handleTransactionItems)).Methods("GET")
	r.HandleFunc("/transactions/{id:[0-9]+}/cancel", s.withAuth(s.handleCancelTransaction)).Methods("POST", "OPTIONS")

	r.HandleFunc("/inference/stats", s.withAuth(s.handleInferenceStats)).Methods("GET")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Preflight requests hit this when the route matched a different
		// method set; answer them permissively.
		if r.Method == http.MethodOptions {
			setCORSHeaders(w)
			w.WriteHeader(http.StatusOK)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// contextKey keeps claims out of other packages' context namespaces.
type contextKey struct{}

// withAuth verifies the bearer token and injects claims. All failures reply
// a uniform 401 with no reason disclosed.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.BearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		claims, err := s.auth.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), contextKey{}, claims)
		next(w, r.WithContext(ctx))
	}
}

// claimsFrom returns the verified claims placed by withAuth.
func claimsFrom(r *http.Request) *auth.Claims {
	c, _ := r.Context().Value(contextKey{}).(*auth.Claims)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
