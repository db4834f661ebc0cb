// server.go
package querier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/gigapi/gigapi-lakehouse/core"
	"github.com/gigapi/gigapi-lakehouse/tools"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Server represents the API server
type Server struct {
	Querier SQLQuerier
	Tools   *tools.Dispatcher
}

// NewServer creates a new server instance
func NewServer(q SQLQuerier, d *tools.Dispatcher) *Server {
	return &Server{Querier: q, Tools: d}
}

// QueryRequest represents a query API request
type QueryRequest struct {
	Query string `json:"query"`
}

// QueryResponse represents a query API response
type QueryResponse struct {
	Columns []string         `json:"columns"`
	Results []map[string]any `json:"results"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

var reqId int32

// Handler builds the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))
	r.Use(withRequestLogger)

	r.Get("/health", s.HandleHealth)
	r.Post("/query", s.HandleQuery)
	r.Get("/tools", s.HandleListTools)
	r.Post("/tools/{name}", s.HandleTool)
	return r
}

func withRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.WithDefaultLogger(r.Context(), fmt.Sprintf("req-%d", atomic.AddInt32(&reqId, 1)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// HandleQuery Handles the /query endpoint
func (s *Server) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		sendErrorResponse(w, "Invalid request body", "validation", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		sendErrorResponse(w, "Missing query parameter", "validation", http.StatusBadRequest)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	formatter, ok := formatters[format]
	if !ok {
		sendErrorResponse(w, fmt.Sprintf("Unknown format %q", format), "validation", http.StatusBadRequest)
		return
	}

	res, err := s.Querier.Query(r.Context(), req.Query)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	if err := formatter(res, w); err != nil {
		core.Errorf(r.Context(), "Failed to write response: %v", err)
	}
}

// HandleListTools lists the tool definitions.
func (s *Server) HandleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools.Definitions()})
}

// HandleTool runs one tool; the body is the tool's JSON input.
func (s *Server) HandleTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		sendErrorResponse(w, "Invalid request body", "validation", http.StatusBadRequest)
		return
	}
	out, err := s.Tools.Call(r.Context(), name, body)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleHealth is the health check endpoint
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) fail(ctx context.Context, w http.ResponseWriter, err error) {
	code := httpStatus(err)
	if code >= http.StatusInternalServerError {
		core.Errorf(ctx, "Request failed: %v", err)
	}
	kind := core.ErrorKind(err)
	if errors.Is(err, tools.ErrUnknownTool) {
		kind = "unknown_tool"
	}
	sendErrorResponse(w, err.Error(), kind, code)
}

func httpStatus(err error) int {
	if errors.Is(err, tools.ErrUnknownTool) {
		return http.StatusNotFound
	}
	switch core.ErrorKind(err) {
	case "unknown_table":
		return http.StatusNotFound
	case "validation":
		return http.StatusBadRequest
	case "timeout":
		return http.StatusGatewayTimeout
	case "connection", "query_execution":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Send an error response in JSON format
func sendErrorResponse(w http.ResponseWriter, message, kind string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Error: message, Kind: kind})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		core.Infof(ctx, "HTTP server listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
