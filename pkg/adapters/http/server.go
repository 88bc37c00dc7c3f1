// Package http exposes a Bridge over a JSON API routed with chi.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/docbridge"
	"github.com/aretw0/docbridge/api"
	"github.com/aretw0/docbridge/internal/logging"
	"github.com/aretw0/docbridge/pkg/accessor"
	"github.com/aretw0/docbridge/pkg/domain"
	"github.com/aretw0/docbridge/pkg/session"
	"github.com/go-chi/chi/v5"
)

// MaxBodyBytes bounds request bodies (node templates and scripts).
const MaxBodyBytes = 1 << 20

// Server serves the documents of one Bridge.
type Server struct {
	Bridge  *docbridge.Bridge
	Streams *StreamManager

	metrics http.Handler
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewServer creates a Server for the bridge.
func NewServer(bridge *docbridge.Bridge, opts ...Option) *Server {
	server := &Server{
		Bridge:  bridge,
		Streams: NewStreamManager(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}
	server.Streams.logger = server.logger
	return server
}

// NewHandler creates a new HTTP handler for the bridge.
func NewHandler(bridge *docbridge.Bridge, opts ...Option) http.Handler {
	return NewServer(bridge, opts...).Routes()
}

// Routes builds the router.
func (server *Server) Routes() http.Handler {
	return enableCORS(server.router())
}

// router lists every route of api/openapi.yaml.
func (server *Server) router() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)
	r.Get("/openapi.yaml", server.GetOpenAPI)
	if server.metrics != nil {
		r.Method(http.MethodGet, "/metrics", server.metrics)
	}

	r.Route("/documents", func(r chi.Router) {
		r.Get("/", server.ListDocuments)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", server.GetDocument)
			r.Delete("/", server.DeleteDocument)
			r.Get("/events", server.SubscribeEvents)
			r.Post("/scripts", server.RunScript)
			r.Get("/items", server.GetItem)
			r.Get("/items/*", server.GetItem)
			r.Put("/items/*", server.PutItem)
			r.Delete("/items/*", server.DeleteItem)
		})
	})

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetOpenAPI handles GET /openapi.yaml.
func (s *Server) GetOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(api.Spec)
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"app":     "docbridge-http",
		"version": strings.TrimSpace(docbridge.Version),
		"globals": s.Bridge.Engine().Globals(),
	})
}

// ListDocuments handles GET /documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Bridge.Manager().List(r.Context())
	if err != nil {
		s.writeError(w, "ListDocuments", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"documents": ids})
}

// GetDocument handles GET /documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.Bridge.Manager().Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, "GetDocument", err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "id")
	if err := s.Bridge.Manager().Delete(r.Context(), docID); err != nil {
		s.writeError(w, "DeleteDocument", err)
		return
	}
	s.logger.Info("Document deleted", "document_id", docID)
	w.WriteHeader(http.StatusNoContent)
}

// GetItem handles GET /documents/{id}/items/{path}. The empty path is the root
// collection.
func (s *Server) GetItem(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "id")
	path := chi.URLParam(r, "*")

	doc, err := s.Bridge.Snapshot(r.Context(), docID)
	if err != nil {
		s.writeError(w, "GetItem", err)
		return
	}
	node := accessor.Find(&domain.Node{Items: doc.Items}, domain.ParsePath(path))
	if node == nil {
		http.Error(w, fmt.Sprintf("item %q not found", path), http.StatusNotFound)
		return
	}
	if domain.ParsePath(path).IsRoot() {
		s.writeJSON(w, http.StatusOK, doc.Items)
		return
	}
	s.writeJSON(w, http.StatusOK, node)
}

// PutItem handles PUT /documents/{id}/items/{path}: the JSON body is the template
// of the node appended at path.
func (s *Server) PutItem(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "id")
	path := chi.URLParam(r, "*")

	var body map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("PutItem: Invalid request body", "err", err)
		return
	}
	template, err := domain.NodeFromMap(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid node: %v", err), http.StatusBadRequest)
		return
	}

	var added *domain.Node
	_, err = s.mutate(r.Context(), docID, func(ctx context.Context, ns accessor.Namespace) error {
		added, err = ns.AddItem(ctx, path, template)
		return err
	})
	if err != nil {
		s.writeError(w, "PutItem", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, added)
}

// DeleteItem handles DELETE /documents/{id}/items/{path}.
func (s *Server) DeleteItem(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "id")
	path := chi.URLParam(r, "*")

	_, err := s.mutate(r.Context(), docID, func(ctx context.Context, ns accessor.Namespace) error {
		return ns.DeleteItem(ctx, path)
	})
	if err != nil {
		s.writeError(w, "DeleteItem", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ScriptResponse is the result of POST /documents/{id}/scripts.
type ScriptResponse struct {
	Revision int64            `json:"revision"`
	Diff     *domain.TreeDiff `json:"diff"`
}

// RunScript handles POST /documents/{id}/scripts: the body is Lua source, run as
// one turn. The optional "name" query parameter names the chunk in error messages.
func (s *Server) RunScript(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "id")
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "request"
	}

	source, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("RunScript: Invalid request body", "err", err)
		return
	}

	change, err := s.Bridge.RunScriptDiff(r.Context(), docID, string(source), name)
	if err != nil {
		s.writeError(w, "RunScript", err)
		return
	}
	s.writeJSON(w, http.StatusOK, ScriptResponse{Revision: change.After.Revision, Diff: s.publish(docID, change)})
}

// mutate runs fn as one turn and broadcasts the resulting diff.
func (s *Server) mutate(ctx context.Context, docID string, fn session.TurnFunc) (*domain.TreeDiff, error) {
	change, err := s.Bridge.TurnDiff(ctx, docID, fn)
	if err != nil {
		return nil, err
	}
	return s.publish(docID, change), nil
}

// publish sends the diff of change to the document's subscribers.
func (s *Server) publish(docID string, change *session.Change) *domain.TreeDiff {
	diff := change.Diff()
	if diff.IsEmpty() {
		s.logger.Debug("No diff calculated", "document_id", docID)
		return diff
	}
	if bytes, err := json.Marshal(diff); err == nil {
		s.Streams.Broadcast(docID, string(bytes))
	}
	return diff
}

// SubscribeEvents handles GET /documents/{id}/events (SSE): one TreeDiff per
// change made through this server.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	docID := chi.URLParam(r, "id")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(docID)
	defer cancel()
	s.logger.Info("SSE: Subscribing to document updates", "document_id", docID)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE client disconnected", "document_id", docID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// StatusFor maps a bridge error onto an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidOperation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrScript):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrHostIO):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err)
	} else {
		s.logger.Debug(op+" rejected", "err", err, "status", status)
	}
	http.Error(w, err.Error(), status)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}
