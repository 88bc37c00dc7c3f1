// Package mcp exposes a Bridge as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/docbridge"
	"github.com/aretw0/docbridge/internal/logging"
	"github.com/aretw0/docbridge/pkg/accessor"
	"github.com/aretw0/docbridge/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// DocumentsURI is the resource listing every stored document.
const DocumentsURI = "docbridge://documents"

// Server wraps a Bridge and exposes it as an MCP Server.
type Server struct {
	bridge    *docbridge.Bridge
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(bridge *docbridge.Bridge, opts ...Option) *Server {
	s := &Server{
		bridge:    bridge,
		mcpServer: server.NewMCPServer("docbridge-mcp", strings.TrimSpace(docbridge.Version)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE, until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List the IDs of all stored documents."),
	), s.handleListDocuments)

	s.mcpServer.AddTool(mcp.NewTool("get_item",
		mcp.WithDescription("Read the node at a slash-delimited path. An empty path returns the top-level items."),
		mcp.WithString("document", mcp.Required(), mcp.Description("Document ID")),
		mcp.WithString("path", mcp.Description("Item path, e.g. Mesh/Vertices")),
	), s.handleGetItem)

	s.mcpServer.AddTool(mcp.NewTool("add_item",
		mcp.WithDescription("Append a node at a path. The final segment names it; the parent must exist."),
		mcp.WithString("document", mcp.Required(), mcp.Description("Document ID")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the new item")),
		mcp.WithString("template", mcp.Description("JSON object with the node attributes (optional)")),
	), s.handleAddItem)

	s.mcpServer.AddTool(mcp.NewTool("delete_item",
		mcp.WithDescription("Remove the node at a path."),
		mcp.WithString("document", mcp.Required(), mcp.Description("Document ID")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Item path")),
	), s.handleDeleteItem)

	s.mcpServer.AddTool(mcp.NewTool("run_script",
		mcp.WithDescription("Run a Lua script against a document as one turn. Scripts see the Session namespace."),
		mcp.WithString("document", mcp.Required(), mcp.Description("Document ID")),
		mcp.WithString("source", mcp.Required(), mcp.Description("Lua source")),
		mcp.WithString("name", mcp.Description("Chunk name used in error messages")),
	), s.handleRunScript)
}

func (s *Server) handleListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := s.bridge.Manager().List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	if ids == nil {
		ids = []string{}
	}
	return jsonResult(ids)
}

func (s *Server) handleGetItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, err := request.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path := request.GetString("path", "")

	doc, err := s.bridge.Snapshot(ctx, docID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
	}
	p := domain.ParsePath(path)
	if p.IsRoot() {
		return jsonResult(doc.Items)
	}
	node := accessor.Find(&domain.Node{Items: doc.Items}, p)
	if node == nil {
		return mcp.NewToolResultError(fmt.Sprintf("item %q not found", path)), nil
	}
	return jsonResult(node)
}

func (s *Server) handleAddItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, err := request.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	attrs := map[string]any{}
	if raw := request.GetString("template", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid template: %v", err)), nil
		}
	}
	template, err := domain.NodeFromMap(attrs)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid template: %v", err)), nil
	}

	var added *domain.Node
	err = s.bridge.Turn(ctx, docID, func(ctx context.Context, ns accessor.Namespace) error {
		var err error
		added, err = ns.AddItem(ctx, path, template)
		return err
	})
	if err != nil {
		s.logger.Debug("MCP add_item rejected", "document_id", docID, "path", path, "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("add failed: %v", err)), nil
	}
	return jsonResult(added)
}

func (s *Server) handleDeleteItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, err := request.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	err = s.bridge.Turn(ctx, docID, func(ctx context.Context, ns accessor.Namespace) error {
		return ns.DeleteItem(ctx, path)
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("delete failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted %s", path)), nil
}

func (s *Server) handleRunScript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, err := request.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	source, err := request.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name := request.GetString("name", "mcp")

	change, err := s.bridge.RunScriptDiff(ctx, docID, source, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(change.Diff())
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(DocumentsURI, "Stored documents",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.bridge.Manager().List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}
		jsonBytes, err := json.Marshal(ids)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      DocumentsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
