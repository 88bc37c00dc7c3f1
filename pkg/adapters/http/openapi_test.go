package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/docbridge/api"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadSpec(t *testing.T) *openapi3.T {
	t.Helper()
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(api.Spec)
	require.NoError(t, err)
	require.NoError(t, doc.Validate(loader.Context))
	return doc
}

func TestOpenAPI_EveryRouteIsDocumented(t *testing.T) {
	doc := loadSpec(t)
	srv, _ := newTestServer(t, WithMetricsHandler(http.NotFoundHandler()))

	routed := map[string]bool{}
	err := chi.Walk(srv.router(), func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		path := strings.Replace(route, "*", "{path}", 1)
		if len(path) > 1 {
			path = strings.TrimSuffix(path, "/")
		}
		routed[path] = true

		item := doc.Paths.Find(path)
		if assert.NotNil(t, item, "%s %s", method, route) {
			assert.NotNil(t, item.GetOperation(method), "%s %s", method, route)
		}
		return nil
	})
	require.NoError(t, err)

	for path := range doc.Paths.Map() {
		assert.True(t, routed[path], "documented path %s has no route", path)
	}
}

func TestOpenAPI_ServedSpec(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv.Routes(), http.MethodGet, "/openapi.yaml", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	assert.Equal(t, api.Spec, w.Body.Bytes())
}

func TestOpenAPI_HandlersMatchContract(t *testing.T) {
	doc := loadSpec(t)
	srv, _ := newTestServer(t)
	h := srv.Routes()
	ctx := context.Background()

	tests := []struct {
		name        string
		method      string
		target      string
		contentType string
		body        string
		path        string
		params      map[string]string
		status      int
	}{
		{"list", http.MethodGet, "/documents", "", "", "/documents", nil, http.StatusOK},
		{"document", http.MethodGet, "/documents/scene", "", "", "/documents/{id}",
			map[string]string{"id": "scene"}, http.StatusOK},
		{"root items", http.MethodGet, "/documents/scene/items", "", "", "/documents/{id}/items",
			map[string]string{"id": "scene"}, http.StatusOK},
		{"item", http.MethodGet, "/documents/scene/items/Mesh", "", "", "/documents/{id}/items/{path}",
			map[string]string{"id": "scene", "path": "Mesh"}, http.StatusOK},
		{"put", http.MethodPut, "/documents/scene/items/Extra", "application/json", `{"type":"Call","count":2}`,
			"/documents/{id}/items/{path}", map[string]string{"id": "scene", "path": "Extra"}, http.StatusCreated},
		{"script", http.MethodPost, "/documents/scene/scripts?name=s.lua", "text/plain", `Session.deleteItem("Leaf")`,
			"/documents/{id}/scripts", map[string]string{"id": "scene"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := doc.Paths.Value(tt.path)
			require.NotNil(t, item)
			route := &routers.Route{
				Spec:      doc,
				Path:      tt.path,
				PathItem:  item,
				Method:    tt.method,
				Operation: item.GetOperation(tt.method),
			}

			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			input := &openapi3filter.RequestValidationInput{Request: req, PathParams: tt.params, Route: route}
			require.NoError(t, openapi3filter.ValidateRequest(ctx, input))

			served := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			served.Header = req.Header.Clone()
			w := httptest.NewRecorder()
			h.ServeHTTP(w, served)
			require.Equal(t, tt.status, w.Code, w.Body.String())

			err := openapi3filter.ValidateResponse(ctx, &openapi3filter.ResponseValidationInput{
				RequestValidationInput: input,
				Status:                 w.Code,
				Header:                 w.Header(),
				Body:                   io.NopCloser(bytes.NewReader(w.Body.Bytes())),
			})
			assert.NoError(t, err)
		})
	}
}
