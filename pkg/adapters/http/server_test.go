package http

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/docbridge"
	"github.com/aretw0/docbridge/pkg/adapters/memory"
	"github.com/aretw0/docbridge/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sceneJSON = `[
	{"name":"Mesh","type":"Group","items":[
		{"name":"Vertices","type":"Buffer","stride":12},
		{"name":"Draw","type":"Call"}
	]},
	{"name":"Leaf","type":"Texture"}
]`

func newTestServer(t *testing.T, opts ...Option) (*Server, *memory.Store) {
	t.Helper()
	store, err := memory.NewStoreFromJSON(map[string]string{"scene": sceneJSON})
	require.NoError(t, err)
	return NewServer(docbridge.New(store), opts...), store
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestListDocuments(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv.Routes(), http.MethodGet, "/documents", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string][]string](t, w)
	assert.Equal(t, []string{"scene"}, body["documents"])
}

func TestGetDocument(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()

	w := do(t, h, http.MethodGet, "/documents/scene", "")
	require.Equal(t, http.StatusOK, w.Code)
	doc := decode[domain.Document](t, w)
	assert.Len(t, doc.Items, 2)
	assert.EqualValues(t, 5, doc.NextID)

	w = do(t, h, http.MethodGet, "/documents/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetItem(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()

	w := do(t, h, http.MethodGet, "/documents/scene/items/Mesh/Vertices", "")
	require.Equal(t, http.StatusOK, w.Code)
	node := decode[map[string]any](t, w)
	assert.Equal(t, "Vertices", node["name"])
	assert.EqualValues(t, 12, node["stride"])

	w = do(t, h, http.MethodGet, "/documents/scene/items/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 2)

	w = do(t, h, http.MethodGet, "/documents/scene/items/Mesh/Nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutItem(t *testing.T) {
	srv, store := newTestServer(t)
	h := srv.Routes()

	w := do(t, h, http.MethodPut, "/documents/scene/items/Mesh/Index", `{"type":"Buffer","name":"ignored"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	node := decode[map[string]any](t, w)
	assert.Equal(t, "Index", node["name"])
	assert.EqualValues(t, 5, node["id"], "the response carries the id assigned on flush")

	doc, err := store.Load(context.Background(), "scene")
	require.NoError(t, err)
	require.Len(t, doc.Items[0].Items, 3)
	assert.Equal(t, "Index", doc.Items[0].Items[2].Name)

	w = do(t, h, http.MethodPut, "/documents/scene/items/Missing/Index", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, h, http.MethodPut, "/documents/scene/items/Bad", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteItem(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()

	w := do(t, h, http.MethodDelete, "/documents/scene/items/Leaf", "")
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = do(t, h, http.MethodGet, "/documents/scene/items/Leaf", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodDelete, "/documents/scene/items/Leaf", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestDeleteDocument(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()

	w := do(t, h, http.MethodDelete, "/documents/scene", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/documents/scene", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunScript(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()

	w := do(t, h, http.MethodPost, "/documents/scene/scripts?name=add.lua", `
		Session.addItem("Extra", {type = "Call"})
		Session.item("Mesh/Vertices").stride = 16
	`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[ScriptResponse](t, w)
	assert.EqualValues(t, 1, resp.Revision)
	assert.Equal(t, []string{"Extra"}, resp.Diff.Added)
	assert.EqualValues(t, 16, resp.Diff.Changed["Mesh/Vertices"]["stride"])

	w = do(t, h, http.MethodPost, "/documents/scene/scripts?name=bad.lua", `Session.addItem(`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "bad.lua")

	w = do(t, h, http.MethodPost, "/documents/scene/scripts", `Session.deleteItem("Nope")`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidOperation, http.StatusUnprocessableEntity},
		{domain.ErrDocumentNotFound, http.StatusNotFound},
		{domain.ErrScript, http.StatusBadRequest},
		{domain.ErrHostIO, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestInfoAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "docbridge_turns_total 0\n")
	})
	srv, _ := newTestServer(t, WithMetricsHandler(metrics))
	h := srv.Routes()

	w := do(t, h, http.MethodGet, "/info", "")
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[map[string]any](t, w)
	assert.Equal(t, docbridge.Version, info["version"])

	w = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "docbridge_turns_total")

	w = do(t, h, http.MethodOptions, "/documents", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestBroadcastOnChange(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()

	ch, cancel := srv.Streams.Subscribe("scene")
	defer cancel()

	w := do(t, h, http.MethodPut, "/documents/scene/items/Extra", `{"type":"Call"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	select {
	case msg := <-ch:
		var diff domain.TreeDiff
		require.NoError(t, json.Unmarshal([]byte(msg), &diff))
		assert.Equal(t, []string{"Extra"}, diff.Added)
	case <-time.After(time.Second):
		t.Fatal("no diff broadcast")
	}

	// A rejected change publishes nothing.
	do(t, h, http.MethodDelete, "/documents/scene/items/Nope", "")
	select {
	case msg := <-ch:
		t.Fatalf("unexpected broadcast %s", msg)
	default:
	}
}

func TestSubscribeEvents(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/documents/scene/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: ping\n", line)

	require.Eventually(t, func() bool { return srv.Streams.Subscribers("scene") == 1 }, time.Second, 10*time.Millisecond)

	put, err := http.NewRequest(http.MethodPut, ts.URL+"/documents/scene/items/Extra", strings.NewReader(`{}`))
	require.NoError(t, err)
	putResp, err := http.DefaultClient.Do(put)
	require.NoError(t, err)
	putResp.Body.Close()

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: {") {
			break
		}
	}
	assert.Contains(t, line, `"added":["Extra"]`)
}
