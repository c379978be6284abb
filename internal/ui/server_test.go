package ui

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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlgraph/internal/engine"
	"github.com/leapstack-labs/sqlgraph/internal/testutil"
	"github.com/leapstack-labs/sqlgraph/internal/ui/router"
	"github.com/leapstack-labs/sqlgraph/pkg/lineage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	dir := testutil.SetupSQLProject(t)
	eng, err := engine.New(engine.Config{Input: dir, DefaultCatalog: "prod", Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)

	res, err := eng.Run(context.Background())
	require.NoError(t, err)

	return NewServer(Config{Engine: eng, Graph: res.Graph, Title: "Test graph"})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Routes(t *testing.T) {
	h := newTestServer(t).Handler()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   []string
	}{
		{
			name:       "health",
			path:       "/healthz",
			wantStatus: http.StatusOK,
			wantBody:   []string{"ok"},
		},
		{
			name:       "page",
			path:       "/",
			wantStatus: http.StatusOK,
			wantBody:   []string{"<title>Test graph</title>", "data-init", "/updates", "graph-data"},
		},
		{
			name:       "graph",
			path:       "/api/graph",
			wantStatus: http.StatusOK,
			wantBody:   []string{`"edges_lineage"`, `"DW.DBO.TMP_ORDERS"`},
		},
		{
			name:       "payload",
			path:       "/api/payload",
			wantStatus: http.StatusOK,
			wantBody:   []string{`"join-0"`, `"usage-0"`},
		},
		{
			name:       "unknown node",
			path:       "/api/nodes/nope",
			wantStatus: http.StatusNotFound,
			wantBody:   []string{"PROD.DBO.NOPE"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.path)
			assert.Equal(t, tt.wantStatus, rec.Code)
			for _, want := range tt.wantBody {
				assert.Contains(t, rec.Body.String(), want)
			}
		})
	}
}

func TestServer_Node(t *testing.T) {
	h := newTestServer(t).Handler()

	// Partial names are qualified with the default catalog.
	rec := get(t, h, "/api/nodes/mart.v_revenue")
	require.Equal(t, http.StatusOK, rec.Code)

	var body router.NodeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, lineage.QualifiedName("PROD.MART.V_REVENUE"), body.Node.ID)
	assert.Equal(t, []lineage.QualifiedName{
		"DW.DBO.TMP_ORDERS",
		"DW.RAW.CUSTOMERS",
		"DW.RAW.ITEMS",
		"DW.RAW.ORDERS",
		"DW.REF.CALENDAR",
		"DW.STAGE.ORDERS",
	}, body.Upstream)
	assert.Equal(t, []lineage.QualifiedName{"PROD.MART.REVENUE"}, body.Downstream)
	require.Len(t, body.Details.Creations, 1)
	assert.Equal(t, lineage.KindCreateView, body.Details.Creations[0].Kind)
}

func TestServer_SetGraph(t *testing.T) {
	s := NewServer(Config{})

	g, v := s.Graph()
	assert.Equal(t, uint64(0), v)
	assert.True(t, g.Empty())
	assert.Empty(t, s.DefaultCatalog())

	ch := s.Notifier().Subscribe()
	defer s.Notifier().Unsubscribe(ch)

	s.SetGraph(lineage.Aggregate(nil))
	_, v = s.Graph()
	assert.Equal(t, uint64(1), v)
	assert.Equal(t, uint64(1), <-ch)
}

func TestServer_UpdatesStream(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/updates", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")
	require.Eventually(t, func() bool { return s.Notifier().Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	g, _ := s.Graph()
	s.SetGraph(g)

	found := make(chan bool, 1)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if strings.Contains(sc.Text(), "window.location.reload()") {
				found <- true
				return
			}
		}
		found <- false
	}()

	select {
	case ok := <-found:
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload event received")
	}
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	dir := testutil.SetupSQLProject(t)
	eng, err := engine.New(engine.Config{Input: dir, DefaultCatalog: "prod"})
	require.NoError(t, err)

	s := NewServer(Config{Engine: eng, Port: 0})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	require.Eventually(t, func() bool {
		_, v := s.Graph()
		return v == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop")
	}
}

func TestRequestLogger(t *testing.T) {
	h := router.RequestLogger(testutil.NewTestLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "x")
	}))

	rec := get(t, h, "/x")
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
