// Package router sets up HTTP routes for the lineage server.
package router

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/sqlgraph/internal/dag"
	"github.com/leapstack-labs/sqlgraph/internal/report"
	"github.com/leapstack-labs/sqlgraph/internal/ui/notifier"
	"github.com/leapstack-labs/sqlgraph/pkg/lineage"
)

// GraphSource provides the current graph to handlers.
type GraphSource interface {
	// Graph returns the current graph and its version.
	Graph() (*lineage.Graph, uint64)
	Title() string
	DefaultCatalog() string
}

// NodeResponse is the body of /api/nodes/{id}.
type NodeResponse struct {
	Node       lineage.Node            `json:"node"`
	Element    report.Element          `json:"element"`
	Details    report.NodeDetails      `json:"details"`
	Upstream   []lineage.QualifiedName `json:"upstream"`
	Downstream []lineage.QualifiedName `json:"downstream"`
}

type handlers struct {
	src    GraphSource
	notify *notifier.Notifier
	logger *slog.Logger
}

// SetupRoutes registers all routes on r.
func SetupRoutes(r chi.Router, src GraphSource, notify *notifier.Notifier, logger *slog.Logger) {
	h := &handlers{src: src, notify: notify, logger: logger}

	r.Get("/", h.page)
	r.Get("/updates", h.updates)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/graph", h.graph)
		r.Get("/payload", h.payload)
		r.Get("/nodes/{id}", h.node)
	})
}

// RequestLogger logs one line per request.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", chimw.GetReqID(r.Context())),
			)
		})
	}
}

func (h *handlers) page(w http.ResponseWriter, _ *http.Request) {
	g, _ := h.src.Graph()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderHTML(w, g, h.src.Title(), report.WithLiveReload("/updates")); err != nil {
		h.logger.Error("failed to render page", slog.String("error", err.Error()))
	}
}

func (h *handlers) graph(w http.ResponseWriter, _ *http.Request) {
	g, _ := h.src.Graph()
	writeJSON(w, http.StatusOK, g)
}

func (h *handlers) payload(w http.ResponseWriter, _ *http.Request) {
	g, _ := h.src.Graph()
	writeJSON(w, http.StatusOK, report.BuildPayload(g, h.src.Title()))
}

func (h *handlers) node(w http.ResponseWriter, r *http.Request) {
	raw, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table name"})
		return
	}

	g, _ := h.src.Graph()
	id := lineage.Qualify(raw, h.src.DefaultCatalog())
	n, ok := g.Node(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found: " + id.String()})
		return
	}

	tables, _ := dag.FromLineage(g)
	writeJSON(w, http.StatusOK, NodeResponse{
		Node:       n,
		Element:    report.NodeElement(n),
		Details:    report.DetailsOf(n),
		Upstream:   nonNil(tables.GetUpstreamNodes(id, 0)),
		Downstream: nonNil(tables.GetDownstreamNodes(id, 0)),
	})
}

// updates holds an SSE stream open and reloads the page after each rebuild.
func (h *handlers) updates(w http.ResponseWriter, r *http.Request) {
	ch := h.notify.Subscribe()
	defer h.notify.Unsubscribe(ch)

	sse := datastar.NewSSE(w, r)
	for {
		select {
		case <-r.Context().Done():
			return
		case version, ok := <-ch:
			if !ok {
				return
			}
			h.logger.Debug("pushing reload", slog.Uint64("version", version))
			if err := sse.ExecuteScript("window.location.reload()"); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func nonNil(ids []lineage.QualifiedName) []lineage.QualifiedName {
	if ids == nil {
		return []lineage.QualifiedName{}
	}
	return ids
}
