package handler

import (
	"errors"
	"net/http"

	"github.com/transitgrid/transitgrid/internal/api/models"
	"github.com/transitgrid/transitgrid/internal/api/response"
	"github.com/transitgrid/transitgrid/internal/graph"
)

// GraphHandler handles graph diagnostics endpoints.
type GraphHandler struct {
	store *graph.Store
}

// NewGraphHandler creates a new GraphHandler.
func NewGraphHandler(store *graph.Store) *GraphHandler {
	return &GraphHandler{store: store}
}

// Diagnostics handles GET /v1/graph/diagnostics. An empty store is a valid
// answer here, reported as version "none" rather than an error: the endpoint
// exists to observe the store, including its empty state.
func (h *GraphHandler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Statistics(r.Context())
	if err != nil {
		if errors.Is(err, graph.ErrGraphUnavailable) {
			response.JSON(w, r, http.StatusOK, models.GraphDiagnostics{Version: "none"})
			return
		}
		response.InternalError(w, r, "graph statistics unavailable")
		return
	}

	diagnostics := models.GraphDiagnostics{
		Version:        stats.Version,
		TotalNodes:     stats.TotalNodes,
		TotalEdges:     stats.TotalEdges,
		Density:        stats.Density,
		BuildTimestamp: models.Timestamp(stats.BuiltAt),
	}
	if meta, err := h.store.ActiveMetadata(r.Context()); err == nil {
		diagnostics.DatasetVersion = meta.DatasetVersion
	}

	response.JSON(w, r, http.StatusOK, diagnostics)
}
