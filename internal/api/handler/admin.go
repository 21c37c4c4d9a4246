package handler

import (
	"errors"
	"net/http"

	"github.com/transitgrid/transitgrid/internal/api/models"
	"github.com/transitgrid/transitgrid/internal/api/response"
	"github.com/transitgrid/transitgrid/internal/graph"
	"github.com/transitgrid/transitgrid/internal/pipeline"
)

// AdminHandler handles internal operational endpoints.
type AdminHandler struct {
	orchestrator *pipeline.Orchestrator
	store        *graph.Store
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(orchestrator *pipeline.Orchestrator, store *graph.Store) *AdminHandler {
	return &AdminHandler{orchestrator: orchestrator, store: store}
}

// Rebuild handles POST /v1/admin/rebuild. The run is synchronous; a second
// trigger while one is in progress gets 409.
func (h *AdminHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	result, err := h.orchestrator.ExecuteFullPipeline(r.Context())
	if err != nil {
		if errors.Is(err, pipeline.ErrPipelineBusy) {
			response.Conflict(w, r, models.CodePipelineBusy, "a pipeline run is already in progress")
			return
		}
		// A failed run still reports its partial result; the previously
		// published graph version keeps serving.
		response.JSON(w, r, http.StatusInternalServerError, toRebuildResponse(result, ""))
		return
	}

	version, _ := h.store.Version(r.Context())
	response.JSON(w, r, http.StatusOK, toRebuildResponse(result, version))
}

func toRebuildResponse(result *pipeline.Result, version string) models.RebuildResponse {
	resp := models.RebuildResponse{
		Success:        result.Success,
		DurationMs:     result.Duration.Milliseconds(),
		StagesExecuted: result.StagesExecuted,
		FailedStage:    result.FailedStage,
		GraphVersion:   version,
	}
	for _, stage := range result.Stages {
		resp.Stages = append(resp.Stages, models.RebuildStage{
			Name:           stage.Name,
			DurationMs:     stage.Duration.Milliseconds(),
			ItemsProcessed: stage.ItemsProcessed,
			ItemsSkipped:   stage.ItemsSkipped,
			Detail:         stage.Detail,
		})
	}
	return resp
}
