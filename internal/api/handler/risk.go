package handler

import (
	"encoding/json"
	"net/http"

	"github.com/transitgrid/transitgrid/internal/api/models"
	"github.com/transitgrid/transitgrid/internal/api/response"
	"github.com/transitgrid/transitgrid/internal/risk"
	"github.com/transitgrid/transitgrid/internal/search"
	"github.com/transitgrid/transitgrid/internal/transit"
)

// RiskHandler handles risk assessment endpoints.
type RiskHandler struct {
	engine *risk.Engine
}

// NewRiskHandler creates a new RiskHandler.
func NewRiskHandler(engine *risk.Engine) *RiskHandler {
	return &RiskHandler{engine: engine}
}

// AssessSegment handles POST /v1/risk/segment.
func (h *RiskHandler) AssessSegment(w http.ResponseWriter, r *http.Request) {
	var input models.RiskSegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if fieldErrors := models.Validate(&input); fieldErrors != nil {
		response.BadRequest(w, r, "invalid risk request", fieldErrors)
		return
	}

	passengers := input.Passengers
	if passengers == 0 {
		passengers = 1
	}

	score, err := h.engine.AssessSegment(r.Context(), toSegment(input.Segment), parseDate(input.Date), passengers)
	if err != nil {
		response.InternalError(w, r, "risk assessment failed")
		return
	}

	response.JSON(w, r, http.StatusOK, score)
}

// AssessRoute handles POST /v1/risk/route.
func (h *RiskHandler) AssessRoute(w http.ResponseWriter, r *http.Request) {
	var input models.RiskRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if fieldErrors := models.Validate(&input); fieldErrors != nil {
		response.BadRequest(w, r, "invalid risk request", fieldErrors)
		return
	}

	route := &search.BuiltRoute{
		Segments: make([]search.Segment, 0, len(input.Segments)),
	}
	for _, segment := range input.Segments {
		route.Segments = append(route.Segments, toSegment(segment))
	}

	score, err := h.engine.AssessRoute(r.Context(), route, parseDate(input.Date))
	if err != nil {
		response.InternalError(w, r, "risk assessment failed")
		return
	}

	response.JSON(w, r, http.StatusOK, score)
}

func toSegment(input models.RiskSegmentInput) search.Segment {
	return search.Segment{
		FromStopID:        input.FromStopID,
		ToStopID:          input.ToStopID,
		Transport:         transit.TransportType(input.Transport),
		DurationMin:       input.DurationMin,
		Price:             input.Price,
		DistanceKm:        input.DistanceKm,
		RouteID:           input.RouteID,
		TransferBufferMin: input.TransferBufferMin,
	}
}
