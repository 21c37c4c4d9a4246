package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/transitgrid/transitgrid/internal/api/models"
	"github.com/transitgrid/transitgrid/internal/api/response"
	"github.com/transitgrid/transitgrid/internal/graph"
	"github.com/transitgrid/transitgrid/internal/search"
	"github.com/transitgrid/transitgrid/internal/transit"
)

// SearchHandler handles route search endpoints.
type SearchHandler struct {
	service *search.Service
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(service *search.Service) *SearchHandler {
	return &SearchHandler{service: service}
}

// Search handles POST /v1/routes:search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var input models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if fieldErrors := models.Validate(&input); fieldErrors != nil {
		response.BadRequest(w, r, "invalid search request", fieldErrors)
		return
	}

	query := search.Query{
		Origin:          input.Origin,
		Destination:     input.Destination,
		Date:            parseDate(input.Date),
		Passengers:      input.Passengers,
		Preference:      search.Preference(input.Preference),
		Transport:       toTransportTypes(input.Transport),
		MaxAlternatives: input.MaxAlternatives,
	}

	result, err := h.service.BuildRoute(r.Context(), query)
	if err != nil {
		writeSearchError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=60")
	response.JSON(w, r, http.StatusOK, result)
}

// writeSearchError maps search errors to their stable API codes. Graph
// unavailability is retryable and must never masquerade as "no route".
func writeSearchError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, search.ErrInvalidQuery):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, graph.ErrGraphUnavailable):
		response.ServiceUnavailable(w, r, models.CodeGraphNotAvailable, "no published graph version, retry shortly")
	case errors.Is(err, search.ErrStopsNotFound):
		response.NotFound(w, r, models.CodeStopsNotFound, err.Error())
	case errors.Is(err, search.ErrNoPathFound):
		response.NotFound(w, r, models.CodeNoPathFound, "no route connects the requested cities")
	default:
		response.InternalError(w, r, "route search failed")
	}
}

// parseDate parses a yyyy-mm-dd travel date, defaulting to today. Format
// errors are caught by validation before this runs.
func parseDate(s string) time.Time {
	if s == "" {
		return time.Now().UTC()
	}
	date, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Now().UTC()
	}
	return date
}

func toTransportTypes(values []string) []transit.TransportType {
	if len(values) == 0 {
		return nil
	}
	types := make([]transit.TransportType, 0, len(values))
	for _, v := range values {
		types = append(types, transit.TransportType(v))
	}
	return types
}
