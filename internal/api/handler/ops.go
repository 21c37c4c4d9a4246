// Package handler provides HTTP handlers for the TransitGrid API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/transitgrid/transitgrid/internal/api/models"
	"github.com/transitgrid/transitgrid/internal/api/response"
)

// ReadyCheck probes one dependency for the readiness endpoint.
type ReadyCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	checks    []ReadyCheck
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, checks ...ReadyCheck) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		checks:    checks,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready. It probes every registered
// dependency; any failure makes the service not ready.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	readiness := models.Readiness{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Checks: make([]models.ReadinessCheck, 0, len(h.checks)),
	}

	status := http.StatusOK
	for _, check := range h.checks {
		result := models.ReadinessCheck{Name: check.Name, Status: models.HealthStatusOK}
		if err := check.Probe(r.Context()); err != nil {
			result.Status = models.HealthStatusFail
			result.Detail = err.Error()
			readiness.Status = models.HealthStatusFail
			status = http.StatusServiceUnavailable
		}
		readiness.Checks = append(readiness.Checks, result)
	}

	response.JSON(w, r, status, readiness)
}
