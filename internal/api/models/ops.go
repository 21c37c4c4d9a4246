package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ReadinessCheck reports one dependency probed by the readiness endpoint.
type ReadinessCheck struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail string       `json:"detail,omitempty"`
}

// Readiness represents the readiness state of the service.
type Readiness struct {
	Status HealthStatus     `json:"status"`
	Time   Timestamp        `json:"time"`
	Checks []ReadinessCheck `json:"checks"`
}
