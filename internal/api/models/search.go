package models

// SearchRequest is the body of POST /v1/routes:search.
type SearchRequest struct {
	Origin          string   `json:"origin" validate:"required"`
	Destination     string   `json:"destination" validate:"required"`
	Date            string   `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Passengers      int      `json:"passengers,omitempty" validate:"omitempty,gte=1,lte=50"`
	Preference      string   `json:"preference,omitempty" validate:"omitempty,oneof=fastest cheapest balanced"`
	Transport       []string `json:"transport,omitempty" validate:"omitempty,dive,oneof=BUS TRAIN FLIGHT FERRY"`
	MaxAlternatives int      `json:"maxAlternatives,omitempty" validate:"omitempty,gte=0,lte=5"`
}

// GraphDiagnostics is the body of GET /v1/graph/diagnostics.
type GraphDiagnostics struct {
	Version        string    `json:"version"`
	TotalNodes     int       `json:"totalNodes"`
	TotalEdges     int       `json:"totalEdges"`
	Density        float64   `json:"density"`
	BuildTimestamp Timestamp `json:"buildTimestamp"`
	DatasetVersion string    `json:"datasetVersion,omitempty"`
}
