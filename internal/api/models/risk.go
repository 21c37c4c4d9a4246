package models

// RiskSegmentInput describes one segment to assess.
type RiskSegmentInput struct {
	FromStopID        string  `json:"fromStopId" validate:"required"`
	ToStopID          string  `json:"toStopId" validate:"required"`
	Transport         string  `json:"transport" validate:"required,oneof=BUS TRAIN FLIGHT FERRY"`
	DurationMin       float64 `json:"durationMin" validate:"gte=0"`
	Price             float64 `json:"price" validate:"gte=0"`
	DistanceKm        float64 `json:"distanceKm" validate:"gte=0"`
	RouteID           string  `json:"routeId" validate:"required"`
	TransferBufferMin float64 `json:"transferBufferMin" validate:"gte=0"`
}

// RiskSegmentRequest is the body of POST /v1/risk/segment.
type RiskSegmentRequest struct {
	Segment    RiskSegmentInput `json:"segment" validate:"required"`
	Date       string           `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Passengers int              `json:"passengers,omitempty" validate:"omitempty,gte=1,lte=50"`
}

// RiskRouteRequest is the body of POST /v1/risk/route.
type RiskRouteRequest struct {
	Segments []RiskSegmentInput `json:"segments" validate:"required,min=1,dive"`
	Date     string             `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}
