package models

// RebuildStage reports one executed pipeline stage.
type RebuildStage struct {
	Name           string `json:"name"`
	DurationMs     int64  `json:"durationMs"`
	ItemsProcessed int    `json:"itemsProcessed"`
	ItemsSkipped   int    `json:"itemsSkipped"`
	Detail         string `json:"detail,omitempty"`
}

// RebuildResponse is the body of POST /v1/admin/rebuild.
type RebuildResponse struct {
	Success        bool           `json:"success"`
	DurationMs     int64          `json:"durationMs"`
	StagesExecuted int            `json:"stagesExecuted"`
	FailedStage    string         `json:"failedStage,omitempty"`
	Stages         []RebuildStage `json:"stages,omitempty"`
	GraphVersion   string         `json:"graphVersion,omitempty"`
}
