package domain

import "time"

// Stage enumerates the units of work a generation request is billed by.
type Stage string

const (
	StageVision    Stage = "VISION"
	StageConcept   Stage = "CONCEPT"
	StageImageEdit Stage = "IMAGE_EDIT"
)

// RequestLog records one end-user generation request. The row is created at
// the start of the pipeline with Success=false and updated exactly once at
// the end, on either outcome.
type RequestLog struct {
	ID            string
	Title         string
	UserConcept   string
	ConceptUsed   string
	TextProvider  string
	TextModel     string
	ImageProvider string
	ImageModel    string
	Success       bool
	ErrorMessage  string
	TotalCostUSD  float64
	LatencyMS     int64
	CreatedAt     time.Time
}

// RequestCostItem is one persisted record of a stage's resource usage and
// computed USD cost. Items are written immediately after their stage
// completes and are never updated, so a failed request keeps the line items
// of the work that actually ran.
type RequestCostItem struct {
	ID           string
	RequestID    string
	Stage        Stage
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	ImageCount   int
	CostUSD      float64
	CreatedAt    time.Time
}
