package model

import "time"

// RejectReason explains why an item did not become (part of) a project.
// A rejection is a valid business outcome, not an error.
type RejectReason string

const (
	RejectMissingText       RejectReason = "missing_text"
	RejectCompleted         RejectReason = "completed"
	RejectCancelled         RejectReason = "cancelled"
	RejectNoActiveIndicator RejectReason = "no_active_indicator"
	RejectMissingName       RejectReason = "missing_name"
	RejectMissingRegion     RejectReason = "missing_region"
	RejectAIRejected        RejectReason = "ai_rejected"
	RejectInvalidStatus     RejectReason = "invalid_status"
)

// Outcome is the terminal state of one item in a run.
type Outcome string

const (
	OutcomeAdded    Outcome = "added"
	OutcomeUpdated  Outcome = "updated"
	OutcomeRejected Outcome = "rejected"
	OutcomeError    Outcome = "error"
)

// RunMode distinguishes batch and streaming runs in the run log.
type RunMode string

const (
	RunModeBatch  RunMode = "batch"
	RunModeStream RunMode = "stream"
)

// Summary aggregates the outcome counts of a run.
type Summary struct {
	Scraped         int     `json:"scraped"`
	Processed       int     `json:"processed"`
	Added           int     `json:"added"`
	Updated         int     `json:"updated"`
	Rejected        int     `json:"rejected"`
	Errors          int     `json:"errors"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// ProgressEvent is emitted once per processed item during a streaming run,
// followed by a single completion event carrying the final counts.
type ProgressEvent struct {
	Scraped        int            `json:"scraped"`
	Processed      int            `json:"processed"`
	Added          int            `json:"added"`
	Updated        int            `json:"updated"`
	Rejected       int            `json:"rejected"`
	Errors         int            `json:"errors"`
	Project        *ProjectRecord `json:"project"`
	RejectedReason *RejectReason  `json:"rejected_reason"`
	Completed      bool           `json:"completed"`
	Error          bool           `json:"error"`
	Message        string         `json:"message,omitempty"`
}

// RunLog is the persisted record of one pipeline run.
type RunLog struct {
	ID         string    `json:"id"`
	Mode       RunMode   `json:"mode"`
	Summary    Summary   `json:"summary"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// ProjectEvent is published downstream after an item is accepted.
type ProjectEvent struct {
	Outcome   Outcome       `json:"outcome"`
	Project   ProjectRecord `json:"project"`
	SourceURL string        `json:"source_url"`
	At        time.Time     `json:"at"`
}

// CountBy is one bucket in a grouped count.
type CountBy struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// RegistryStats summarizes the registry for dashboards and the CLI.
type RegistryStats struct {
	TotalProjects  int       `json:"total_projects"`
	NewThisMonth   int       `json:"new_this_month"`
	AvgConfidence  float64   `json:"avg_confidence"`
	ByRegion       []CountBy `json:"by_region"`
	ByCategory     []CountBy `json:"by_category"`
	TopContractors []CountBy `json:"top_contractors"`
}
