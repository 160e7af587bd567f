package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Status is the lifecycle state of a project as described by its evidence.
type Status string

const (
	StatusActive            Status = "Active"
	StatusOngoing           Status = "Ongoing"
	StatusUnderConstruction Status = "Under Construction"
	StatusPlanning          Status = "Planning"
	StatusAnnounced         Status = "Announced"
	StatusCompleted         Status = "Completed"
	StatusCancelled         Status = "Cancelled"
)

// IsLive reports whether the status belongs to the non-terminal set that may
// be persisted.
func (s Status) IsLive() bool {
	switch s {
	case StatusActive, StatusOngoing, StatusUnderConstruction, StatusPlanning, StatusAnnounced:
		return true
	default:
		return false
	}
}

// ParseStatus maps a label (case, spacing and underscores ignored) onto a
// Status. The second return value is false for unknown labels.
func ParseStatus(s string) (Status, bool) {
	key := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch key {
	case "active":
		return StatusActive, true
	case "ongoing", "inprogress":
		return StatusOngoing, true
	case "underconstruction":
		return StatusUnderConstruction, true
	case "planning", "planned":
		return StatusPlanning, true
	case "announced":
		return StatusAnnounced, true
	case "completed", "complete", "finished":
		return StatusCompleted, true
	case "cancelled", "canceled", "suspended":
		return StatusCancelled, true
	default:
		return "", false
	}
}

// ExtractionMethod records which extractor produced a record.
type ExtractionMethod string

const (
	ExtractionRule ExtractionMethod = "rule"
	ExtractionAI   ExtractionMethod = "ai"
)

// DefaultCategory is used when no category keyword matches.
const DefaultCategory = "Commercial"

// ProjectFields is the attribute set shared by extracted and persisted
// project records.
type ProjectFields struct {
	ProjectName          string     `json:"project_name"`
	ProjectNameLocalized string     `json:"project_name_localized,omitempty"`
	Status               Status     `json:"status"`
	Owner                string     `json:"owner,omitempty"`
	MainContractor       string     `json:"main_contractor,omitempty"`
	Consultant           string     `json:"consultant,omitempty"`
	Region               string     `json:"region"`
	City                 string     `json:"city,omitempty"`
	Category             string     `json:"category"`
	Description          string     `json:"description,omitempty"`
	ProjectValue         string     `json:"project_value,omitempty"`
	ProjectSize          string     `json:"project_size,omitempty"`
	StartDate            *time.Time `json:"start_date,omitempty"`
	AnnouncementDate     *time.Time `json:"announcement_date,omitempty"`
}

// Completeness returns the share of the ten tracked fields that are filled,
// rounded to two decimal places.
func (f ProjectFields) Completeness() float64 {
	filled := 0
	for _, ok := range []bool{
		f.ProjectName != "",
		f.Status != "",
		f.Region != "",
		f.Category != "",
		f.Owner != "",
		f.MainContractor != "",
		f.City != "",
		f.Description != "",
		f.StartDate != nil,
		f.ProjectValue != "",
	} {
		if ok {
			filled++
		}
	}
	return math.Round(float64(filled)/10*100) / 100
}

// ExtractedRecord holds candidate project facts derived from one RawItem.
type ExtractedRecord struct {
	ProjectFields
	ExtractionMethod ExtractionMethod `json:"extraction_method"`
	SourceURL        string           `json:"source_url"`
}

// ProjectRecord is the persisted, de-duplicated entity of record.
type ProjectRecord struct {
	ID string `json:"id"`
	ProjectFields
	ConfidenceScore  float64   `json:"confidence_score"`
	IsVerified       bool      `json:"is_verified"`
	DataCompleteness float64   `json:"data_completeness"`
	SourceCount      int       `json:"source_count"`
	FirstDiscovered  time.Time `json:"first_discovered"`
	LastUpdated      time.Time `json:"last_updated"`
	UpdateCount      int       `json:"update_count"`
}

// Summary returns a one-sentence description suitable for listings.
func (p ProjectRecord) Summary() string {
	name := p.ProjectName
	if name == "" {
		name = "Unknown Project"
	}
	category := p.Category
	if category == "" {
		category = "construction"
	}
	region := p.Region
	if region == "" {
		region = "Saudi Arabia"
	}
	status := p.Status
	if status == "" {
		status = StatusActive
	}
	return fmt.Sprintf("%s is a %s project located in %s, currently %s.",
		name, strings.ToLower(category), region, strings.ToLower(string(status)))
}

// UpdateType labels an entry in the project update log.
type UpdateType string

const (
	UpdateCreated UpdateType = "created"
	UpdateMerged  UpdateType = "merged"
)

// UpdateLog is one historical change to a project.
type UpdateLog struct {
	ID            string     `json:"id"`
	ProjectID     string     `json:"project_id"`
	UpdateType    UpdateType `json:"update_type"`
	FieldsChanged []string   `json:"fields_changed,omitempty"`
	SourceURL     string     `json:"source_url,omitempty"`
	At            time.Time  `json:"at"`
}
