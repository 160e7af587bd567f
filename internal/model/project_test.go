package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   Status
		wantOK bool
	}{
		{"Active", StatusActive, true},
		{"under construction", StatusUnderConstruction, true},
		{"UnderConstruction", StatusUnderConstruction, true},
		{"UNDER_CONSTRUCTION", StatusUnderConstruction, true},
		{"in progress", StatusOngoing, true},
		{"Planning", StatusPlanning, true},
		{"announced", StatusAnnounced, true},
		{"Completed", StatusCompleted, true},
		{"canceled", StatusCancelled, true},
		{"tendering", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseStatus(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusIsLive(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusActive, StatusOngoing, StatusUnderConstruction, StatusPlanning, StatusAnnounced} {
		assert.True(t, s.IsLive(), s)
	}
	for _, s := range []Status{StatusCompleted, StatusCancelled, ""} {
		assert.False(t, s.IsLive(), s)
	}
}

func TestProjectFieldsCompleteness(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.InDelta(t, 0.0, ProjectFields{}.Completeness(), 0.001)

	minimal := ProjectFields{
		ProjectName: "Jeddah Central Development",
		Status:      StatusActive,
		Region:      "Makkah",
		Category:    "Mixed-Use",
	}
	assert.InDelta(t, 0.4, minimal.Completeness(), 0.001)

	full := minimal
	full.Owner = "Jeddah Central Development Company"
	full.MainContractor = "Nesma Contracting Company"
	full.City = "Jeddah"
	full.Description = "Waterfront redevelopment."
	full.StartDate = &start
	full.ProjectValue = "75 billion SAR"
	assert.InDelta(t, 1.0, full.Completeness(), 0.001)
}

func TestParseSourceType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, SourceTypeNews, ParseSourceType("News Aggregator"))
	assert.Equal(t, SourceTypeOfficialGov, ParseSourceType("government"))
	assert.Equal(t, SourceTypePortal, ParseSourceType("Portal"))
	assert.Equal(t, SourceTypeWebsite, ParseSourceType("something else"))
}

func TestProjectRecordSummary(t *testing.T) {
	t.Parallel()

	p := ProjectRecord{ProjectFields: ProjectFields{
		ProjectName: "Riyadh Metro Line 7",
		Category:    "Transportation",
		Region:      "Riyadh",
		Status:      StatusUnderConstruction,
	}}
	assert.Equal(t, "Riyadh Metro Line 7 is a transportation project located in Riyadh, currently under construction.", p.Summary())

	assert.Equal(t, "Unknown Project is a construction project located in Saudi Arabia, currently active.", ProjectRecord{}.Summary())
}
