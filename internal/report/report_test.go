package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/project-registry/internal/model"
	"github.com/sells-group/project-registry/internal/pipeline"
)

func TestTable_AlignsByDisplayWidth(t *testing.T) {
	tbl := NewTable("NAME", "REGION")
	tbl.Append("مشروع حديقة الملك سلمان", "Riyadh")
	tbl.Append("The Line", "Tabuk")

	var buf bytes.Buffer
	require.NoError(t, tbl.Render(&buf))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	col := runewidth.StringWidth(lines[0][:strings.Index(lines[0], "REGION")])
	for _, line := range lines[2:] {
		region := strings.LastIndex(line, "  ") + 2
		assert.Equal(t, col, runewidth.StringWidth(line[:region]), line)
	}
	assert.True(t, strings.HasPrefix(lines[1], "----"))
}

func TestTable_TruncatesAndPads(t *testing.T) {
	tbl := NewTable("A", "B", "C")
	tbl.MaxWidth = 10
	tbl.Append("a very long project name that overflows", "x")

	var buf bytes.Buffer
	require.NoError(t, tbl.Render(&buf))
	assert.Contains(t, buf.String(), "a very ...")
	assert.Equal(t, 1, tbl.Len())
}

func TestProjects(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Projects(&buf, []model.ProjectRecord{{
		ID: "0123456789abcdef",
		ProjectFields: model.ProjectFields{
			ProjectName: "King Salman Park Phase 1",
			Status:      model.StatusUnderConstruction,
			Region:      "Riyadh",
			Category:    "Mega Project",
		},
		ConfidenceScore: 0.78,
		IsVerified:      true,
		SourceCount:     2,
		LastUpdated:     time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC),
	}}))

	out := buf.String()
	assert.Contains(t, out, "01234567 ")
	assert.Contains(t, out, "0.78*")
	assert.Contains(t, out, "2024-03-14 09:00")
}

func TestProject_UsesSummaryWithoutDescription(t *testing.T) {
	p := &model.ProjectRecord{
		ID:            "p1",
		ProjectFields: model.ProjectFields{ProjectName: "The Line", Region: "Tabuk", Category: "Mega Project", Status: model.StatusUnderConstruction},
	}
	var buf bytes.Buffer
	require.NoError(t, Project(&buf, p, []model.SourceRecord{{URL: "https://www.arabnews.com/neom", SourceType: model.SourceTypeNews, ReliabilityScore: 0.85}}))

	out := buf.String()
	assert.Contains(t, out, "The Line is a mega project project located in Tabuk")
	assert.Contains(t, out, "https://www.arabnews.com/neom")
	assert.Contains(t, out, "0.85")
}

func TestSummaryStatsRunsReplay(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Summary(&buf, model.Summary{Scraped: 4, Processed: 4, Added: 2, Updated: 1, Rejected: 1, DurationSeconds: 1.5}))
	assert.Contains(t, buf.String(), "1.50s")

	buf.Reset()
	require.NoError(t, Stats(&buf, &model.RegistryStats{
		TotalProjects: 2,
		ByRegion:      []model.CountBy{{Key: "Riyadh", Count: 1}, {Key: "Tabuk", Count: 1}},
	}))
	assert.Contains(t, buf.String(), "Total projects")
	assert.Contains(t, buf.String(), "REGION")
	assert.NotContains(t, buf.String(), "CONTRACTOR")

	buf.Reset()
	require.NoError(t, Runs(&buf, []model.RunLog{{ID: "run-1", Mode: model.RunModeBatch, Summary: model.Summary{Processed: 3}}}))
	assert.Contains(t, buf.String(), "batch")

	buf.Reset()
	require.NoError(t, Replay(&buf, pipeline.ReplayResult{Attempted: 2, Succeeded: 1, Failed: 1}, 1))
	assert.Contains(t, buf.String(), "ATTEMPTED")
}
