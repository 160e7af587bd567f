package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sells-group/project-registry/internal/model"
	"github.com/sells-group/project-registry/internal/pipeline"
)

const nameWidth = 40

// Projects writes a listing of projects.
func Projects(w io.Writer, projects []model.ProjectRecord) error {
	t := NewTable("ID", "PROJECT", "STATUS", "REGION", "CATEGORY", "CONF", "SOURCES", "UPDATED")
	t.MaxWidth = nameWidth
	for _, p := range projects {
		verified := ""
		if p.IsVerified {
			verified = "*"
		}
		t.Append(
			shortID(p.ID),
			p.ProjectName,
			string(p.Status),
			p.Region,
			p.Category,
			fmt.Sprintf("%.2f%s", p.ConfidenceScore, verified),
			strconv.Itoa(p.SourceCount),
			p.LastUpdated.Format("2006-01-02 15:04"),
		)
	}
	return t.Render(w)
}

// Project writes the details of one project and its evidence.
func Project(w io.Writer, p *model.ProjectRecord, sources []model.SourceRecord) error {
	fields := NewTable("FIELD", "VALUE")
	fields.Append("ID", p.ID)
	fields.Append("Name", p.ProjectName)
	if p.ProjectNameLocalized != "" {
		fields.Append("Name (local)", p.ProjectNameLocalized)
	}
	fields.Append("Status", string(p.Status))
	fields.Append("Region", p.Region)
	fields.Append("City", p.City)
	fields.Append("Category", p.Category)
	fields.Append("Owner", p.Owner)
	fields.Append("Main contractor", p.MainContractor)
	fields.Append("Consultant", p.Consultant)
	fields.Append("Value", p.ProjectValue)
	fields.Append("Confidence", fmt.Sprintf("%.2f (verified: %t)", p.ConfidenceScore, p.IsVerified))
	fields.Append("Completeness", fmt.Sprintf("%.2f", p.DataCompleteness))
	fields.Append("First discovered", p.FirstDiscovered.Format(time.RFC3339))
	fields.Append("Last updated", p.LastUpdated.Format(time.RFC3339))
	summary := p.Description
	if summary == "" {
		summary = p.Summary()
	}
	fields.Append("Summary", summary)
	if err := fields.Render(w); err != nil {
		return err
	}

	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	src := NewTable("SOURCE", "TYPE", "RELIABILITY", "DISCOVERED")
	for _, s := range sources {
		src.Append(s.URL, string(s.SourceType), fmt.Sprintf("%.2f", s.ReliabilityScore), s.DiscoveredAt.Format("2006-01-02"))
	}
	return src.Render(w)
}

// Summary writes the counts of one run.
func Summary(w io.Writer, s model.Summary) error {
	t := NewTable("SCRAPED", "PROCESSED", "ADDED", "UPDATED", "REJECTED", "ERRORS", "DURATION")
	t.Append(
		strconv.Itoa(s.Scraped),
		strconv.Itoa(s.Processed),
		strconv.Itoa(s.Added),
		strconv.Itoa(s.Updated),
		strconv.Itoa(s.Rejected),
		strconv.Itoa(s.Errors),
		fmt.Sprintf("%.2fs", s.DurationSeconds),
	)
	return t.Render(w)
}

// Stats writes registry totals and the grouped counts.
func Stats(w io.Writer, s *model.RegistryStats) error {
	totals := NewTable("METRIC", "VALUE")
	totals.Append("Total projects", strconv.Itoa(s.TotalProjects))
	totals.Append("New this month", strconv.Itoa(s.NewThisMonth))
	totals.Append("Average confidence", fmt.Sprintf("%.2f", s.AvgConfidence))
	if err := totals.Render(w); err != nil {
		return err
	}
	for _, group := range []struct {
		title string
		rows  []model.CountBy
	}{
		{"REGION", s.ByRegion},
		{"CATEGORY", s.ByCategory},
		{"CONTRACTOR", s.TopContractors},
	} {
		if len(group.rows) == 0 {
			continue
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
		t := NewTable(group.title, "PROJECTS")
		t.MaxWidth = nameWidth
		for _, c := range group.rows {
			t.Append(c.Key, strconv.Itoa(c.Count))
		}
		if err := t.Render(w); err != nil {
			return err
		}
	}
	return nil
}

// Runs writes the run history.
func Runs(w io.Writer, runs []model.RunLog) error {
	t := NewTable("ID", "MODE", "STARTED", "PROCESSED", "ADDED", "UPDATED", "REJECTED", "ERRORS", "DURATION")
	for _, r := range runs {
		t.Append(
			shortID(r.ID),
			string(r.Mode),
			r.StartedAt.Format("2006-01-02 15:04"),
			strconv.Itoa(r.Summary.Processed),
			strconv.Itoa(r.Summary.Added),
			strconv.Itoa(r.Summary.Updated),
			strconv.Itoa(r.Summary.Rejected),
			strconv.Itoa(r.Summary.Errors),
			fmt.Sprintf("%.2fs", r.Summary.DurationSeconds),
		)
	}
	return t.Render(w)
}

// Replay writes the outcome of a dead-letter replay.
func Replay(w io.Writer, r pipeline.ReplayResult, remaining int) error {
	t := NewTable("ATTEMPTED", "SUCCEEDED", "FAILED", "REMAINING")
	t.Append(strconv.Itoa(r.Attempted), strconv.Itoa(r.Succeeded), strconv.Itoa(r.Failed), strconv.Itoa(remaining))
	return t.Render(w)
}

// shortID returns the first 8 characters of a UUID for compact display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
