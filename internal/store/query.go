package store

import (
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/sells-group/project-registry/internal/model"
	"github.com/sells-group/project-registry/internal/normalize"
)

// projectColumns is the scan order shared by both drivers. source_count is
// derived from the sources table and always selected last.
var projectColumns = []string{
	"id", "project_name", "project_name_localized", "status", "owner",
	"main_contractor", "consultant", "region", "city", "category",
	"description", "project_value", "project_size", "start_date",
	"announcement_date", "confidence_score", "is_verified",
	"data_completeness", "first_discovered", "last_updated", "update_count",
}

const sourceCountColumn = "(SELECT COUNT(*) FROM sources s WHERE s.project_id = projects.id) AS source_count"

var sourceColumns = []string{
	"id", "project_id", "url", "source_type", "title", "reliability_score", "official", "discovered_at",
}

var dlqColumns = []string{
	"id", "item", "error", "error_type", "retry_count", "max_retries",
	"next_retry_at", "created_at", "last_failed_at",
}

var runColumns = []string{
	"id", "mode", "scraped", "processed", "added", "updated", "rejected",
	"errors", "duration_seconds", "started_at", "finished_at",
}

func selectProjects(ph sq.PlaceholderFormat) sq.SelectBuilder {
	cols := make([]string, 0, len(projectColumns)+1)
	cols = append(cols, projectColumns...)
	cols = append(cols, sourceCountColumn)
	return sq.Select(cols...).From("projects").PlaceholderFormat(ph)
}

// candidatesQuery builds the loose substring pre-filter. contains is the
// driver's position function (instr for SQLite, strpos for Postgres).
func candidatesQuery(ph sq.PlaceholderFormat, contains, namePrefix, keyPrefix string) sq.SelectBuilder {
	cond := sq.Or{sq.Expr(contains+"(name_lower, ?) > 0", namePrefix)}
	if keyPrefix != "" {
		cond = append(cond, sq.Expr(contains+"(name_key, ?) > 0", keyPrefix))
	}
	return selectProjects(ph).Where(cond).OrderBy("first_discovered ASC", "id ASC")
}

func listProjectsQuery(ph sq.PlaceholderFormat, f ProjectFilter) sq.SelectBuilder {
	b := selectProjects(ph)
	eqFold := func(col, v string) {
		if v = strings.TrimSpace(v); v != "" {
			b = b.Where("LOWER("+col+") = ?", strings.ToLower(v))
		}
	}
	eqFold("region", f.Region)
	eqFold("city", f.City)
	eqFold("category", f.Category)
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": string(f.Status)})
	}
	if v := strings.TrimSpace(f.Contractor); v != "" {
		b = b.Where("LOWER(main_contractor) LIKE ?", "%"+strings.ToLower(v)+"%")
	}
	if v := strings.TrimSpace(f.Search); v != "" {
		pat := "%" + strings.ToLower(v) + "%"
		b = b.Where(sq.Or{
			sq.Expr("name_lower LIKE ?", pat),
			sq.Expr("LOWER(description) LIKE ?", pat),
		})
	}
	b = b.OrderBy("last_updated DESC", "id ASC").Limit(listLimit(f.Limit))
	if f.Offset > 0 {
		b = b.Offset(uint64(f.Offset))
	}
	return b
}

func countByQuery(ph sq.PlaceholderFormat, col string, limit uint64) sq.SelectBuilder {
	b := sq.Select(col, "COUNT(*) AS n").
		From("projects").
		Where(sq.NotEq{col: ""}).
		GroupBy(col).
		OrderBy("n DESC", col+" ASC").
		PlaceholderFormat(ph)
	if limit > 0 {
		b = b.Limit(limit)
	}
	return b
}

func dequeueDLQQuery(ph sq.PlaceholderFormat, now any, errorType string, limit int) sq.SelectBuilder {
	b := sq.Select(dlqColumns...).
		From("dead_letter_queue").
		Where(sq.LtOrEq{"next_retry_at": now}).
		Where("retry_count < max_retries").
		PlaceholderFormat(ph)
	if errorType != "" {
		b = b.Where(sq.Eq{"error_type": errorType})
	}
	return b.OrderBy("next_retry_at ASC").Limit(listLimit(limit))
}

// timeArg converts timestamps into the driver's bind representation.
type timeArg func(t time.Time) any

func (f timeArg) ptr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return f(*t)
}

func nameColumns(name string) (lower, key string) {
	return strings.ToLower(strings.TrimSpace(name)), normalize.NameKey(name)
}

func insertProjectQuery(ph sq.PlaceholderFormat, ts timeArg, p *model.ProjectRecord) sq.InsertBuilder {
	lower, key := nameColumns(p.ProjectName)
	return sq.Insert("projects").
		Columns(
			"id", "project_name", "name_lower", "name_key", "project_name_localized", "status",
			"owner", "main_contractor", "consultant", "region", "city", "category",
			"description", "project_value", "project_size", "start_date", "announcement_date",
			"confidence_score", "is_verified", "data_completeness",
			"first_discovered", "last_updated", "update_count",
		).
		Values(
			p.ID, p.ProjectName, lower, key, p.ProjectNameLocalized, string(p.Status),
			p.Owner, p.MainContractor, p.Consultant, p.Region, p.City, p.Category,
			p.Description, p.ProjectValue, p.ProjectSize, ts.ptr(p.StartDate), ts.ptr(p.AnnouncementDate),
			p.ConfidenceScore, p.IsVerified, p.DataCompleteness,
			ts(p.FirstDiscovered), ts(p.LastUpdated), p.UpdateCount,
		).
		PlaceholderFormat(ph)
}

func updateProjectQuery(ph sq.PlaceholderFormat, ts timeArg, p *model.ProjectRecord) sq.UpdateBuilder {
	lower, key := nameColumns(p.ProjectName)
	return sq.Update("projects").
		SetMap(map[string]any{
			"project_name":           p.ProjectName,
			"name_lower":             lower,
			"name_key":               key,
			"project_name_localized": p.ProjectNameLocalized,
			"status":                 string(p.Status),
			"owner":                  p.Owner,
			"main_contractor":        p.MainContractor,
			"consultant":             p.Consultant,
			"region":                 p.Region,
			"city":                   p.City,
			"category":               p.Category,
			"description":            p.Description,
			"project_value":          p.ProjectValue,
			"project_size":           p.ProjectSize,
			"start_date":             ts.ptr(p.StartDate),
			"announcement_date":      ts.ptr(p.AnnouncementDate),
			"confidence_score":       p.ConfidenceScore,
			"is_verified":            p.IsVerified,
			"data_completeness":      p.DataCompleteness,
			"last_updated":           ts(p.LastUpdated),
			"update_count":           p.UpdateCount,
		}).
		Where(sq.Eq{"id": p.ID}).
		PlaceholderFormat(ph)
}

// prepareProject fills the id and discovery timestamps of a new project.
func prepareProject(p *model.ProjectRecord, now time.Time) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.FirstDiscovered.IsZero() {
		p.FirstDiscovered = now
	}
	if p.LastUpdated.IsZero() {
		p.LastUpdated = p.FirstDiscovered
	}
}
