package pipeline

import (
	"context"
	"math"
	"strings"

	"github.com/sells-group/project-registry/internal/model"
	"github.com/sells-group/project-registry/internal/resolve"
	"github.com/sells-group/project-registry/internal/store"
)

// persist resolves rec against the registry and creates or merges inside one
// transaction. Items for the same region are serialized so two concurrent
// creates cannot produce duplicate records for one project.
func (p *Pipeline) persist(ctx context.Context, item model.RawItem, rec *model.ExtractedRecord) (model.Outcome, *model.ProjectRecord, error) {
	unlock := p.locks.Lock(strings.ToLower(strings.TrimSpace(rec.Region)))
	defer unlock()

	var (
		outcome model.Outcome
		project *model.ProjectRecord
	)
	err := p.store.InTx(ctx, func(tx store.Tx) error {
		decision, err := p.resolver.Resolve(ctx, tx, rec)
		if err != nil {
			return err
		}
		src := p.sourceFor(item)
		if decision.Action == resolve.ActionMerge {
			outcome = model.OutcomeUpdated
			project, err = p.merge(ctx, tx, decision.Match, rec, src)
			return err
		}
		outcome = model.OutcomeAdded
		project, err = p.create(ctx, tx, rec, src)
		return err
	})
	if err != nil {
		return "", nil, err
	}
	return outcome, project, nil
}

func (p *Pipeline) create(ctx context.Context, tx store.Tx, rec *model.ExtractedRecord, src model.SourceRecord) (*model.ProjectRecord, error) {
	now := p.opts.Now()
	project := &model.ProjectRecord{
		ProjectFields:   rec.ProjectFields,
		FirstDiscovered: now,
		LastUpdated:     now,
	}
	a := p.scorer.Recompute(project.ProjectFields, []model.SourceRecord{src})
	project.ConfidenceScore = a.Score
	project.IsVerified = a.Verified
	project.DataCompleteness = a.Completeness

	if err := tx.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	src.ProjectID = project.ID
	src.DiscoveredAt = now
	if _, err := tx.AddSource(ctx, &src); err != nil {
		return nil, err
	}
	project.SourceCount = 1

	entry := &model.UpdateLog{
		ProjectID:  project.ID,
		UpdateType: model.UpdateCreated,
		SourceURL:  src.URL,
		At:         now,
	}
	if err := tx.AddUpdateLog(ctx, entry); err != nil {
		return nil, err
	}
	return project, nil
}

// merge fills empty fields of match from rec, attaches src and recomputes
// confidence over the full source set. Re-submitting a known URL with no new
// fields leaves the project untouched.
func (p *Pipeline) merge(ctx context.Context, tx store.Tx, match *model.ProjectRecord, rec *model.ExtractedRecord, src model.SourceRecord) (*model.ProjectRecord, error) {
	now := p.opts.Now()
	project := *match
	changed := resolve.Merge(&project.ProjectFields, rec.ProjectFields)

	src.ProjectID = project.ID
	src.DiscoveredAt = now
	inserted, err := tx.AddSource(ctx, &src)
	if err != nil {
		return nil, err
	}
	if !inserted && len(changed) == 0 {
		return &project, nil
	}

	sources, err := tx.ListSources(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	a := p.scorer.Recompute(project.ProjectFields, sources)
	project.ConfidenceScore = math.Max(match.ConfidenceScore, a.Score)
	project.IsVerified = match.IsVerified || a.Verified
	project.DataCompleteness = a.Completeness
	project.SourceCount = len(sources)
	project.LastUpdated = now
	project.UpdateCount++

	if err := tx.UpdateProject(ctx, &project); err != nil {
		return nil, err
	}
	entry := &model.UpdateLog{
		ProjectID:     project.ID,
		UpdateType:    model.UpdateMerged,
		FieldsChanged: changed,
		SourceURL:     src.URL,
		At:            now,
	}
	if err := tx.AddUpdateLog(ctx, entry); err != nil {
		return nil, err
	}
	return &project, nil
}

// sourceFor builds the evidence record for item. An explicit reliability
// wins over the domain table.
func (p *Pipeline) sourceFor(item model.RawItem) model.SourceRecord {
	reliability := p.lex.ReliabilityOf(item.SourceURL)
	if item.SourceReliability != nil {
		reliability = math.Max(0, math.Min(1, *item.SourceReliability))
	}
	sourceType := item.SourceType
	if sourceType == "" {
		sourceType = model.SourceTypeWebsite
	}
	return model.SourceRecord{
		URL:              item.SourceURL,
		SourceType:       sourceType,
		Title:            item.Title,
		ReliabilityScore: reliability,
		Official:         item.OfficialSource,
	}
}
