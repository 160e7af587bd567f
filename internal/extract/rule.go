package extract

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/project-registry/internal/lexicon"
	"github.com/sells-group/project-registry/internal/model"
	"github.com/sells-group/project-registry/internal/normalize"
)

const (
	minNameLen        = 10
	maxNameLen        = 200
	fallbackNameLen   = 100
	minEntityLen      = 5
	maxEntityLen      = 150
	descriptionLength = 300
)

var (
	labelNameRe = regexp.MustCompile(`(?i:\bproject(?:\s+name)?\s*:)\s*([^\n\r.;,]{3,200})|(?:اسم المشروع|المشروع)\s*:\s*([^\n\r.;،]{3,200})`)

	theProjectRe = regexp.MustCompile(`(?i:\bthe)\s+([A-Z][\p{L}\p{N}&'\- ]*?)\s+(?i:project)\b`)

	capitalizedProjectRe = regexp.MustCompile(`\b([A-Z][\p{L}\p{N}&'\-]*(?:\s+[A-Z0-9][\p{L}\p{N}&'\-]*)+)\s+(?i:project)\b`)

	arabicProjectRe = regexp.MustCompile(`(مشروع\s+[^\n\r.،,;:؛]{3,80})`)

	suffixNameRe = regexp.MustCompile(`\b([A-Z][\p{L}\p{N}&'\-]*(?:\s+(?:[A-Z0-9][\p{L}\p{N}&'\-]*|of|al|the|and|&))*\s+(?:Development|Complex|Towers?|Center|Centre|City|Park|District|Hub|Resort|Stadium|Hospital|Airport))\b`)

	sentenceEnd = regexp.MustCompile(`[.!?؟\n]`)

	valueRe = regexp.MustCompile(`(?i)(?:\b(?:SAR|SR|USD)\s?|\$\s?)\d[\d,.]*(?:\s?(?:billion|million|bn|mn)\b)?|\b\d[\d,.]*\s?(?:billion|million|bn|mn)?\s?(?:SAR|riyals?|USD|dollars)\b`)

	sizeRe = regexp.MustCompile(`(?i)\b\d[\d,.]*\s?(?:square\s+met(?:er|re)s|square\s+kilomet(?:er|re)s|sq\.?\s?m|sqm|m2|km2|hectares|km)\b`)
)

const entityName = `([A-Z][\p{L}\p{N}&'\- ]*\b(?:Company|Corporation|Corp|Ltd|Limited|Group|Contracting|Holding)\b)`

func entityPattern(labels ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i:\b(?:` + strings.Join(labels, "|") + `))\b\s*[:\-]?\s*` + entityName)
}

var (
	ownerRes = []*regexp.Regexp{
		entityPattern("owner", "client", "developer", "developed by", "owned by", "commissioned by"),
		entityPattern("by"),
	}
	contractorRes = []*regexp.Regexp{
		entityPattern("main contractor", "contractor", "builder", "awarded to", "contract to", "built by", "constructed by", "executed by"),
	}
	consultantRes = []*regexp.Regexp{
		entityPattern("consultant", "designer", "architect", "designed by", "supervised by"),
	}
)

// RuleExtractor extracts projects with keyword tables and regular
// expressions. It never returns an error.
type RuleExtractor struct {
	lex *lexicon.Lexicon
}

// NewRuleExtractor creates a RuleExtractor over the given lexicon.
func NewRuleExtractor(lx *lexicon.Lexicon) *RuleExtractor {
	return &RuleExtractor{lex: lx}
}

// Name implements Extractor.
func (r *RuleExtractor) Name() string { return string(model.ExtractionRule) }

// Extract implements Extractor. Rejection scans run before any field is
// extracted: completion markers, then cancellation markers, then the
// liveness gate.
func (r *RuleExtractor) Extract(_ context.Context, text, sourceURL string) (Result, error) {
	text = normalize.Text(text)
	if text == "" {
		return reject(model.RejectMissingText, "empty text"), nil
	}

	if r.lex.HasCompleted(text) {
		return reject(model.RejectCompleted, "completion marker"), nil
	}
	if r.lex.HasCancelled(text) {
		return reject(model.RejectCancelled, "cancellation marker"), nil
	}
	if !r.lex.HasActiveIndicator(text) {
		return reject(model.RejectNoActiveIndicator, "no active indicator"), nil
	}

	name := extractName(text)
	if utf8.RuneCountInString(name) < minNameLen {
		return reject(model.RejectMissingName, "name too short: "+name), nil
	}
	region, ok := r.lex.MatchRegion(text)
	if !ok {
		return reject(model.RejectMissingRegion, "no region in gazetteer"), nil
	}

	status := r.classifyStatus(text)
	if !status.IsLive() {
		return reject(model.RejectInvalidStatus, string(status)), nil
	}

	rec := &model.ExtractedRecord{
		ExtractionMethod: model.ExtractionRule,
		SourceURL:        sourceURL,
	}
	rec.ProjectName = name
	rec.Status = status
	rec.Region = region
	rec.City, _ = r.lex.MatchCity(text)
	rec.Category = model.DefaultCategory
	if cat, ok := r.lex.MatchCategory(text); ok {
		rec.Category = cat
	}
	rec.Owner = firstEntity(text, ownerRes)
	rec.MainContractor = firstEntity(text, contractorRes)
	rec.Consultant = firstEntity(text, consultantRes)
	rec.Description = normalize.Truncate(text, descriptionLength)
	rec.ProjectValue = cleanMatch(valueRe.FindString(text))
	rec.ProjectSize = cleanMatch(sizeRe.FindString(text))
	switch normalize.DetectScript(name) {
	case normalize.ScriptLatin, normalize.ScriptUnknown:
		if m := arabicProjectRe.FindStringSubmatch(text); m != nil {
			rec.ProjectNameLocalized = cleanMatch(m[1])
		}
	}

	return Result{Record: rec}, nil
}

// classifyStatus maps status markers onto a Status, most specific first.
func (r *RuleExtractor) classifyStatus(text string) model.Status {
	switch {
	case r.lex.HasCompleted(text):
		return model.StatusCompleted
	case r.lex.HasCancelled(text):
		return model.StatusCancelled
	case r.lex.HasUnderConstruction(text):
		return model.StatusUnderConstruction
	case r.lex.HasOngoing(text):
		return model.StatusOngoing
	case r.lex.HasActive(text):
		return model.StatusActive
	case r.lex.HasPlanning(text):
		return model.StatusPlanning
	default:
		return model.StatusAnnounced
	}
}

// extractName tries the name patterns in order and falls back to the first
// sentence.
func extractName(text string) string {
	if m := labelNameRe.FindStringSubmatch(text); m != nil {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if acceptName(cleanMatch(name)) {
			return cleanMatch(name)
		}
	}
	for _, re := range []*regexp.Regexp{theProjectRe, capitalizedProjectRe, arabicProjectRe, suffixNameRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if name := cleanMatch(m[1]); acceptName(name) {
				return name
			}
		}
	}

	first := text
	if loc := sentenceEnd.FindStringIndex(text); loc != nil {
		first = text[:loc[0]]
	}
	return cleanMatch(normalize.Truncate(first, fallbackNameLen))
}

func acceptName(name string) bool {
	n := utf8.RuneCountInString(name)
	return n > minNameLen && n < maxNameLen
}

func firstEntity(text string, res []*regexp.Regexp) string {
	for _, re := range res {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			name := cleanMatch(m[1])
			if n := utf8.RuneCountInString(name); n > minEntityLen && n < maxEntityLen {
				return name
			}
		}
	}
	return ""
}

func cleanMatch(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `.,;:-"'`))
}
