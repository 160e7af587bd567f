// Package lexicon holds the immutable keyword tables, gazetteer and source
// reliability map used by extraction and scoring.
package lexicon

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// Place is a gazetteer entry: a canonical name plus alternate spellings.
type Place struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

// Category maps a canonical category to its trigger keywords.
type Category struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// DomainScore assigns a reliability score to a source domain.
type DomainScore struct {
	Domain string  `yaml:"domain"`
	Score  float64 `yaml:"score"`
}

// Tables is the serializable form of a Lexicon.
type Tables struct {
	Regions                  []Place       `yaml:"regions"`
	Cities                   []Place       `yaml:"cities"`
	Categories               []Category    `yaml:"categories"`
	CompletedMarkers         []string      `yaml:"completed_markers"`
	CancelledMarkers         []string      `yaml:"cancelled_markers"`
	UnderConstructionMarkers []string      `yaml:"under_construction_markers"`
	OngoingMarkers           []string      `yaml:"ongoing_markers"`
	ActiveKeywords           []string      `yaml:"active_keywords"`
	PlanningMarkers          []string      `yaml:"planning_markers"`
	AnnouncementMarkers      []string      `yaml:"announcement_markers"`
	SaudiCues                []string      `yaml:"saudi_cues"`
	Reliability              []DomainScore `yaml:"reliability"`
	DefaultReliability       float64       `yaml:"default_reliability"`
	OfficialThreshold        float64       `yaml:"official_threshold"`
}

// Lexicon is a compiled, read-only view of Tables. It is safe for concurrent
// use.
type Lexicon struct {
	regions    []namedSet
	cities     []namedSet
	categories []namedSet

	completed         markerSet
	cancelled         markerSet
	underConstruction markerSet
	ongoing           markerSet
	active            markerSet
	planning          markerSet
	indicators        markerSet
	saudi             markerSet

	reliability        []DomainScore
	defaultReliability float64
	officialThreshold  float64
}

type namedSet struct {
	name    string
	markers markerSet
}

// New compiles tables into a Lexicon.
func New(t Tables) (*Lexicon, error) {
	if len(t.Regions) == 0 {
		return nil, eris.New("lexicon: at least one region is required")
	}
	if t.DefaultReliability < 0 || t.DefaultReliability > 1 {
		return nil, eris.Errorf("lexicon: default_reliability %.2f out of range [0,1]", t.DefaultReliability)
	}
	for _, d := range t.Reliability {
		if d.Score < 0 || d.Score > 1 {
			return nil, eris.Errorf("lexicon: reliability for %q out of range [0,1]", d.Domain)
		}
	}

	lx := &Lexicon{
		completed:          compileMarkers(t.CompletedMarkers),
		cancelled:          compileMarkers(t.CancelledMarkers),
		underConstruction:  compileMarkers(t.UnderConstructionMarkers),
		ongoing:            compileMarkers(t.OngoingMarkers),
		active:             compileMarkers(t.ActiveKeywords),
		planning:           compileMarkers(t.PlanningMarkers),
		saudi:              compileMarkers(t.SaudiCues),
		reliability:        append([]DomainScore(nil), t.Reliability...),
		defaultReliability: t.DefaultReliability,
		officialThreshold:  t.OfficialThreshold,
	}
	if lx.officialThreshold == 0 {
		lx.officialThreshold = 0.99
	}

	var gate []string
	gate = append(gate, t.UnderConstructionMarkers...)
	gate = append(gate, t.OngoingMarkers...)
	gate = append(gate, t.ActiveKeywords...)
	gate = append(gate, t.PlanningMarkers...)
	gate = append(gate, t.AnnouncementMarkers...)
	lx.indicators = compileMarkers(gate)

	for _, p := range t.Regions {
		lx.regions = append(lx.regions, namedSet{name: p.Name, markers: compileMarkers(append([]string{p.Name}, p.Aliases...))})
	}
	for _, p := range t.Cities {
		lx.cities = append(lx.cities, namedSet{name: p.Name, markers: compileMarkers(append([]string{p.Name}, p.Aliases...))})
	}
	for _, c := range t.Categories {
		lx.categories = append(lx.categories, namedSet{name: c.Name, markers: compileMarkers(c.Keywords)})
	}
	return lx, nil
}

// Default returns the Lexicon compiled from DefaultTables.
func Default() *Lexicon {
	lx, err := New(DefaultTables())
	if err != nil {
		panic(err)
	}
	return lx
}

// Regions returns the canonical region names in gazetteer order.
func (lx *Lexicon) Regions() []string { return names(lx.regions) }

// Categories returns the canonical category names in table order.
func (lx *Lexicon) Categories() []string { return names(lx.categories) }

// MatchRegion returns the first region whose name or alias occurs in text.
func (lx *Lexicon) MatchRegion(text string) (string, bool) {
	return firstMatch(lx.regions, text)
}

// MatchCity returns the first city whose name or alias occurs in text.
func (lx *Lexicon) MatchCity(text string) (string, bool) {
	return firstMatch(lx.cities, text)
}

// MatchCategory returns the first category with a keyword hit in text.
func (lx *Lexicon) MatchCategory(text string) (string, bool) {
	return firstMatch(lx.categories, text)
}

// CanonicalRegion maps a free-form region label onto a gazetteer name.
func (lx *Lexicon) CanonicalRegion(label string) (string, bool) {
	return canonical(lx.regions, label)
}

// CanonicalCategory maps a free-form category label onto a table name.
func (lx *Lexicon) CanonicalCategory(label string) (string, bool) {
	label = strings.TrimSpace(label)
	for _, c := range lx.categories {
		if strings.EqualFold(c.name, label) {
			return c.name, true
		}
	}
	return "", false
}

// HasCompleted reports whether text carries a completion marker.
func (lx *Lexicon) HasCompleted(text string) bool { return lx.completed.match(text) }

// HasCancelled reports whether text carries a cancellation marker.
func (lx *Lexicon) HasCancelled(text string) bool { return lx.cancelled.match(text) }

// HasActiveIndicator reports whether text carries any positive liveness cue.
func (lx *Lexicon) HasActiveIndicator(text string) bool { return lx.indicators.match(text) }

// HasUnderConstruction reports whether text carries an under-construction marker.
func (lx *Lexicon) HasUnderConstruction(text string) bool { return lx.underConstruction.match(text) }

// HasOngoing reports whether text carries an ongoing marker.
func (lx *Lexicon) HasOngoing(text string) bool { return lx.ongoing.match(text) }

// HasActive reports whether text carries a generic active keyword.
func (lx *Lexicon) HasActive(text string) bool { return lx.active.match(text) }

// HasPlanning reports whether text carries a planning marker.
func (lx *Lexicon) HasPlanning(text string) bool { return lx.planning.match(text) }

// MentionsSaudi reports whether text refers to Saudi Arabia or one of its
// major cities.
func (lx *Lexicon) MentionsSaudi(text string) bool { return lx.saudi.match(text) }

// OfficialThreshold is the reliability at or above which a source counts as
// official.
func (lx *Lexicon) OfficialThreshold() float64 { return lx.officialThreshold }

// ReliabilityOf returns the configured reliability for the URL's domain, or
// the default when no entry matches.
func (lx *Lexicon) ReliabilityOf(rawURL string) float64 {
	host := ""
	if u, err := url.Parse(strings.TrimSpace(rawURL)); err == nil {
		host = strings.ToLower(u.Hostname())
	}
	for _, d := range lx.reliability {
		domain := strings.ToLower(d.Domain)
		if host != "" {
			if host == domain || strings.HasSuffix(host, "."+domain) {
				return d.Score
			}
			continue
		}
		if strings.Contains(strings.ToLower(rawURL), domain) {
			return d.Score
		}
	}
	return lx.defaultReliability
}

func names(sets []namedSet) []string {
	out := make([]string, len(sets))
	for i, s := range sets {
		out[i] = s.name
	}
	return out
}

func firstMatch(sets []namedSet, text string) (string, bool) {
	for _, s := range sets {
		if s.markers.match(text) {
			return s.name, true
		}
	}
	return "", false
}

func canonical(sets []namedSet, label string) (string, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", false
	}
	for _, s := range sets {
		if strings.EqualFold(s.name, label) {
			return s.name, true
		}
	}
	return firstMatch(sets, label)
}

// markerSet matches a list of phrases. ASCII phrases match on word
// boundaries against the lower-cased text; other phrases match as substrings
// of both the lower-cased and the raw text.
type markerSet struct {
	words  *regexp.Regexp
	others []string
}

func compileMarkers(markers []string) markerSet {
	var ms markerSet
	var alts []string
	for _, m := range markers {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if isASCII(m) {
			alts = append(alts, regexp.QuoteMeta(strings.ToLower(m)))
			continue
		}
		ms.others = append(ms.others, m)
	}
	if len(alts) > 0 {
		ms.words = regexp.MustCompile(`\b(?:` + strings.Join(alts, "|") + `)\b`)
	}
	return ms
}

func (ms markerSet) match(text string) bool {
	lower := strings.ToLower(text)
	if ms.words != nil && ms.words.MatchString(lower) {
		return true
	}
	for _, m := range ms.others {
		if strings.Contains(lower, strings.ToLower(m)) || strings.Contains(text, m) {
			return true
		}
	}
	return false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
