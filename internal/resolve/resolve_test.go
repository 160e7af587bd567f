package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/project-registry/internal/model"
)

type fakeFinder struct {
	candidates []model.ProjectRecord
	err        error
	namePrefix string
	keyPrefix  string
}

func (f *fakeFinder) FindCandidates(_ context.Context, namePrefix, keyPrefix string) ([]model.ProjectRecord, error) {
	f.namePrefix, f.keyPrefix = namePrefix, keyPrefix
	return f.candidates, f.err
}

type fakeEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vectors[text], nil
}

func stored(id, name, region string) model.ProjectRecord {
	return model.ProjectRecord{ID: id, ProjectFields: model.ProjectFields{ProjectName: name, Region: region}}
}

func extracted(name, region string) *model.ExtractedRecord {
	return &model.ExtractedRecord{ProjectFields: model.ProjectFields{ProjectName: name, Region: region}}
}

func TestJaccard(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want float64
	}{
		{"King Salman Park Phase 1", "King Salman Park Project Phase One", 1.0},
		{"Riyadh Metro Line 7", "Riyadh Metro Line 6", 0.6},
		{"Red Sea Airport", "Red Sea International Airport", 0.75},
		{"Jeddah Tower", "Diriyah Gate", 0},
		{"", "", 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Jaccard(tt.a, tt.b), 0.001, "%q vs %q", tt.a, tt.b)
	}
}

func TestCosine(t *testing.T) {
	t.Parallel()

	sim, err := Cosine([]float64{1, 0}, []float64{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 0.0001)

	sim, err = Cosine([]float64{1, 0}, []float64{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 0.0001)

	sim, err = Cosine([]float64{0, 0}, []float64{1, 1})
	require.NoError(t, err)
	assert.Zero(t, sim)

	_, err = Cosine([]float64{1}, []float64{1, 2})
	assert.Error(t, err)
}

func TestPrefixes(t *testing.T) {
	t.Parallel()

	r := NewResolver(Config{}, nil)
	namePrefix, keyPrefix := r.Prefixes("  King Salman Park Project Phase One ")
	assert.Equal(t, "king salman park pro", namePrefix)
	assert.Equal(t, "king salman park pha", keyPrefix)
}

func TestResolve_KingSalmanParkMerges(t *testing.T) {
	t.Parallel()

	finder := &fakeFinder{candidates: []model.ProjectRecord{stored("p1", "King Salman Park Phase 1", "Riyadh")}}
	r := NewResolver(Config{Threshold: 0.85}, nil)

	d, err := r.Resolve(context.Background(), finder, extracted("King Salman Park Project Phase One", "Riyadh"))
	require.NoError(t, err)
	assert.Equal(t, ActionMerge, d.Action)
	require.NotNil(t, d.Match)
	assert.Equal(t, "p1", d.Match.ID)
	assert.GreaterOrEqual(t, d.Similarity, 0.85)
	assert.Equal(t, "king salman park pha", finder.keyPrefix)
}

func TestDecide(t *testing.T) {
	t.Parallel()

	r := NewResolver(Config{}, nil)
	ctx := context.Background()

	// Same name, different region: distinct projects.
	d := r.Decide(ctx, []model.ProjectRecord{stored("p1", "Red Sea Airport", "Tabuk")}, extracted("Red Sea Airport", "Makkah"))
	assert.Equal(t, ActionCreate, d.Action)
	assert.Nil(t, d.Match)

	// Similar but below threshold.
	d = r.Decide(ctx, []model.ProjectRecord{stored("p1", "Riyadh Metro Line 7", "Riyadh")}, extracted("Riyadh Metro Line 6", "Riyadh"))
	assert.Equal(t, ActionCreate, d.Action)

	// Region comparison ignores case; best candidate wins.
	d = r.Decide(ctx, []model.ProjectRecord{
		stored("p1", "Red Sea International Airport", "tabuk"),
		stored("p2", "The Red Sea Airport Project", "TABUK"),
	}, extracted("Red Sea Airport", "Tabuk"))
	assert.Equal(t, ActionMerge, d.Action)
	assert.Equal(t, "p2", d.Match.ID)

	// No candidates.
	assert.Equal(t, ActionCreate, r.Decide(ctx, nil, extracted("Jeddah Tower", "Makkah")).Action)
}

func TestResolve_FinderError(t *testing.T) {
	t.Parallel()

	finder := &fakeFinder{err: errors.New("database is locked")}
	_, err := NewResolver(Config{}, nil).Resolve(context.Background(), finder, extracted("Jeddah Tower", "Makkah"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolve: find candidates")
}

func TestSimilarity_Embedder(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vectors: map[string][]float64{
		"NEOM The Line":         {0.9, 0.1, 0},
		"The Line at NEOM City": {0.88, 0.12, 0.01},
	}}
	r := NewResolver(Config{}, emb)
	sim := r.Similarity(context.Background(), "NEOM The Line", "The Line at NEOM City")
	assert.Greater(t, sim, 0.99)
	assert.Less(t, Jaccard("NEOM The Line", "The Line at NEOM City"), 0.85)

	r = NewResolver(Config{}, &fakeEmbedder{err: errors.New("embedding service down")})
	assert.InDelta(t, Jaccard("Red Sea Airport", "Red Sea International Airport"),
		r.Similarity(context.Background(), "Red Sea Airport", "Red Sea International Airport"), 0.0001)
}

func TestMerge_FillsGapsOnly(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	existing := model.ProjectFields{
		ProjectName:    "King Salman Park",
		Status:         model.StatusUnderConstruction,
		Region:         "Riyadh",
		Category:       "Mega Project",
		MainContractor: "Nesma & Partners Contracting",
	}
	incoming := model.ProjectFields{
		ProjectName:    "King Salman Park Project Phase One",
		Status:         model.StatusAnnounced,
		Region:         "Riyadh",
		Category:       "Commercial",
		MainContractor: "Other Contracting Company",
		Owner:          "King Salman Park Foundation",
		City:           "Riyadh",
		StartDate:      &start,
	}

	changed := Merge(&existing, incoming)
	assert.Equal(t, []string{"owner", "city", "start_date"}, changed)
	assert.Equal(t, "King Salman Park", existing.ProjectName)
	assert.Equal(t, model.StatusUnderConstruction, existing.Status)
	assert.Equal(t, "Mega Project", existing.Category)
	assert.Equal(t, "Nesma & Partners Contracting", existing.MainContractor)
	assert.Equal(t, "King Salman Park Foundation", existing.Owner)
	require.NotNil(t, existing.StartDate)
	assert.NotSame(t, incoming.StartDate, existing.StartDate)

	assert.Empty(t, Merge(&existing, incoming), "second merge of the same evidence changes nothing")
}
