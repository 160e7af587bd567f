package resolve

import (
	"context"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/project-registry/internal/normalize"
)

// Embedder turns text into a vector for semantic name comparison.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Jaccard returns the Jaccard index of the normalized token sets of two
// project names.
func Jaccard(a, b string) float64 {
	sa := tokenSet(a)
	sb := tokenSet(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 0
	}
	inter := 0
	for t := range sa {
		if _, ok := sb[t]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

// Cosine returns the cosine similarity of two vectors of equal length.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, eris.Errorf("resolve: vector length mismatch %d != %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

func tokenSet(name string) map[string]struct{} {
	tokens := normalize.NameTokens(name)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
