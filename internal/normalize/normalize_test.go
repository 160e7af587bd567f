package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapse whitespace", "  NEOM \n\t announces   The Line ", "NEOM announces The Line"},
		{"zero width", "King\u200b Salman\u200d Park", "King Salman Park"},
		{"nbsp", "Riyadh\u00a0Metro", "Riyadh Metro"},
		{"fullwidth", "ＮＥＯＭ", "NEOM"},
		{"ligature", "ﬁnished", "finished"},
		{"tatweel", "مشـ\u0640روع", "مشروع"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Text(tt.in))
		})
	}
}

func TestTextIdempotent(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"  NEOM \u200b announces\u00a0The Line  ",
		"ＡＣＭＥ Contracting\tGroup",
		"مشروع   الرياض\u0640 الجديد",
		"",
	} {
		once := Text(in)
		assert.Equal(t, once, Text(once), in)
	}
}

func TestDetectScript(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ScriptLatin, DetectScript("Riyadh Metro Line 7"))
	assert.Equal(t, ScriptArabic, DetectScript("مشروع مترو الرياض"))
	assert.Equal(t, ScriptMixed, DetectScript("مشروع مترو Riyadh Metro"))
	assert.Equal(t, ScriptUnknown, DetectScript("2025 - 123"))
}

func TestHasArabic(t *testing.T) {
	t.Parallel()

	assert.True(t, HasArabic("Phase 1 المرحلة"))
	assert.False(t, HasArabic("Phase 1"))
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Riyadh", Truncate("Riyadh Metro", 6))
	assert.Equal(t, "مشروع", Truncate("مشروع الرياض", 5))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "", Truncate("abc", 0))
}

func TestNameKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
	}{
		{"King Salman Park Phase 1", "King Salman Park Project Phase One"},
		{"The Riyadh Metro Project", "riyadh metro"},
		{"Jeddah Tower, Phase II", "Jeddah Tower Phase 2"},
		{"Diriyah Gate - Second Phase", "Diriyah Gate 2nd Phase"},
		{"مشروع أبراج الرياض", "ابراج الرياض"},
	}
	for _, tt := range tests {
		t.Run(tt.a, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, NameKey(tt.a), NameKey(tt.b))
		})
	}

	assert.NotEqual(t, NameKey("King Salman Park"), NameKey("King Abdullah Park"))
	assert.Equal(t, "king salman park phase 1", NameKey("King Salman Park Phase 1"))
}

func TestNameTokens(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"red", "sea", "resort", "phase", "3"}, NameTokens("The Red Sea Resort (Phase Three)"))
	assert.Empty(t, NameTokens("The Project"))
}
