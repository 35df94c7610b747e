package textmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "LJUBLJANA", "ljubljana"},
		{"diacritics", "Šentvid pri Stični", "sentvid pri sticni"},
		{"whitespace collapse", "  Novo   mesto ", "novo mesto"},
		{"empty", "", ""},
		{"mixed", "ČRNA na KOROŠKEM", "crna na koroskem"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestMainSettlement(t *testing.T) {
	assert.Equal(t, "Ljubljana", MainSettlement("Ljubljana - Center"))
	assert.Equal(t, "Ljubljana", MainSettlement("Ljubljana-Bežigrad"))
	assert.Equal(t, "Novo mesto", MainSettlement("Novo mesto"))
	assert.Equal(t, "", MainSettlement(""))
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		a, b    string
		min     float64
		max     float64
	}{
		{"identical", "Ljubljana", "Ljubljana", 1, 1},
		{"case and diacritics", "skofja loka", "Škofja Loka", 1, 1},
		{"containment", "Ljubljana", "Ljubljana mesto", 1, 1},
		{"one edit", "Lubljana", "Ljubljana", 0.8, 0.95},
		{"unrelated", "Maribor", "Koper", 0, 0.4},
		{"empty side", "", "Ljubljana", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	assert.InDelta(t, Similarity("Kranj", "Kranjska Gora"), Similarity("Kranjska Gora", "Kranj"), 1e-9)
}
