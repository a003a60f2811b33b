package texture

import (
	"path/filepath"
	"strings"
)

// Keyword weights for the content-scoring heuristic. The exact values
// are tuning constants; only the ordering they produce is contractual
// (exact name > keyword match > fallback, colormap keywords beat
// non-color map types).
var positiveKeywords = []struct {
	word   string
	weight int
}{
	{"diffuse", 30},
	{"albedo", 30},
	{"color", 25},
	{"base", 20},
	{"texture", 15},
	{"material", 10},
	{"map", 10},
}

var negativeKeywords = []struct {
	word   string
	weight int
}{
	{"normal", 40},
	{"bump", 35},
	{"height", 35},
	{"rough", 30},
	{"metal", 30},
	{"spec", 30},
	{"occlusion", 25},
	{"ao", 25},
}

const (
	exactNameBonus   = 100
	containmentBonus = 50
	pngBonus         = 5
	jpegBonus        = 3
)

// Score rates an image filename as a colormap candidate for a model
// whose base name (no extension) is modelBase. Higher is better; zero
// or below means "no positive signal".
func Score(imageName, modelBase string) int {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(imageName), "."))
	stem := strings.ToLower(strings.TrimSuffix(imageName, filepath.Ext(imageName)))
	base := strings.ToLower(modelBase)

	score := 0

	if base != "" {
		if stem == base {
			score += exactNameBonus
		} else if strings.Contains(stem, base) || strings.Contains(base, stem) {
			score += containmentBonus
		}
	}

	for _, kw := range positiveKeywords {
		if strings.Contains(stem, kw.word) {
			score += kw.weight
		}
	}
	for _, kw := range negativeKeywords {
		if kw.word == "ao" {
			// Too short for substring matching; require a token.
			if hasToken(stem, "ao") {
				score -= kw.weight
			}
			continue
		}
		if strings.Contains(stem, kw.word) {
			score -= kw.weight
		}
	}

	switch ext {
	case "png":
		score += pngBonus
	case "jpg", "jpeg":
		score += jpegBonus
	}

	return score
}

// hasToken reports whether word appears in stem delimited by
// non-alphanumeric characters (e.g. "wall_ao" but not "chaos").
func hasToken(stem, word string) bool {
	for _, part := range strings.FieldsFunc(stem, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		if part == word {
			return true
		}
	}
	return false
}
