package classifier

import (
	"fmt"
	"sort"
	"strings"
)

// Vocabulary maps an indicator phrase to the category it votes for.
type Vocabulary map[string]Category

// DefaultVocabulary returns the built-in indicator phrases.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		"neural network": CategoryAI,
		"gan":            CategoryAI,
		"cgi":            CategoryAI,
		"artificial":     CategoryAI,
		"photo":          CategoryHuman,
		"real":           CategoryHuman,
		"natural":        CategoryHuman,
		"person":         CategoryHuman,
	}
}

// DefaultAILabels returns the labels treated as authoritative AI signals.
func DefaultAILabels() []string {
	return []string{"CG artwork", "Animation"}
}

// ParseCategory accepts "ai"/"human" as well as the full category names.
func ParseCategory(s string) (Category, error) {
	switch normalize(s) {
	case "ai", strings.ToLower(string(CategoryAI)):
		return CategoryAI, nil
	case "human", strings.ToLower(string(CategoryHuman)):
		return CategoryHuman, nil
	}
	return "", fmt.Errorf("unknown indicator category %q", s)
}

// VocabularyFromMap converts configuration input (indicator -> "ai"|"human").
func VocabularyFromMap(m map[string]string) (Vocabulary, error) {
	vocab := make(Vocabulary, len(m))
	for indicator, raw := range m {
		category, err := ParseCategory(raw)
		if err != nil {
			return nil, fmt.Errorf("indicator %q: %w", indicator, err)
		}
		key := normalize(indicator)
		if key == "" {
			continue
		}
		vocab[key] = category
	}
	return vocab, nil
}

// Indicators returns the sorted, lower-cased indicators voting for category.
func (v Vocabulary) Indicators(category Category) []string {
	out := make([]string, 0, len(v))
	for indicator, c := range v {
		if c == category {
			out = append(out, normalize(indicator))
		}
	}
	sort.Strings(out)
	return out
}
