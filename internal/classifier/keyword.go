package classifier

import "strings"

// KeywordScoring counts labels that contain AI or human indicators. A label
// adds at most one point to each side; the image is AI only when the AI side
// strictly wins.
type KeywordScoring struct {
	ai    []string
	human []string
}

// NewKeywordScoring copies the vocabulary into a keyword classifier.
func NewKeywordScoring(vocab Vocabulary) *KeywordScoring {
	return &KeywordScoring{
		ai:    vocab.Indicators(CategoryAI),
		human: vocab.Indicators(CategoryHuman),
	}
}

// Mode implements Classifier.
func (k *KeywordScoring) Mode() Mode { return ModeKeyword }

// Classify implements Classifier.
func (k *KeywordScoring) Classify(result AnalysisResult) Verdict {
	var aiScore, humanScore int
	aiMatched := make(map[string]struct{})
	humanMatched := make(map[string]struct{})

	for _, label := range result {
		description := strings.ToLower(label.Description)
		if description == "" {
			continue
		}
		if matchAny(description, k.ai, aiMatched) {
			aiScore++
		}
		if matchAny(description, k.human, humanMatched) {
			humanScore++
		}
	}

	if aiScore > humanScore {
		return newVerdict(true, aiMatched)
	}
	return newVerdict(false, humanMatched)
}

func matchAny(description string, indicators []string, matched map[string]struct{}) bool {
	hit := false
	for _, indicator := range indicators {
		if indicator != "" && strings.Contains(description, indicator) {
			matched[indicator] = struct{}{}
			hit = true
		}
	}
	return hit
}
