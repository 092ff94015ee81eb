package classifier

import "strings"

// AuthoritativeLabel returns an AI verdict as soon as one label equals a known
// AI label. Comparison is exact; caseSensitive=false folds case only.
type AuthoritativeLabel struct {
	labels        map[string]string
	caseSensitive bool
}

// NewAuthoritativeLabel builds the exact-label classifier.
func NewAuthoritativeLabel(labels []string, caseSensitive bool) *AuthoritativeLabel {
	a := &AuthoritativeLabel{labels: make(map[string]string, len(labels)), caseSensitive: caseSensitive}
	for _, l := range labels {
		if l == "" {
			continue
		}
		a.labels[a.key(l)] = l
	}
	return a
}

// Mode implements Classifier.
func (a *AuthoritativeLabel) Mode() Mode { return ModeLabel }

// Classify implements Classifier.
func (a *AuthoritativeLabel) Classify(result AnalysisResult) Verdict {
	matched := make(map[string]struct{})
	for _, label := range result {
		if label.Description == "" {
			continue
		}
		if canonical, ok := a.labels[a.key(label.Description)]; ok {
			matched[canonical] = struct{}{}
		}
	}
	if len(matched) > 0 {
		return newVerdict(true, matched)
	}
	return newVerdict(false, nil)
}

func (a *AuthoritativeLabel) key(s string) string {
	if a.caseSensitive {
		return s
	}
	return strings.ToLower(s)
}
