// Package classifier decides whether an analysed image looks AI-generated or
// human-made from the labels an image-understanding service attached to it.
//
// Two strategies exist and are selected by Mode: keyword scoring over indicator
// vocabularies, and an authoritative exact-label match. Classifiers hold only
// their construction-time configuration and are safe for concurrent use.
package classifier

import (
	"fmt"
	"sort"
	"strings"
)

// Category is the human readable verdict class.
type Category string

const (
	CategoryAI    Category = "AI Detected"
	CategoryHuman Category = "Human Detected"
)

// Mode selects the classification strategy.
type Mode string

const (
	ModeKeyword Mode = "keyword"
	ModeLabel   Mode = "label"
)

// Label is a single description produced by the vision service.
type Label struct {
	Description string   `json:"description"`
	Score       *float64 `json:"score,omitempty"`
}

// AnalysisResult is the ordered label set of one image.
type AnalysisResult []Label

// Verdict is the outcome of a classification.
type Verdict struct {
	IsAI              bool     `json:"isAI"`
	Category          Category `json:"category"`
	MatchedIndicators []string `json:"matchedIndicators"`
}

// Summary renders the verdict the way API clients expect it.
func (v Verdict) Summary() string {
	if v.IsAI {
		return "AI-generated"
	}
	return "Human-generated"
}

// Classifier maps a label set to a verdict. Implementations never fail.
type Classifier interface {
	Mode() Mode
	Classify(result AnalysisResult) Verdict
}

// Options configures New.
type Options struct {
	Mode          Mode
	Vocabulary    Vocabulary
	AILabels      []string
	CaseSensitive bool
}

// DefaultOptions returns the keyword strategy with the built-in vocabularies.
func DefaultOptions() Options {
	return Options{
		Mode:          ModeKeyword,
		Vocabulary:    DefaultVocabulary(),
		AILabels:      DefaultAILabels(),
		CaseSensitive: true,
	}
}

// New builds the classifier selected by opts.Mode.
func New(opts Options) (Classifier, error) {
	switch opts.Mode {
	case ModeKeyword, "":
		vocab := opts.Vocabulary
		if len(vocab) == 0 {
			vocab = DefaultVocabulary()
		}
		return NewKeywordScoring(vocab), nil
	case ModeLabel:
		labels := opts.AILabels
		if len(labels) == 0 {
			labels = DefaultAILabels()
		}
		return NewAuthoritativeLabel(labels, opts.CaseSensitive), nil
	default:
		return nil, fmt.Errorf("unknown classifier mode %q", opts.Mode)
	}
}

func newVerdict(isAI bool, matched map[string]struct{}) Verdict {
	indicators := make([]string, 0, len(matched))
	for indicator := range matched {
		indicators = append(indicators, indicator)
	}
	sort.Strings(indicators)

	v := Verdict{IsAI: isAI, Category: CategoryHuman, MatchedIndicators: indicators}
	if isAI {
		v.Category = CategoryAI
	}
	return v
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
