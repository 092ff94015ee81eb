package vision

import (
	"context"

	"github.com/example/artifact-api/internal/classifier"
)

// Image references the picture to analyse. Content wins over URI when both
// are set.
type Image struct {
	URI     string
	Content []byte
}

// Vertex is a pixel coordinate of a bounding polygon.
type Vertex struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
}

// BoundingBox is the polygon around a detected face or object.
type BoundingBox struct {
	Vertices           []Vertex     `json:"vertices,omitempty"`
	NormalizedVertices [][2]float64 `json:"normalizedVertices,omitempty"`
}

type Face struct {
	BoundingBox *BoundingBox `json:"boundingBox,omitempty"`
	Confidence  float64      `json:"confidence"`
}

type Object struct {
	Name        string       `json:"name"`
	Score       float64      `json:"score"`
	BoundingBox *BoundingBox `json:"boundingBox,omitempty"`
}

// Analysis is everything the vision service reported for one image.
type Analysis struct {
	Faces   []Face             `json:"faces"`
	Texts   []string           `json:"texts"`
	Objects []Object           `json:"objects"`
	Labels  []classifier.Label `json:"labels"`
}

// LabelSet returns the labels in the form the classifier consumes.
func (a *Analysis) LabelSet() classifier.AnalysisResult {
	if a == nil {
		return nil
	}
	return classifier.AnalysisResult(a.Labels)
}

// Analyzer exposes the subset of the vision service used by the analysis flow.
type Analyzer interface {
	Analyze(ctx context.Context, image Image) (*Analysis, error)
}
