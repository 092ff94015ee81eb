package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	visionapi "google.golang.org/api/vision/v1"

	"github.com/example/artifact-api/internal/classifier"
	"github.com/example/artifact-api/internal/logging"
)

var ErrEmptyImage = errors.New("image has neither content nor uri")

var features = []string{
	"LABEL_DETECTION",
	"FACE_DETECTION",
	"TEXT_DETECTION",
	"OBJECT_LOCALIZATION",
}

// GoogleAnalyzer calls the Cloud Vision images:annotate endpoint.
type GoogleAnalyzer struct {
	service    *visionapi.Service
	maxResults int64
	logger     *zap.Logger
}

// NewGoogleAnalyzer creates a Cloud Vision client. opts usually carry
// credentials; tests pass an endpoint and their own HTTP client.
func NewGoogleAnalyzer(ctx context.Context, maxResults int64, logger *zap.Logger, opts ...option.ClientOption) (*GoogleAnalyzer, error) {
	svc, err := visionapi.NewService(ctx, opts...)
	if err != nil {
		return nil, logging.NewOperationError("vision.new_service", "", err)
	}
	if maxResults <= 0 {
		maxResults = 20
	}
	return &GoogleAnalyzer{service: svc, maxResults: maxResults, logger: logger.Named("vision")}, nil
}

// Analyze runs label, face, text and object detection in a single batch.
func (g *GoogleAnalyzer) Analyze(ctx context.Context, image Image) (*Analysis, error) {
	img, err := toAPIImage(image)
	if err != nil {
		return nil, err
	}

	req := &visionapi.AnnotateImageRequest{Image: img}
	for _, f := range features {
		req.Features = append(req.Features, &visionapi.Feature{Type: f, MaxResults: g.maxResults})
	}

	resp, err := g.service.Images.Annotate(&visionapi.BatchAnnotateImagesRequest{
		Requests: []*visionapi.AnnotateImageRequest{req},
	}).Context(ctx).Do()
	if err != nil {
		wrapped := logging.NewOperationError("vision.annotate", "", err)
		g.logger.Error("vision annotate failed", zap.Error(wrapped), zap.String("uri", image.URI))
		return nil, wrapped
	}
	if len(resp.Responses) == 0 {
		return &Analysis{}, nil
	}

	r := resp.Responses[0]
	if r.Error != nil && r.Error.Code != 0 {
		return nil, logging.NewOperationError("vision.annotate", "", fmt.Errorf("vision error %d: %s", r.Error.Code, r.Error.Message))
	}

	g.logger.Debug("vision annotate completed",
		zap.Int("labels", len(r.LabelAnnotations)),
		zap.Int("faces", len(r.FaceAnnotations)),
		zap.Int("objects", len(r.LocalizedObjectAnnotations)),
	)
	return fromResponse(r), nil
}

func toAPIImage(image Image) (*visionapi.Image, error) {
	switch {
	case len(image.Content) > 0:
		return &visionapi.Image{Content: base64.StdEncoding.EncodeToString(image.Content)}, nil
	case strings.HasPrefix(image.URI, "gs://"):
		return &visionapi.Image{Source: &visionapi.ImageSource{GcsImageUri: image.URI}}, nil
	case image.URI != "":
		return &visionapi.Image{Source: &visionapi.ImageSource{ImageUri: image.URI}}, nil
	default:
		return nil, ErrEmptyImage
	}
}

func fromResponse(r *visionapi.AnnotateImageResponse) *Analysis {
	a := &Analysis{
		Faces:   make([]Face, 0, len(r.FaceAnnotations)),
		Texts:   make([]string, 0, len(r.TextAnnotations)),
		Objects: make([]Object, 0, len(r.LocalizedObjectAnnotations)),
		Labels:  make([]classifier.Label, 0, len(r.LabelAnnotations)),
	}
	for _, f := range r.FaceAnnotations {
		if f == nil {
			continue
		}
		a.Faces = append(a.Faces, Face{BoundingBox: fromPoly(f.BoundingPoly), Confidence: f.DetectionConfidence})
	}
	for _, t := range r.TextAnnotations {
		if t == nil {
			continue
		}
		a.Texts = append(a.Texts, t.Description)
	}
	for _, o := range r.LocalizedObjectAnnotations {
		if o == nil {
			continue
		}
		a.Objects = append(a.Objects, Object{Name: o.Name, Score: o.Score, BoundingBox: fromPoly(o.BoundingPoly)})
	}
	for _, l := range r.LabelAnnotations {
		if l == nil {
			continue
		}
		// The API omits a zero score from the JSON, so every returned label
		// carries one.
		score := l.Score
		a.Labels = append(a.Labels, classifier.Label{Description: l.Description, Score: &score})
	}
	return a
}

func fromPoly(p *visionapi.BoundingPoly) *BoundingBox {
	if p == nil {
		return nil
	}
	box := &BoundingBox{}
	for _, v := range p.Vertices {
		if v != nil {
			box.Vertices = append(box.Vertices, Vertex{X: v.X, Y: v.Y})
		}
	}
	for _, v := range p.NormalizedVertices {
		if v != nil {
			box.NormalizedVertices = append(box.NormalizedVertices, [2]float64{v.X, v.Y})
		}
	}
	return box
}
