package objectstore

import (
	"bytes"
	"context"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"github.com/example/artifact-api/internal/logging"
)

const gcsPublicBase = "https://storage.googleapis.com"

// GCSStore uploads objects to a Google Cloud Storage bucket.
type GCSStore struct {
	service    *storage.Service
	bucket     string
	publicBase string
	logger     *zap.Logger
}

// NewGCSStore creates a GCS backed store. publicBase defaults to
// https://storage.googleapis.com.
func NewGCSStore(ctx context.Context, bucket, publicBase string, logger *zap.Logger, opts ...option.ClientOption) (*GCSStore, error) {
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, logging.NewOperationError("objectstore.gcs.new_service", "", err)
	}
	if publicBase == "" {
		publicBase = gcsPublicBase
	}
	return &GCSStore{service: svc, bucket: bucket, publicBase: publicBase, logger: logger.Named("gcs")}, nil
}

// Put implements Store.
func (s *GCSStore) Put(ctx context.Context, obj Object) (string, error) {
	_, err := s.service.Objects.Insert(s.bucket, &storage.Object{
		Name:        obj.Name,
		ContentType: obj.ContentType,
	}).Media(bytes.NewReader(obj.Data), googleapi.ContentType(obj.ContentType)).Context(ctx).Do()
	if err != nil {
		wrapped := logging.NewOperationError("objectstore.gcs.put", "", err)
		s.logger.Error("upload failed", zap.Error(wrapped), zap.String("bucket", s.bucket), zap.String("object", obj.Name))
		return "", wrapped
	}
	s.logger.Debug("object uploaded", zap.String("bucket", s.bucket), zap.String("object", obj.Name), zap.Int("bytes", len(obj.Data)))
	return publicURL(s.publicBase, s.bucket, obj.Name), nil
}
