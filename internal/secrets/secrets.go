// Package secrets reads application secrets from Google Secret Manager.
package secrets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	secretmanager "google.golang.org/api/secretmanager/v1"

	"github.com/example/artifact-api/internal/logging"
)

var ErrEmptySecret = errors.New("secret payload is empty")

// Loader resolves the latest version of named secrets in one project.
type Loader struct {
	service   *secretmanager.Service
	projectID string
	logger    *zap.Logger
}

// NewLoader creates a Secret Manager backed loader.
func NewLoader(ctx context.Context, projectID string, logger *zap.Logger, opts ...option.ClientOption) (*Loader, error) {
	if projectID == "" {
		return nil, errors.New("secrets: project id is required")
	}
	svc, err := secretmanager.NewService(ctx, opts...)
	if err != nil {
		return nil, logging.NewOperationError("secrets.new_service", "", err)
	}
	return &Loader{service: svc, projectID: projectID, logger: logger.Named("secrets")}, nil
}

// Get returns the decoded payload of the latest version of name.
func (l *Loader) Get(ctx context.Context, name string) (string, error) {
	resource := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", l.projectID, name)
	resp, err := l.service.Projects.Secrets.Versions.Access(resource).Context(ctx).Do()
	if err != nil {
		wrapped := logging.NewOperationError("secrets.access", "", err)
		l.logger.Error("failed to access secret", zap.String("secret", name), zap.Error(wrapped))
		return "", wrapped
	}
	if resp.Payload == nil || resp.Payload.Data == "" {
		return "", logging.NewOperationError("secrets.access", "", fmt.Errorf("%s: %w", name, ErrEmptySecret))
	}
	data, err := base64.StdEncoding.DecodeString(resp.Payload.Data)
	if err != nil {
		return "", logging.NewOperationError("secrets.decode", "", err)
	}
	l.logger.Info("secret loaded", zap.String("secret", name))
	return string(data), nil
}
