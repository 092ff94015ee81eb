package di

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/artifact-api/internal/auth"
	"github.com/example/artifact-api/internal/classifier"
	"github.com/example/artifact-api/internal/config"
	"github.com/example/artifact-api/internal/objectstore"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	v := config.NewEmptyViper()
	v.Set("jwt.secret", "s3cret")
	v.Set("storage.provider", "s3")
	v.Set("storage.bucket", "artifacts")
	v.Set("storage.s3.endpoint", "http://minio:9000")
	v.Set("storage.s3.access_key_id", "minio")
	v.Set("storage.s3.secret_access_key", "minio123")
	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	return cfg
}

func TestContainerResolvesOfflineComponents(t *testing.T) {
	cfg := testConfig(t)
	container, err := BuildContainer(context.Background(), cfg)
	require.NoError(t, err)

	err = container.Invoke(func(c classifier.Classifier, issuer *auth.Issuer, store objectstore.Store, secret auth.SecretSource) {
		assert.Equal(t, classifier.ModeKeyword, c.Mode())
		assert.Equal(t, "s3cret", secret.Secret())
		assert.IsType(t, &objectstore.S3Store{}, store)

		token, _, err := issuer.Issue("1", "alice")
		assert.NoError(t, err)
		assert.NotEmpty(t, token)
	})
	require.NoError(t, err)
}

func TestJWTSecretRequired(t *testing.T) {
	cfg := testConfig(t)
	cfg.JWT.Secret = ""
	_, err := newJWTSecret(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, auth.ErrMissingSecret)
}

func TestGoogleOptionsPreferLocalCredentials(t *testing.T) {
	cfg := testConfig(t)
	opts, err := newGoogleOptions(context.Background(), cfg, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, opts)

	cfg.Google.APIKey = "key"
	cfg.Google.CredentialsFile = "/var/run/creds.json"
	opts, err = newGoogleOptions(context.Background(), cfg, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, opts, 2)
}

func TestSecretLoaderDisabledWithoutProject(t *testing.T) {
	loader, err := newSecretLoader(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, loader)
}
