package secrets

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

func newTestLoader(t *testing.T, handler http.HandlerFunc) *Loader {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	l, err := NewLoader(context.Background(), "demo-project", zap.NewNop(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return l
}

func TestLoaderGet(t *testing.T) {
	l := newTestLoader(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/projects/demo-project/secrets/jwt-secret/versions/latest:access", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"name":"x","payload":{"data":%q}}`, base64.StdEncoding.EncodeToString([]byte("s3cr3t")))
	})

	value, err := l.Get(context.Background(), "jwt-secret")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", value)
}

func TestLoaderGetEmptyPayload(t *testing.T) {
	l := newTestLoader(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"x","payload":{}}`))
	})

	_, err := l.Get(context.Background(), "jwt-secret")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestLoaderGetNotFound(t *testing.T) {
	l := newTestLoader(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"not found"}}`))
	})

	_, err := l.Get(context.Background(), "missing")
	assert.Error(t, err)
}

func TestNewLoaderRequiresProject(t *testing.T) {
	_, err := NewLoader(context.Background(), "", zap.NewNop())
	assert.Error(t, err)
}
