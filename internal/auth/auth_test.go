package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newRouter(secret SecretSource, audience string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", JWTMiddleware(secret, audience), func(c *gin.Context) {
		id, _ := GetUserID(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"id": id, "username": GetUsername(c.Request.Context())})
	})
	return r
}

func doRequest(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestIssuedTokenIsAccepted(t *testing.T) {
	secret := NewStaticSecret(testSecret)
	issuer := NewIssuer(secret, "artifact", time.Hour)

	token, expiresAt, err := issuer.Issue("jury-1", "alice")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	resp := doRequest(newRouter(secret, "artifact"), "Bearer "+token)
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "jury-1", body["id"])
	assert.Equal(t, "alice", body["username"])
}

func TestMiddlewareRejections(t *testing.T) {
	secret := NewStaticSecret(testSecret)
	router := newRouter(secret, "")

	expired := NewIssuer(secret, "", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, _, err := expired.Issue("jury-1", "alice")
	require.NoError(t, err)

	otherKey, _, err := NewIssuer(NewStaticSecret("other"), "", time.Hour).Issue("jury-1", "alice")
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"missing header", "", "authorization header required"},
		{"wrong scheme", "Basic abc", "invalid authorization header"},
		{"expired", "Bearer " + expiredToken, "token expired"},
		{"wrong key", "Bearer " + otherKey, "invalid token"},
		{"no subject", "Bearer " + noSubject, "missing subject"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(router, tt.header)
			assert.Equal(t, http.StatusUnauthorized, resp.Code)
			assert.JSONEq(t, `{"error":"`+tt.message+`"}`, resp.Body.String())
		})
	}
}

func TestMiddlewareChecksAudience(t *testing.T) {
	secret := NewStaticSecret(testSecret)
	token, _, err := NewIssuer(secret, "someone-else", time.Hour).Issue("jury-1", "")
	require.NoError(t, err)

	resp := doRequest(newRouter(secret, "artifact"), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestStaticSecretRotation(t *testing.T) {
	secret := NewStaticSecret("")
	_, _, err := NewIssuer(secret, "", time.Hour).Issue("x", "")
	assert.ErrorIs(t, err, ErrMissingSecret)

	secret.Set(" rotated ")
	assert.Equal(t, "rotated", secret.Secret())
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)
	assert.True(t, CheckPassword(hash, "hunter2"))
	assert.False(t, CheckPassword(hash, "hunter3"))
}
