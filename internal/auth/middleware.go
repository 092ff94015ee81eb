package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	userIDKey   contextKey = "authUserID"
	usernameKey contextKey = "authUsername"
)

// Claims are the JWT claims issued to jury members.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// GetUserID retrieves the authenticated subject from context.
func GetUserID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if value, ok := ctx.Value(userIDKey).(string); ok && value != "" {
		return value, true
	}
	return "", false
}

// GetUsername retrieves the username claim from context, when present.
func GetUsername(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(usernameKey).(string)
	return value
}

// WithUser returns a context carrying an authenticated identity.
func WithUser(ctx context.Context, userID, username string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, usernameKey, username)
}

// JWTMiddleware accepts HS256 bearer tokens carrying a subject. The secret is
// read on every request so a rotated secret takes effect at once.
func JWTMiddleware(secret SecretSource, audience string) gin.HandlerFunc {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if audience = strings.TrimSpace(audience); audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(audience))
	}
	parser := jwt.NewParser(parserOpts...)

	return func(c *gin.Context) {
		raw, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			unauthorized(c, err.Error())
			return
		}

		key := strings.TrimSpace(secret.Secret())
		if key == "" {
			unauthorized(c, "missing JWT secret")
			return
		}

		claims := &Claims{}
		_, err = parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(key), nil
		})
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			unauthorized(c, "token expired")
			return
		case errors.Is(err, jwt.ErrTokenInvalidAudience):
			unauthorized(c, "invalid audience")
			return
		case err != nil:
			unauthorized(c, "invalid token")
			return
		case claims.Subject == "":
			unauthorized(c, "missing subject")
			return
		}

		c.Request = c.Request.WithContext(WithUser(c.Request.Context(), claims.Subject, claims.Username))
		c.Set(string(userIDKey), claims.Subject)
		c.Next()
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header required")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", errors.New("token missing")
	}
	return token, nil
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}
