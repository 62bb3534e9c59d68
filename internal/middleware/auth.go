package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jwalitptl/care-portal/pkg/backend"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
	"github.com/jwalitptl/care-portal/pkg/httputil"
)

const ContextSession = "session"

// Claims are the fields the portal reads from the hospital's bearer token.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type AuthMiddleware struct {
	secret []byte
	parser *jwt.Parser
}

// NewAuthMiddleware verifies HMAC-signed tokens against secret and requires
// an expiry. With an empty secret every token is rejected.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Authenticate turns the bearer token into a backend.Session on the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithError(c, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			httputil.RespondWithError(c, http.StatusUnauthorized, "invalid authorization format")
			return
		}

		claims, err := m.parse(parts[1])
		if err != nil {
			httputil.RespondWithError(c, http.StatusUnauthorized, "invalid token")
			return
		}

		c.Set(ContextSession, backend.Session{
			Token: parts[1],
			Email: claims.Email,
			Role:  strings.ToLower(claims.Role),
		})
		c.Next()
	}
}

func (m *AuthMiddleware) parse(token string) (*Claims, error) {
	if len(m.secret) == 0 {
		return nil, errNoSecret
	}

	claims := &Claims{}
	_, err := m.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// RequireRole lets the request through only for the given roles.
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := SessionFrom(c)
		if err != nil {
			httputil.RespondWithError(c, http.StatusUnauthorized, err.Error())
			return
		}
		if !sess.HasRole(roles...) {
			err := apperrors.Forbidden("permission denied")
			httputil.RespondWithError(c, httputil.StatusOf(err), err.Message)
			return
		}
		c.Next()
	}
}

var (
	errNoSession = errors.New("not authenticated")
	errNoSecret  = errors.New("token verification is not configured")
)

// SessionFrom returns the session set by Authenticate.
func SessionFrom(c *gin.Context) (backend.Session, error) {
	v, ok := c.Get(ContextSession)
	if !ok {
		return backend.Session{}, errNoSession
	}
	sess, ok := v.(backend.Session)
	if !ok || !sess.Authenticated() {
		return backend.Session{}, errNoSession
	}
	return sess, nil
}
