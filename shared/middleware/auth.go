package middleware

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/leadstack/go-crm-system/shared/models"
	"github.com/leadstack/go-crm-system/shared/utils"
)

const principalContextKey = "principal"

// AuthMiddleware validates bearer tokens and resolves the request principal.
// Tokens are HS256 JWTs signed with a shared secret; the principal itself
// (role plus profile ids) is looked up from the Redis session created at
// login, so identity resolution happens exactly once.
type AuthMiddleware struct {
	secret []byte
}

// TokenClaims are the JWT claims carried by issued tokens. Only the subject
// is used after validation; everything else about the principal comes from
// the session store.
type TokenClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// NewAuthMiddleware creates the middleware from the JWT_SECRET environment
// variable.
func NewAuthMiddleware() (*AuthMiddleware, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}
	return &AuthMiddleware{secret: []byte(secret)}, nil
}

// IssueToken signs a token for the principal with the given lifetime.
func (am *AuthMiddleware) IssueToken(principal *models.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		Username: principal.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(am.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// parseToken validates the signature and expiry of a bearer token.
func (am *AuthMiddleware) parseToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return am.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// RequireAuth validates the bearer token and loads the principal from the
// session store. Requests without a valid token and live session are
// rejected.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			utils.UnauthorizedResponse(c, "Authorization token required")
			c.Abort()
			return
		}

		if _, err := am.parseToken(tokenString); err != nil {
			utils.UnauthorizedResponse(c, "Invalid token")
			c.Abort()
			return
		}

		session, err := utils.GetTokenSession(tokenString)
		if err != nil {
			utils.UnauthorizedResponse(c, "Session expired or revoked")
			c.Abort()
			return
		}

		c.Set(principalContextKey, session.Principal)
		c.Next()
	}
}

// RequireAdmin restricts a route to organization admins. The profile
// association is re-checked so a role tag without a profile row is refused,
// not silently granted.
func (am *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := GetPrincipal(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Principal not resolved")
			c.Abort()
			return
		}
		if !principal.IsAdmin() {
			utils.ForbiddenResponse(c, "Admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAgentOrAdmin restricts a route to agents and admins.
func (am *AuthMiddleware) RequireAgentOrAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := GetPrincipal(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Principal not resolved")
			c.Abort()
			return
		}
		if !principal.IsAdmin() && !principal.IsAgent() {
			utils.ForbiddenResponse(c, "Agent or admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetPrincipal extracts the resolved principal from the Gin context.
func GetPrincipal(c *gin.Context) (*models.Principal, error) {
	value, exists := c.Get(principalContextKey)
	if !exists {
		return nil, fmt.Errorf("principal not found in context")
	}
	principal, ok := value.(models.Principal)
	if !ok {
		return nil, fmt.Errorf("unexpected principal type in context")
	}
	return &principal, nil
}

// extractToken extracts the JWT token from the Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return authHeader
}
