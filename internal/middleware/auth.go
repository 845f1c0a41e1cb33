package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/sjperalta/fintera-installments/internal/actor"
	"github.com/sjperalta/fintera-installments/pkg/logger"
)

// Roles understood by the engine. Tokens are issued by the identity service.
const (
	RoleAdmin   = "admin"
	RoleSeller  = "seller"
	RoleService = "service"
)

// Gin context keys set by Auth
const (
	ContextUserID = "userID"
	ContextRole   = "userRole"
	ContextClaims = "claims"
)

// Claims carries either a staff identity (UserID, Email) or, for the
// service role, the integration client name.
type Claims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Client string `json:"client,omitempty"`
	jwt.RegisteredClaims
}

// Actor maps the token holder to the principal recorded on ledger and audit rows
func (c *Claims) Actor() actor.Actor {
	if c.Role == RoleService {
		return actor.Service(c.Client)
	}
	return actor.User(c.UserID, c.Email)
}

// Auth validates bearer tokens and attaches the caller as the operation actor
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header must be: Bearer <token>",
			})
			return
		}

		claims, err := validateToken(token, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": err.Error(),
			})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)
		c.Set(ContextClaims, claims)

		a := claims.Actor()
		ctx := actor.WithActor(c.Request.Context(), a)
		c.Request = c.Request.WithContext(logger.WithContext(ctx, "actor", a.String()))

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func validateToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(secret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.New("token has expired")
		}
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	// Every mutation is attributed, so the token must name someone.
	if claims.Role == RoleService {
		if claims.Client == "" {
			return nil, errors.New("service token has no client")
		}
	} else if claims.UserID == 0 {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// GetUserRole extracts the user role from the Gin context
func GetUserRole(c *gin.Context) string {
	role, _ := c.Get(ContextRole)
	s, _ := role.(string)
	return s
}

// RequireRole returns a middleware that requires specific roles
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := GetUserRole(c)
		for _, role := range allowedRoles {
			if userRole == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "insufficient role for this operation",
		})
	}
}
