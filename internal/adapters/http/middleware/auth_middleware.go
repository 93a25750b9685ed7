package middleware

import (
	"strings"

	"easymoney-loans/internal/config"
	"easymoney-loans/internal/core/domain"
	"easymoney-loans/internal/pkg/jwt"
	"easymoney-loans/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware creates authentication middleware
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var accessToken string

		// 1. Try to get token from cookie first
		accessToken = c.Cookies("access_token")

		// 2. If not in cookie, try Authorization header
		if accessToken == "" {
			authHeader := c.Get("Authorization")
			if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
				accessToken = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		// 3. No token found
		if accessToken == "" {
			return response.Unauthorized(c, "Access token required")
		}

		// 4. Validate token
		claims, err := jwt.ValidateAccessToken(accessToken, cfg.JWT.Secret)
		if err != nil {
			if err == jwt.ErrTokenExpired {
				return response.Unauthorized(c, "Access token expired")
			}
			return response.Unauthorized(c, "Invalid access token")
		}

		// 5. Set user info in context
		c.Locals("userID", claims.UserID)
		c.Locals("username", claims.Username)
		c.Locals("fullName", claims.FullName)
		c.Locals("role", claims.Role)
		c.Locals("branch", claims.Branch)

		return c.Next()
	}
}

// RoleMiddleware creates role-based authorization middleware
func RoleMiddleware(allowedRoles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals("role").(string)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}

		// Check if user's role is in allowed roles
		for _, allowedRole := range allowedRoles {
			if role == allowedRole {
				return c.Next()
			}
		}

		return response.Forbidden(c, "You don't have permission to access this resource")
	}
}

// AdminOnly middleware allows only the admin role
func AdminOnly() fiber.Handler {
	return RoleMiddleware(string(domain.RoleAdmin))
}

// ManagerOrAdmin middleware allows manager or admin roles
func ManagerOrAdmin() fiber.Handler {
	return RoleMiddleware(string(domain.RoleManager), string(domain.RoleAdmin))
}

// Actor builds the resolved identity from the validated token claims
func Actor(c *fiber.Ctx) domain.Actor {
	actor := domain.Actor{}
	if v, ok := c.Locals("userID").(string); ok {
		actor.ID = v
	}
	if v, ok := c.Locals("username").(string); ok {
		actor.Username = v
	}
	if v, ok := c.Locals("fullName").(string); ok {
		actor.Name = v
	}
	if v, ok := c.Locals("role").(string); ok {
		actor.Role = domain.Role(v)
	}
	if v, ok := c.Locals("branch").(string); ok {
		actor.Branch = v
	}
	return actor
}
