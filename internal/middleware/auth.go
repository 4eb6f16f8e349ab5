// Package middleware provides the Fiber middleware shared by every route:
// authentication, rate limiting, logging and tracing.
package middleware

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chorus/internal/config"
	"chorus/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// Locals keys set by AuthRequired.
const (
	LocalUserID = "userID"
	LocalRole   = "role"
)

// Claims are the verified parts of an access token.
type Claims struct {
	UserID uint
	Role   string
	JTI    string
}

// TokenVerifier checks HMAC-signed access tokens.
type TokenVerifier struct {
	Secret   []byte
	Issuer   string
	Audience string
}

// NewTokenVerifier builds a verifier from the JWT settings in cfg.
func NewTokenVerifier(cfg *config.Config) TokenVerifier {
	return TokenVerifier{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	}
}

// Verify parses tokenString and returns its claims, or an Unauthorized AppError.
func (v TokenVerifier) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return v.Secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, models.NewUnauthorizedError("Invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, models.NewUnauthorizedError("Invalid subject claim")
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, models.NewUnauthorizedError("Invalid user ID in token")
	}

	role, _ := claims["role"].(string)
	if role == "" {
		role = models.RoleUser
	}
	jti, _ := claims["jti"].(string)

	return &Claims{UserID: uint(userID), Role: role, JTI: jti}, nil
}

// Issue signs a token for userID. Used by the seeder and tests; sign-in lives
// in the identity service.
func (v TokenVerifier) Issue(userID uint, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatUint(uint64(userID), 10),
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
		"jti":  fmt.Sprintf("%d-%d", userID, now.UnixNano()),
	}
	if v.Issuer != "" {
		claims["iss"] = v.Issuer
	}
	if v.Audience != "" {
		claims["aud"] = v.Audience
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.Secret)
}

func bearerToken(c *fiber.Ctx) string {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// AuthRequired enforces a valid bearer token. WebSocket upgrades may pass
// the token as the "token" query parameter instead.
func AuthRequired(v TokenVerifier, rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c)
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := v.Verify(tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}

		if claims.JTI != "" && rdb != nil {
			revoked, err := rdb.Exists(c.Context(), "blacklist:"+claims.JTI).Result()
			if err == nil && revoked > 0 {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalRole, claims.Role)
		ctx := context.WithValue(c.UserContext(), UserIDKey, claims.UserID)
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// RequireRoles rejects authenticated callers whose role is not listed.
func RequireRoles(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(LocalRole).(string)
		for _, r := range roles {
			if r == role {
				return c.Next()
			}
		}
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("You are not allowed to perform this action"))
	}
}

// CurrentUser returns the authenticated user ID and role.
func CurrentUser(c *fiber.Ctx) (uint, string, bool) {
	userID, ok := c.Locals(LocalUserID).(uint)
	if !ok || userID == 0 {
		return 0, "", false
	}
	role, _ := c.Locals(LocalRole).(string)
	return userID, role, true
}
