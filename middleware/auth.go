// auth.go - Identity gate and role gate for the API
//
// Authentication Flow:
// 1. Extract the bearer token from the Authorization header
// 2. Validate signature, expiry and purpose of the token
// 3. Load the user the token was issued for
// 4. Store the user in the Gin context for handlers
//
// Authorization Flow (Admin):
// 1. AuthMiddleware must run first
// 2. Reject users whose role is not admin

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"cima-backend/auth"
	"cima-backend/database"
	"cima-backend/logging"
	"cima-backend/models"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserID = "user_id" // Authenticated user's id
	ContextUser   = "user"    // Authenticated *models.User
)

// UserLookup resolves a token subject to an account.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AuthMiddleware rejects requests without a valid bearer token with 401.
func AuthMiddleware(tokens *auth.TokenService, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		// STEP 1: Extract the bearer token
		header := c.GetHeader("Authorization") // Expected format: "Bearer <token>"
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, no token"})
			return
		}

		// STEP 2: Validate signature, expiry and purpose
		userID, err := tokens.ParseSession(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, token failed"})
			return
		}

		// STEP 3: The token alone is not enough; the account must still exist
		user, err := users.FindByID(c.Request.Context(), userID)
		if errors.Is(err, database.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, user not found"})
			return
		}
		if err != nil {
			logging.Error().Err(err).Str("user_id", userID).Msg("load authenticated user")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
			return
		}

		// STEP 4: Hand the user to the handlers
		c.Set(ContextUserID, user.ID) // Read by the request logger
		c.Set(ContextUser, user)
		c.Next() // Continue to the next handler
	}
}

// AdminMiddleware allows only admins through. Chain it after AuthMiddleware.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized"})
			return
		}
		if !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Not authorized as an admin"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user stored by AuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(ContextUser)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}
