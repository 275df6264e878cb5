// middleware/auth_middleware.go
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"

	"github.com/fitora-app/fitora_backend/models"
	"github.com/fitora-app/fitora_backend/repositories"
)

// AuthUser is the identity attached to the request after token verification.
type AuthUser struct {
	FirebaseUID   string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// RequireFirebaseAuth verifies the Firebase ID token from the Authorization
// header and attaches the decoded identity to the context. Token issuance and
// credential storage live entirely with the identity provider; this layer
// only verifies.
func RequireFirebaseAuth(authClient *auth.Client) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, models.Response{
					Status:  http.StatusUnauthorized,
					Message: "Not logged in! Please provide authentication token.",
				})
			}

			idToken := strings.TrimPrefix(authHeader, "Bearer ")
			if idToken == "" {
				return c.JSON(http.StatusUnauthorized, models.Response{
					Status:  http.StatusUnauthorized,
					Message: "Invalid token!",
				})
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
			defer cancel()

			token, err := authClient.VerifyIDToken(ctx, idToken)
			if err != nil {
				if auth.IsIDTokenExpired(err) {
					return c.JSON(http.StatusUnauthorized, models.Response{
						Status:  http.StatusUnauthorized,
						Message: "Token has expired! Please login again.",
					})
				}
				return c.JSON(http.StatusForbidden, models.Response{
					Status:  http.StatusForbidden,
					Message: "Invalid or unverifiable token!",
				})
			}

			user := &AuthUser{
				FirebaseUID: token.UID,
			}
			if email, ok := token.Claims["email"].(string); ok {
				user.Email = email
			}
			if verified, ok := token.Claims["email_verified"].(bool); ok {
				user.EmailVerified = verified
			}
			if name, ok := token.Claims["name"].(string); ok {
				user.Name = name
			}
			if picture, ok := token.Claims["picture"].(string); ok {
				user.Picture = picture
			}

			c.Set("authUser", user)
			return next(c)
		}
	}
}

// GetAuthUser returns the verified identity set by RequireFirebaseAuth.
func GetAuthUser(c echo.Context) *AuthUser {
	user, _ := c.Get("authUser").(*AuthUser)
	return user
}

// RequireAdmin checks the authenticated user's role in the profile store.
// Must be placed after RequireFirebaseAuth.
func RequireAdmin(userRepo *repositories.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authUser := GetAuthUser(c)
			if authUser == nil {
				return c.JSON(http.StatusUnauthorized, models.Response{
					Status:  http.StatusUnauthorized,
					Message: "Not logged in!",
				})
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
			defer cancel()

			user, err := userRepo.FindByFirebaseUID(ctx, authUser.FirebaseUID)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, models.Response{
					Status:  http.StatusInternalServerError,
					Message: "Server error while checking permissions!",
				})
			}
			if user == nil {
				return c.JSON(http.StatusNotFound, models.Response{
					Status:  http.StatusNotFound,
					Message: "User not found in system!",
				})
			}
			if user.Role != "admin" {
				return c.JSON(http.StatusForbidden, models.Response{
					Status:  http.StatusForbidden,
					Message: "Only admins can perform this action!",
				})
			}

			c.Set("dbUser", user)
			return next(c)
		}
	}
}

// GetDBUser returns the profile record loaded by RequireAdmin.
func GetDBUser(c echo.Context) *models.User {
	user, _ := c.Get("dbUser").(*models.User)
	return user
}
