package routes

import (
	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"

	"github.com/fitora-app/fitora_backend/controllers"
	"github.com/fitora-app/fitora_backend/middleware"
	"github.com/fitora-app/fitora_backend/repositories"
)

// RegisterUserRoutes sets up the OTP, user and admin routes.
func RegisterUserRoutes(e *echo.Echo, authClient *auth.Client, userRepo *repositories.UserRepository, otpController *controllers.OTPController, userController *controllers.UserController) {
	// Public routes
	e.POST("/api/otp/send", otpController.SendOTP)
	e.POST("/api/otp/verify", otpController.VerifyOTP)
	e.POST("/api/users/check-email", userController.CheckEmail)
	e.POST("/api/users/check-phone", userController.CheckPhone)
	e.POST("/api/users/reset-password", userController.ResetPasswordAfterOTP)
	e.POST("/api/users/sync", userController.SyncUser)
	e.POST("/api/users/cleanup-firebase", userController.CleanupFirebaseUser)

	// Authenticated routes
	authGroup := e.Group("/api", middleware.RequireFirebaseAuth(authClient))
	authGroup.GET("/users/me", userController.GetProfile)
	authGroup.PUT("/users/me", userController.UpdateProfile)
	authGroup.POST("/users/me/avatar", userController.UploadAvatar)
	authGroup.POST("/users/logout", userController.Logout)

	// Admin routes
	adminGroup := e.Group("/api", middleware.RequireFirebaseAuth(authClient), middleware.RequireAdmin(userRepo))
	adminGroup.GET("/users", userController.GetAllUsers)
	adminGroup.PUT("/users/:id", userController.UpdateUser)
	adminGroup.DELETE("/users/:id", userController.DeleteUser)
}
