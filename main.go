package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/fitora-app/fitora_backend/config"
	"github.com/fitora-app/fitora_backend/controllers"
	"github.com/fitora-app/fitora_backend/middleware"
	"github.com/fitora-app/fitora_backend/repositories"
	"github.com/fitora-app/fitora_backend/routes"
	"github.com/fitora-app/fitora_backend/services"
	"github.com/fitora-app/fitora_backend/utils"
)

// CustomValidator is a custom validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates the request body
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func main() {
	// Load .env file
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found")
	}

	// Initialize Firebase
	config.InitFirebase()

	ctx := context.Background()
	authClient, err := config.GetAuthClient(ctx)
	if err != nil {
		log.Fatalf("Failed to create Firebase Auth client: %v", err)
	}

	// Connect to database
	client := config.ConnectDB()

	// Firestore mirrors the user profile store; the backend runs without it
	// if the client cannot be created.
	var fsUsers *services.FirestoreUserService
	if fsClient, err := config.GetFirestoreClient(ctx); err != nil {
		log.Printf("Warning: Firestore unavailable: %v", err)
	} else {
		fsUsers = services.NewFirestoreUserService(fsClient)
	}

	// OTP store: in-memory by default, Redis when OTP_STORE=redis so
	// multiple instances can share OTP state.
	var otpStore services.OTPStore
	if os.Getenv("OTP_STORE") == "redis" {
		if redisClient := config.ConnectRedis(); redisClient != nil {
			otpStore = services.NewRedisOTPStore(redisClient)
		}
	}
	if otpStore == nil {
		otpStore = services.NewMemoryOTPStore()
	}
	otpService := services.NewOTPService(otpStore, services.DefaultOTPConfig())

	// Reclaim memory from expired OTP records; expiry is re-checked on
	// every verification, so this loop is housekeeping only.
	go func() {
		for {
			time.Sleep(1 * time.Minute)
			if purged := otpService.PurgeExpired(); purged > 0 {
				log.Printf("Purged %d expired OTP records", purged)
			}
		}
	}()

	// SMTP mailer; without configuration OTP codes are logged instead.
	var mailer utils.Mailer
	if m, err := utils.NewGomailMailer(); err != nil {
		log.Printf("Warning: %v. OTP codes will be logged to console only.", err)
	} else {
		mailer = m
	}

	// Create a new Echo instance
	e := echo.New()

	// Initialize custom validator
	e.Validator = &CustomValidator{validator: validator.New()}

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter()

	// Middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.GlobalCORS())
	e.Use(echoMiddleware.Secure())
	e.Use(rateLimiter.RateLimit())
	e.Use(middleware.SecurityHeadersWithConfig(middleware.SecurityConfig{
		AllowedDomains: []string{"*"},
		AllowInlineJS:  false,
	}))
	e.Use(httpsRedirect())

	e.Match([]string{"GET", "HEAD"}, "/", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "OK",
			"message": "Fitora API is running",
			"version": "1.0",
		})
	})

	e.Match([]string{"GET", "HEAD"}, "/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":   "healthy",
			"database": "connected",
		})
	})

	// Initialize repositories
	userRepo := repositories.NewUserRepository(client)

	// Initialize controllers
	otpController := controllers.NewOTPController(otpService, mailer)
	userController := controllers.NewUserController(userRepo, fsUsers, authClient, otpService)

	routes.RegisterUserRoutes(e, authClient, userRepo, otpController, userController)

	// Ensure uploads directory exists
	if err := utils.InitializeStorage(); err != nil {
		log.Fatalf("Failed to initialize file storage: %v", err)
	}
	e.Static("/uploads", "uploads")

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	e.Logger.Fatal(e.Start(":" + port))
}

func httpsRedirect() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("X-Forwarded-Proto") == "http" {
				return c.Redirect(301, "https://"+c.Request().Host+c.Request().RequestURI)
			}
			return next(c)
		}
	}
}
