// controllers/user_controller.go
package controllers

import (
	"context"
	"log"
	"net/http"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fitora-app/fitora_backend/middleware"
	"github.com/fitora-app/fitora_backend/models"
	"github.com/fitora-app/fitora_backend/repositories"
	"github.com/fitora-app/fitora_backend/services"
	"github.com/fitora-app/fitora_backend/utils"
)

// IdentityDirectory is the slice of the identity provider's admin API this
// controller needs. The provider owns the credential; it is consulted for a
// password change only after the OTP service reports the code verified.
// *auth.Client satisfies it.
type IdentityDirectory interface {
	GetUserByEmail(ctx context.Context, email string) (*auth.UserRecord, error)
	UpdateUser(ctx context.Context, uid string, user *auth.UserToUpdate) (*auth.UserRecord, error)
	DeleteUser(ctx context.Context, uid string) error
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// isUserNotFound matches the provider's user-not-found error. The SDK's
// error type is internal to it, so tests swap this for one their fake
// directory can satisfy.
var isUserNotFound = auth.IsUserNotFound

// UserController handles user profile CRUD and the password reset flow.
type UserController struct {
	Repo      *repositories.UserRepository
	Firestore *services.FirestoreUserService // optional second model layer
	Directory IdentityDirectory
	OTP       *services.OTPService
}

// NewUserController creates a new user controller
func NewUserController(repo *repositories.UserRepository, fs *services.FirestoreUserService, directory IdentityDirectory, otp *services.OTPService) *UserController {
	return &UserController{
		Repo:      repo,
		Firestore: fs,
		Directory: directory,
		OTP:       otp,
	}
}

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 10*time.Second)
}

// ResetPasswordAfterOTP changes the provider credential once the reset code
// has been verified. The code was verified in retained mode by a previous
// request; it is re-verified here, the verified flag is checked through Peek,
// and the record is consumed only after the provider accepted the new
// password.
func (uc *UserController) ResetPasswordAfterOTP(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	var req models.ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	if req.Email == "" || req.OTP == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Email, OTP, and new password are required!",
		})
	}

	if len(req.NewPassword) < 6 {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Password must be at least 6 characters long!",
		})
	}

	email, err := utils.SanitizeEmail(req.Email)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid email format!",
		})
	}

	result := uc.OTP.Verify(email, req.OTP, false)
	if !result.Valid {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: result.Message,
		})
	}

	record, ok := uc.OTP.Peek(email)
	if !ok || !record.Verified {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "OTP must be verified first. Please verify OTP before resetting password.",
		})
	}

	userRecord, err := uc.Directory.GetUserByEmail(ctx, email)
	if err != nil {
		if isUserNotFound(err) {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "User not found in the system!",
			})
		}
		log.Printf("Identity provider lookup error for %s: %v", email, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to reset password. Please try again later.",
		})
	}

	update := (&auth.UserToUpdate{}).Password(req.NewPassword)
	if _, err := uc.Directory.UpdateUser(ctx, userRecord.UID, update); err != nil {
		log.Printf("Identity provider password update error for %s: %v", email, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to reset password. Please try again later.",
		})
	}

	// Password changed; close out the verified record.
	uc.OTP.Consume(email)

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Password has been reset successfully!",
	})
}

// CheckEmail reports whether an email is already registered with the
// identity provider.
func (uc *UserController) CheckEmail(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	var req models.CheckEmailRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Email is required!",
		})
	}

	email, err := utils.SanitizeEmail(req.Email)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid email format!",
		})
	}

	_, err = uc.Directory.GetUserByEmail(ctx, email)
	if err != nil {
		if isUserNotFound(err) {
			return c.JSON(http.StatusOK, models.Response{
				Status:  http.StatusOK,
				Message: "Email is available.",
				Data:    map[string]interface{}{"exists": false},
			})
		}
		log.Printf("Check email error: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Error checking email. Please try again later.",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "This email is already in use.",
		Data:    map[string]interface{}{"exists": true},
	})
}

// CheckPhone reports whether a phone number is already attached to a
// profile, optionally excluding one user (for self updates).
func (uc *UserController) CheckPhone(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	var req models.CheckPhoneRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	phone, err := utils.SanitizePhone(req.Phone)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid phone number format!",
		})
	}

	if phone == "" {
		return c.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "Phone number is available.",
			Data:    map[string]interface{}{"exists": false},
		})
	}

	existing, err := uc.Repo.FindByPhone(ctx, phone, req.ExcludeUserID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Error checking phone number.",
		})
	}

	if existing != nil {
		return c.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "This phone number is already in use.",
			Data:    map[string]interface{}{"exists": true},
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Phone number is available.",
		Data:    map[string]interface{}{"exists": false},
	})
}

// SyncUser upserts the profile record after the provider completed a signup
// or login. Writes go through both model layers.
func (uc *UserController) SyncUser(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	var req models.SyncUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "firebaseUid and a valid email are required!",
		})
	}

	user := &models.User{
		FirebaseUID: req.FirebaseUID,
		Email:       req.Email,
		Name:        utils.SanitizeInput(req.Name),
		AvatarURL:   req.AvatarURL,
	}

	saved, err := uc.Repo.Upsert(ctx, user)
	if err != nil {
		log.Printf("User sync error for %s: %v", req.FirebaseUID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to sync user.",
		})
	}

	if uc.Firestore != nil {
		if err := uc.Firestore.Upsert(ctx, saved); err != nil {
			// The Mongo write is authoritative; the mirror catches up on
			// the next sync.
			log.Printf("Firestore sync error for %s: %v", req.FirebaseUID, err)
		}
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "User synced successfully.",
		Data:    saved,
	})
}

// GetProfile returns the authenticated user's profile.
func (uc *UserController) GetProfile(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	authUser := middleware.GetAuthUser(c)
	user, err := uc.Repo.FindByFirebaseUID(ctx, authUser.FirebaseUID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve profile.",
		})
	}
	if user == nil {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "User not found in system!",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Profile retrieved successfully.",
		Data:    user,
	})
}

// UpdateProfile applies a partial update to the authenticated user's profile.
func (uc *UserController) UpdateProfile(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	authUser := middleware.GetAuthUser(c)

	var req models.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	fields := bson.M{}
	fsFields := map[string]interface{}{}

	if req.Name != "" {
		name := utils.SanitizeInput(req.Name)
		fields["name"] = name
		fsFields["name"] = name
	}
	if req.Phone != "" {
		phone, err := utils.SanitizePhone(req.Phone)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid phone number format!",
			})
		}

		existing, err := uc.Repo.FindByPhone(ctx, phone, authUser.FirebaseUID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Error checking phone number.",
			})
		}
		if existing != nil {
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "This phone number is already in use.",
			})
		}

		fields["phone"] = phone
		fsFields["phone"] = phone
	}
	if req.Address != "" {
		address := utils.SanitizeInput(req.Address)
		fields["address"] = address
		fsFields["address"] = address
	}
	if req.Gender != "" {
		fields["gender"] = utils.SanitizeInput(req.Gender)
		fsFields["gender"] = fields["gender"]
	}
	if req.DateOfBirth != "" {
		fields["dateOfBirth"] = utils.SanitizeInput(req.DateOfBirth)
		fsFields["dateOfBirth"] = fields["dateOfBirth"]
	}

	if len(fields) == 0 {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "No fields to update.",
		})
	}

	user, err := uc.Repo.UpdateFields(ctx, authUser.FirebaseUID, fields)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update profile.",
		})
	}
	if user == nil {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "User not found in system!",
		})
	}

	if uc.Firestore != nil {
		if err := uc.Firestore.UpdateFields(ctx, authUser.FirebaseUID, fsFields); err != nil {
			log.Printf("Firestore profile update error for %s: %v", authUser.FirebaseUID, err)
		}
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Profile updated successfully.",
		Data:    user,
	})
}

// UploadAvatar stores an uploaded avatar image and records its URL on the
// profile.
func (uc *UserController) UploadAvatar(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	authUser := middleware.GetAuthUser(c)

	file, err := c.FormFile("avatar")
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Avatar file is required!",
		})
	}

	if err := utils.ValidateAvatarFile(file); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
		})
	}

	current, err := uc.Repo.FindByFirebaseUID(ctx, authUser.FirebaseUID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve profile.",
		})
	}
	if current == nil {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "User not found in system!",
		})
	}

	avatarURL, err := utils.SaveAvatarFile(file)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to save avatar.",
		})
	}

	user, err := uc.Repo.UpdateFields(ctx, authUser.FirebaseUID, bson.M{"avatarUrl": avatarURL})
	if err != nil || user == nil {
		utils.RemoveUploadedFile(avatarURL)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update profile.",
		})
	}

	if uc.Firestore != nil {
		if err := uc.Firestore.UpdateFields(ctx, authUser.FirebaseUID, map[string]interface{}{"avatarUrl": avatarURL}); err != nil {
			log.Printf("Firestore avatar update error for %s: %v", authUser.FirebaseUID, err)
		}
	}

	// Old avatar file is no longer referenced.
	if current.AvatarURL != "" && current.AvatarURL != avatarURL {
		utils.RemoveUploadedFile(current.AvatarURL)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Avatar uploaded successfully.",
		Data:    map[string]interface{}{"avatarUrl": avatarURL},
	})
}

// Logout revokes the user's refresh tokens at the identity provider.
// Existing ID tokens stay valid until they expire; revocation stops renewal.
func (uc *UserController) Logout(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	authUser := middleware.GetAuthUser(c)
	if err := uc.Directory.RevokeRefreshTokens(ctx, authUser.FirebaseUID); err != nil {
		log.Printf("Token revocation error for %s: %v", authUser.FirebaseUID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to log out.",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Logged out successfully.",
	})
}

// CleanupFirebaseUser deletes a provider account whose profile sync failed
// partway through registration, so the email can be reused.
func (uc *UserController) CleanupFirebaseUser(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	var req models.CleanupFirebaseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	if req.FirebaseUID == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "firebaseUid is required!",
		})
	}

	if err := uc.Directory.DeleteUser(ctx, req.FirebaseUID); err != nil && !isUserNotFound(err) {
		log.Printf("Firebase cleanup error for %s: %v", req.FirebaseUID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to clean up account.",
		})
	}

	if err := uc.Repo.DeleteByFirebaseUID(ctx, req.FirebaseUID); err != nil {
		log.Printf("Profile cleanup error for %s: %v", req.FirebaseUID, err)
	}
	if uc.Firestore != nil {
		if err := uc.Firestore.Delete(ctx, req.FirebaseUID); err != nil {
			log.Printf("Firestore cleanup error for %s: %v", req.FirebaseUID, err)
		}
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Account cleaned up.",
	})
}

// GetAllUsers lists user profiles. Admin only.
func (uc *UserController) GetAllUsers(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	users, err := uc.Repo.List(ctx, 100)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to list users.",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Users retrieved successfully.",
		Data:    users,
	})
}

// UpdateUser updates a profile by ID. Admin only; allows role and premium
// changes in addition to the profile fields.
func (uc *UserController) UpdateUser(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID",
		})
	}

	var req struct {
		Name      string `json:"name,omitempty"`
		Role      string `json:"role,omitempty"`
		IsPremium *bool  `json:"isPremium,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	fields := bson.M{}
	if req.Name != "" {
		fields["name"] = utils.SanitizeInput(req.Name)
	}
	if req.Role != "" {
		if req.Role != "user" && req.Role != "admin" {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Role must be 'user' or 'admin'.",
			})
		}
		fields["role"] = req.Role
	}
	if req.IsPremium != nil {
		fields["isPremium"] = *req.IsPremium
	}

	if len(fields) == 0 {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "No fields to update.",
		})
	}

	user, err := uc.Repo.UpdateByID(ctx, id, fields)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update user.",
		})
	}
	if user == nil {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "User not found in system!",
		})
	}

	if uc.Firestore != nil {
		fsFields := map[string]interface{}{}
		for k, v := range fields {
			fsFields[k] = v
		}
		if err := uc.Firestore.UpdateFields(ctx, user.FirebaseUID, fsFields); err != nil {
			log.Printf("Firestore admin update error for %s: %v", user.FirebaseUID, err)
		}
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "User updated successfully.",
		Data:    user,
	})
}

// DeleteUser removes a profile and the provider account behind it. Admin
// only.
func (uc *UserController) DeleteUser(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID",
		})
	}

	user, err := uc.Repo.FindByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve user.",
		})
	}
	if user == nil {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "User not found in system!",
		})
	}

	if err := uc.Directory.DeleteUser(ctx, user.FirebaseUID); err != nil && !isUserNotFound(err) {
		log.Printf("Provider account delete error for %s: %v", user.FirebaseUID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to delete account.",
		})
	}

	if err := uc.Repo.DeleteByID(ctx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to delete user.",
		})
	}

	if uc.Firestore != nil {
		if err := uc.Firestore.Delete(ctx, user.FirebaseUID); err != nil {
			log.Printf("Firestore delete error for %s: %v", user.FirebaseUID, err)
		}
	}

	if user.AvatarURL != "" {
		utils.RemoveUploadedFile(user.AvatarURL)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "User deleted successfully.",
	})
}
