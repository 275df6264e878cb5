// models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User model. The identity provider (Firebase) owns the credential; this
// record is the application profile keyed by the provider UID.
type User struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	FirebaseUID string             `json:"firebaseUid" bson:"firebaseUid"`
	Email       string             `json:"email" bson:"email"`
	Name        string             `json:"name" bson:"name"`
	AvatarURL   string             `json:"avatarUrl,omitempty" bson:"avatarUrl,omitempty"`
	Phone       string             `json:"phone,omitempty" bson:"phone,omitempty"`
	Address     string             `json:"address,omitempty" bson:"address,omitempty"`
	Gender      string             `json:"gender,omitempty" bson:"gender,omitempty"`
	DateOfBirth string             `json:"dateOfBirth,omitempty" bson:"dateOfBirth,omitempty"`
	Role        string             `json:"role" bson:"role"` // "user" or "admin"
	IsPremium   bool               `json:"isPremium" bson:"isPremium"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// SyncUserRequest is sent after the provider finishes signup/login so the
// profile stores stay in step with the provider account.
type SyncUserRequest struct {
	FirebaseUID string `json:"firebaseUid" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Name        string `json:"name"`
	AvatarURL   string `json:"avatarUrl"`
}

type UpdateProfileRequest struct {
	Name        string `json:"name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Address     string `json:"address,omitempty"`
	Gender      string `json:"gender,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
}

type CheckEmailRequest struct {
	Email string `json:"email"`
}

type CheckPhoneRequest struct {
	Phone         string `json:"phone"`
	ExcludeUserID string `json:"excludeUserId,omitempty"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

type CleanupFirebaseRequest struct {
	FirebaseUID string `json:"firebaseUid"`
}

// Response model
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
