package models

import (
	"time"
)

// OTPRecord holds the verification state for one identity (normalized email).
// At most one record exists per identity; a new issuance replaces the old one.
type OTPRecord struct {
	Identity  string    `json:"identity"`
	Code      string    `json:"code"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Attempts  int       `json:"attempts"`
	Verified  bool      `json:"verified"`
}

// VerifyResult is the outcome of an OTP verification attempt. Message is
// user-facing and includes the remaining attempt count on mismatch.
type VerifyResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

type SendOTPRequest struct {
	Email string `json:"email"`
}

type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
	Type  string `json:"type,omitempty"`
}
