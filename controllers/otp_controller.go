// controllers/otp_controller.go
package controllers

import (
	"log"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/fitora-app/fitora_backend/models"
	"github.com/fitora-app/fitora_backend/services"
	"github.com/fitora-app/fitora_backend/utils"
)

const otpTypePasswordReset = "password-reset"

// OTPController exposes OTP issuance and verification over HTTP. All format
// validation (email shape, 6-digit code shape) happens here; the OTP service
// assumes well-formed input.
type OTPController struct {
	OTP    *services.OTPService
	Mailer utils.Mailer
}

// NewOTPController creates a new OTP controller
func NewOTPController(otp *services.OTPService, mailer utils.Mailer) *OTPController {
	return &OTPController{
		OTP:    otp,
		Mailer: mailer,
	}
}

func isProduction() bool {
	return os.Getenv("ENV") == "production"
}

// SendOTP issues a fresh code for the email and delivers it. The query
// parameter type selects the template: registration (default) or
// password-reset. Issuance is unconditional; a delivery failure does not
// invalidate the issued code.
func (oc *OTPController) SendOTP(c echo.Context) error {
	var req models.SendOTPRequest
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

	otpType := c.QueryParam("type")
	if otpType == "" {
		otpType = "registration"
	}

	code, err := oc.OTP.Issue(email)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate OTP",
		})
	}

	var template utils.EmailTemplate
	if otpType == otpTypePasswordReset {
		template = utils.PasswordResetOTPTemplate(code)
	} else {
		template = utils.RegistrationOTPTemplate(code)
	}

	// Outside production the raw code rides along in the response so the
	// flow stays testable without a mailbox.
	data := map[string]interface{}{}
	if !isProduction() {
		data["otp"] = code
	}

	if oc.Mailer == nil {
		log.Printf("Email not configured. OTP for %s: %s", email, code)
		data["otp"] = code
		return c.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "OTP code has been generated (email not configured).",
			Data:    data,
		})
	}

	if err := oc.Mailer.Send(email, template.Subject, template.HTML, template.Text); err != nil {
		log.Printf("Failed to send OTP email to %s: %v", email, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Unable to send email. Please try again later.",
			Data:    data,
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "OTP code has been sent to your email!",
		Data:    data,
	})
}

// VerifyOTP checks a submitted code. Registration codes are consumed on
// success; password-reset codes stay verified in the store so the reset
// endpoint can confirm them on the follow-up request.
func (oc *OTPController) VerifyOTP(c echo.Context) error {
	var req models.VerifyOTPRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	if req.Email == "" || req.OTP == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Email and OTP are required!",
		})
	}

	if !utils.IsValidOTPCode(req.OTP) {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "OTP must be 6 digits!",
		})
	}

	email, err := utils.SanitizeEmail(req.Email)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid email format!",
		})
	}

	otpType := c.QueryParam("type")
	if otpType == "" {
		otpType = req.Type
	}
	consumeOnSuccess := otpType != otpTypePasswordReset

	result := oc.OTP.Verify(email, req.OTP, consumeOnSuccess)
	if !result.Valid {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: result.Message,
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: result.Message,
	})
}
