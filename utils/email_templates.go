// utils/email_templates.go
package utils

import "fmt"

// EmailTemplate is a rendered message ready for the mailer.
type EmailTemplate struct {
	Subject string
	HTML    string
	Text    string
}

// RegistrationOTPTemplate renders the email sent when a new account verifies
// its address during signup.
func RegistrationOTPTemplate(otp string) EmailTemplate {
	return EmailTemplate{
		Subject: "Registration OTP Verification Code - Fitora",
		HTML: fmt.Sprintf(`
			<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f9f9f9;">
				<div style="background-color: #ffffff; padding: 30px; border-radius: 8px;">
					<h2 style="color: #000; margin-top: 0;">Account Registration Verification</h2>
					<p style="color: #333; font-size: 16px;">Hello,</p>
					<p style="color: #666; font-size: 14px;">Thank you for registering an account with Fitora. Your OTP code is:</p>
					<div style="background-color: #FFE5E5; padding: 20px; text-align: center; border-radius: 8px; margin: 20px 0;">
						<h1 style="color: #000; font-size: 32px; letter-spacing: 8px; margin: 0; font-weight: bold;">%s</h1>
					</div>
					<p style="color: #666; font-size: 14px;">This code will expire in <strong style="color: #000;">5 minutes</strong>.</p>
					<p style="color: #999; font-size: 12px; margin-top: 30px;">If you did not request this code, please ignore this email.</p>
					<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">
					<p style="color: #666; font-size: 12px; margin: 0;">Best regards,<br><strong>The Fitora Team</strong></p>
				</div>
			</div>
		`, otp),
		Text: fmt.Sprintf("Your registration OTP verification code is: %s. This code will expire in 5 minutes.", otp),
	}
}

// PasswordResetOTPTemplate renders the email sent for the password reset flow.
func PasswordResetOTPTemplate(otp string) EmailTemplate {
	return EmailTemplate{
		Subject: "Password Reset OTP Code - Fitora",
		HTML: fmt.Sprintf(`
			<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f9f9f9;">
				<div style="background-color: #ffffff; padding: 30px; border-radius: 8px;">
					<h2 style="color: #000; margin-top: 0;">Password Reset</h2>
					<p style="color: #333; font-size: 16px;">Hello,</p>
					<p style="color: #666; font-size: 14px;">We received a request to reset the password for your account. Your OTP code is:</p>
					<div style="background-color: #FFE5E5; padding: 20px; text-align: center; border-radius: 8px; margin: 20px 0;">
						<h1 style="color: #000; font-size: 32px; letter-spacing: 8px; margin: 0; font-weight: bold;">%s</h1>
					</div>
					<p style="color: #666; font-size: 14px;">This code will expire in <strong style="color: #000;">5 minutes</strong>.</p>
					<p style="color: #ff0000; font-size: 12px; margin-top: 20px;">If you did not request a password reset, please ignore this email and ensure your account is secure.</p>
					<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">
					<p style="color: #666; font-size: 12px; margin: 0;">Best regards,<br><strong>The Fitora Team</strong></p>
				</div>
			</div>
		`, otp),
		Text: fmt.Sprintf("Your password reset OTP code is: %s. This code will expire in 5 minutes. If you did not request a password reset, please ignore this email.", otp),
	}
}
