// utils/email.go
package utils

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/gomail.v2"
)

// Mailer delivers rendered messages to an email address. The OTP issuance
// flow does not depend on delivery succeeding; failures are surfaced to the
// caller and the issued code stays valid.
type Mailer interface {
	Send(to, subject, htmlBody, textBody string) error
}

// GomailMailer sends email through an SMTP relay using gomail.
type GomailMailer struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// NewGomailMailer builds a mailer from SMTP_* environment variables. Returns
// an error when the configuration is incomplete so the caller can fall back
// to logging codes instead of sending them.
func NewGomailMailer() (*GomailMailer, error) {
	host := os.Getenv("SMTP_HOST")
	portStr := os.Getenv("SMTP_PORT")
	user := os.Getenv("SMTP_USER")
	pass := os.Getenv("SMTP_PASS")
	from := os.Getenv("FROM_EMAIL")

	if host == "" || portStr == "" || user == "" || pass == "" || from == "" {
		return nil, fmt.Errorf("missing SMTP configuration")
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP port: %v", err)
	}

	return &GomailMailer{
		Host: host,
		Port: port,
		User: user,
		Pass: pass,
		From: from,
	}, nil
}

// Send delivers a single message via the configured SMTP relay.
func (g *GomailMailer) Send(to, subject, htmlBody, textBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("Fitora <%s>", g.From))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	m.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(g.Host, g.Port, g.User, g.Pass)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}

	return nil
}
