package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitora-app/fitora_backend/models"
	"github.com/fitora-app/fitora_backend/services"
	"github.com/fitora-app/fitora_backend/utils"
)

type fakeMailer struct {
	sent []string
	fail bool
}

func (f *fakeMailer) Send(to, subject, htmlBody, textBody string) error {
	if f.fail {
		return errors.New("smtp unreachable")
	}
	f.sent = append(f.sent, to)
	return nil
}

func newOTPService() *services.OTPService {
	return services.NewOTPService(services.NewMemoryOTPStore(), services.OTPConfig{
		TTL:         5 * time.Minute,
		MaxAttempts: 5,
	})
}

func doRequest(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) models.Response {
	t.Helper()
	var resp models.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func newOTPTestServer(mailer *fakeMailer) (*echo.Echo, *services.OTPService) {
	svc := newOTPService()

	// A typed nil must not reach the controller's interface field.
	var m utils.Mailer
	if mailer != nil {
		m = mailer
	}
	oc := NewOTPController(svc, m)

	e := echo.New()
	e.POST("/api/otp/send", oc.SendOTP)
	e.POST("/api/otp/verify", oc.VerifyOTP)
	return e, svc
}

func TestSendOTPValidatesEmail(t *testing.T) {
	e, _ := newOTPTestServer(&fakeMailer{})

	rec := doRequest(e, http.MethodPost, "/api/otp/send", `{"email":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(e, http.MethodPost, "/api/otp/send", `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendOTPDeliversAndIssues(t *testing.T) {
	mailer := &fakeMailer{}
	e, svc := newOTPTestServer(mailer)

	rec := doRequest(e, http.MethodPost, "/api/otp/send", `{"email":"User@Example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "user@example.com", mailer.sent[0])

	// Non-production responses carry the code for testability.
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	code, ok := data["otp"].(string)
	require.True(t, ok)

	result := svc.Verify("user@example.com", code, false)
	assert.True(t, result.Valid)
}

func TestSendOTPMailFailureKeepsCodeValid(t *testing.T) {
	mailer := &fakeMailer{fail: true}
	e, svc := newOTPTestServer(mailer)

	rec := doRequest(e, http.MethodPost, "/api/otp/send", `{"email":"user@example.com"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// Issuance is unconditional; the code stays live even though the email
	// never went out.
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	code, ok := data["otp"].(string)
	require.True(t, ok)

	result := svc.Verify("user@example.com", code, false)
	assert.True(t, result.Valid)
}

func TestSendOTPWithoutMailerLogsCode(t *testing.T) {
	e, _ := newOTPTestServer(nil)

	rec := doRequest(e, http.MethodPost, "/api/otp/send", `{"email":"user@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.Contains(t, resp.Message, "email not configured")
	data := resp.Data.(map[string]interface{})
	_, ok := data["otp"].(string)
	assert.True(t, ok)
}

func TestVerifyOTPValidatesShape(t *testing.T) {
	e, _ := newOTPTestServer(&fakeMailer{})

	rec := doRequest(e, http.MethodPost, "/api/otp/verify", `{"email":"user@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(e, http.MethodPost, "/api/otp/verify", `{"email":"user@example.com","otp":"12345"}`)
	resp := decodeResponse(t, rec)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Message, "6 digits")

	rec = doRequest(e, http.MethodPost, "/api/otp/verify", `{"email":"user@example.com","otp":"12345a"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyOTPRegistrationConsumes(t *testing.T) {
	e, svc := newOTPTestServer(&fakeMailer{})

	code, err := svc.Issue("user@example.com")
	require.NoError(t, err)

	body := `{"email":"user@example.com","otp":"` + code + `"}`
	rec := doRequest(e, http.MethodPost, "/api/otp/verify", body)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Registration codes are single-use.
	rec = doRequest(e, http.MethodPost, "/api/otp/verify", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Contains(t, resp.Message, "does not exist or has expired")
}

func TestVerifyOTPPasswordResetRetains(t *testing.T) {
	e, svc := newOTPTestServer(&fakeMailer{})

	code, err := svc.Issue("user@example.com")
	require.NoError(t, err)

	body := `{"email":"user@example.com","otp":"` + code + `","type":"password-reset"}`
	for i := 0; i < 2; i++ {
		rec := doRequest(e, http.MethodPost, "/api/otp/verify", body)
		assert.Equal(t, http.StatusOK, rec.Code, "verification %d", i+1)
	}

	record, ok := svc.Peek("user@example.com")
	require.True(t, ok)
	assert.True(t, record.Verified)
}

func TestVerifyOTPTypeFromQuery(t *testing.T) {
	e, svc := newOTPTestServer(&fakeMailer{})

	code, err := svc.Issue("user@example.com")
	require.NoError(t, err)

	body := `{"email":"user@example.com","otp":"` + code + `"}`
	rec := doRequest(e, http.MethodPost, "/api/otp/verify?type=password-reset", body)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, ok := svc.Peek("user@example.com")
	assert.True(t, ok, "password-reset verification must retain the record")
}

func TestVerifyOTPWrongCodeReportsRemaining(t *testing.T) {
	e, svc := newOTPTestServer(&fakeMailer{})

	code, err := svc.Issue("user@example.com")
	require.NoError(t, err)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	rec := doRequest(e, http.MethodPost, "/api/otp/verify", `{"email":"user@example.com","otp":"`+wrong+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Contains(t, resp.Message, "4 attempts remaining")
}
