package controllers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitora-app/fitora_backend/services"
)

// errDirectoryUserMissing is what the fake directory answers for unknown
// accounts; stubUserNotFound teaches the handlers to recognize it.
var errDirectoryUserMissing = errors.New("no account for that address")

// stubUserNotFound swaps the provider's not-found matcher for one the fake
// directory's errors satisfy; the real matcher only accepts the SDK's own
// error type.
func stubUserNotFound(t *testing.T) {
	t.Helper()
	orig := isUserNotFound
	isUserNotFound = func(err error) bool { return errors.Is(err, errDirectoryUserMissing) }
	t.Cleanup(func() { isUserNotFound = orig })
}

// fakeDirectory stands in for the identity provider's admin API.
type fakeDirectory struct {
	users        map[string]string // email -> uid
	passwords    map[string]string // uid -> password
	revoked      []string
	deleted      []string
	lookupErr    error
	updateCalled int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users:     map[string]string{"user@example.com": "uid-1"},
		passwords: map[string]string{},
	}
}

func (f *fakeDirectory) GetUserByEmail(ctx context.Context, email string) (*auth.UserRecord, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	uid, ok := f.users[email]
	if !ok {
		return nil, errDirectoryUserMissing
	}
	return &auth.UserRecord{UserInfo: &auth.UserInfo{UID: uid, Email: email}}, nil
}

func (f *fakeDirectory) UpdateUser(ctx context.Context, uid string, user *auth.UserToUpdate) (*auth.UserRecord, error) {
	f.updateCalled++
	f.passwords[uid] = "updated"
	return &auth.UserRecord{UserInfo: &auth.UserInfo{UID: uid}}, nil
}

func (f *fakeDirectory) DeleteUser(ctx context.Context, uid string) error {
	f.deleted = append(f.deleted, uid)
	return nil
}

func (f *fakeDirectory) RevokeRefreshTokens(ctx context.Context, uid string) error {
	f.revoked = append(f.revoked, uid)
	return nil
}

func newResetTestServer(dir *fakeDirectory) (*echo.Echo, *services.OTPService) {
	svc := newOTPService()
	uc := NewUserController(nil, nil, dir, svc)

	e := echo.New()
	e.POST("/api/users/reset-password", uc.ResetPasswordAfterOTP)
	e.POST("/api/users/check-email", uc.CheckEmail)
	return e, svc
}

func TestResetPasswordValidatesInput(t *testing.T) {
	e, _ := newResetTestServer(newFakeDirectory())

	rec := doRequest(e, http.MethodPost, "/api/users/reset-password", `{"email":"user@example.com","otp":"123456"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(e, http.MethodPost, "/api/users/reset-password", `{"email":"user@example.com","otp":"123456","newPassword":"short"}`)
	resp := decodeResponse(t, rec)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Message, "at least 6 characters")
}

func TestResetPasswordRejectsUnissuedCode(t *testing.T) {
	dir := newFakeDirectory()
	e, _ := newResetTestServer(dir)

	rec := doRequest(e, http.MethodPost, "/api/users/reset-password", `{"email":"user@example.com","otp":"123456","newPassword":"newsecret"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, dir.updateCalled, "provider must not be consulted before OTP verification")
}

func TestResetPasswordRejectsWrongCode(t *testing.T) {
	dir := newFakeDirectory()
	e, svc := newResetTestServer(dir)

	code, err := svc.Issue("user@example.com")
	require.NoError(t, err)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	rec := doRequest(e, http.MethodPost, "/api/users/reset-password", `{"email":"user@example.com","otp":"`+wrong+`","newPassword":"newsecret"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, dir.updateCalled)

	// The mismatch burned an attempt but the record survives.
	record, ok := svc.Peek("user@example.com")
	require.True(t, ok)
	assert.Equal(t, 1, record.Attempts)
}

func TestResetPasswordFullFlow(t *testing.T) {
	dir := newFakeDirectory()
	e, svc := newResetTestServer(dir)

	code, err := svc.Issue("user@example.com")
	require.NoError(t, err)

	// Step one of the flow: the code is confirmed in retained mode.
	result := svc.Verify("user@example.com", code, false)
	require.True(t, result.Valid)

	// Step two: the new credential is submitted with the same code.
	rec := doRequest(e, http.MethodPost, "/api/users/reset-password", `{"email":"User@Example.com","otp":"`+code+`","newPassword":"newsecret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, dir.updateCalled)
	assert.Equal(t, "updated", dir.passwords["uid-1"])

	// The record is consumed once the password changed; replay fails.
	_, ok := svc.Peek("user@example.com")
	assert.False(t, ok)

	rec = doRequest(e, http.MethodPost, "/api/users/reset-password", `{"email":"user@example.com","otp":"`+code+`","newPassword":"another1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, dir.updateCalled)
}

func TestResetPasswordUnknownUserReturns404(t *testing.T) {
	stubUserNotFound(t)
	dir := newFakeDirectory()
	e, svc := newResetTestServer(dir)

	// The OTP is correct but no provider account carries that address.
	code, err := svc.Issue("ghost@example.com")
	require.NoError(t, err)

	rec := doRequest(e, http.MethodPost, "/api/users/reset-password", `{"email":"ghost@example.com","otp":"`+code+`","newPassword":"newsecret"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, dir.updateCalled)

	// The verified record is not consumed on a failed lookup; the user can
	// retry against the right address.
	record, ok := svc.Peek("ghost@example.com")
	require.True(t, ok)
	assert.True(t, record.Verified)
}

func TestCheckEmailReportsExistence(t *testing.T) {
	stubUserNotFound(t)
	e, _ := newResetTestServer(newFakeDirectory())

	rec := doRequest(e, http.MethodPost, "/api/users/check-email", `{"email":"user@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, true, data["exists"])

	rec = doRequest(e, http.MethodPost, "/api/users/check-email", `{"email":"free@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeResponse(t, rec)
	data = resp.Data.(map[string]interface{})
	assert.Equal(t, false, data["exists"])
}

func TestCheckEmailUnrecognizedLookupErrorIs500(t *testing.T) {
	stubUserNotFound(t)
	dir := newFakeDirectory()
	dir.lookupErr = errors.New("provider unavailable")
	e, _ := newResetTestServer(dir)

	rec := doRequest(e, http.MethodPost, "/api/users/check-email", `{"email":"user@example.com"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResetPasswordWorksWithoutPriorConfirmRequest(t *testing.T) {
	// Submitting email+otp+password in one request is valid: the handler
	// verifies in retained mode itself before consulting the provider.
	dir := newFakeDirectory()
	e, svc := newResetTestServer(dir)

	code, err := svc.Issue("user@example.com")
	require.NoError(t, err)

	rec := doRequest(e, http.MethodPost, "/api/users/reset-password", `{"email":"user@example.com","otp":"`+code+`","newPassword":"newsecret"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, dir.updateCalled)
}
