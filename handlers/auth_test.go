package handlers

import (
	"context"
	"net/http"
	"testing"

	"cima-backend/auth"
	"cima-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterVerifyLogin(t *testing.T) {
	env := setupEnv(t)
	creds := map[string]any{"email": "amina@example.org", "password": "password123"}

	w := env.do(http.MethodPost, "/api/auth/register", map[string]any{
		"name": "Amina", "email": "amina@example.org", "password": "password123",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode[map[string]any](t, w)
	assert.Equal(t, false, body["isVerified"])
	assert.NotContains(t, body, "password")

	sent := env.mail.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"amina@example.org"}, sent[0].To)

	// Unverified accounts cannot log in.
	w = env.do(http.MethodPost, "/api/auth/login", creds, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Please verify your email first", decode[map[string]string](t, w)["message"])

	user, err := env.users.FindByEmail(context.Background(), "amina@example.org")
	require.NoError(t, err)
	require.NotNil(t, user.VerificationToken)
	token := *user.VerificationToken
	assert.Contains(t, sent[0].HTML, "http://localhost:5173/verify/"+token)

	w = env.do(http.MethodGet, "/api/auth/verify/"+token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// A used token is rejected.
	w = env.do(http.MethodGet, "/api/auth/verify/"+token, nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/auth/login", creds, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	login := decode[LoginResponse](t, w)
	assert.Equal(t, user.ID, login.ID)
	assert.Equal(t, models.RoleMember, login.Role)
	assert.True(t, login.Preferences.EmailNotifications)

	userID, err := env.tokens.ParseSession(login.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
}

func TestRegisterRejectsDuplicateAndInvalid(t *testing.T) {
	env := setupEnv(t)
	env.createUser(t, "Existing", "taken@example.org", true, true, models.RoleMember)

	w := env.do(http.MethodPost, "/api/auth/register", map[string]any{
		"name": "Other", "email": "taken@example.org", "password": "password123",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User already exists", decode[map[string]string](t, w)["message"])

	w = env.do(http.MethodPost, "/api/auth/register", map[string]any{
		"name": "Short", "email": "short@example.org", "password": "abc",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["message"], "password must be at least 6 characters")

	w = env.do(http.MethodPost, "/api/auth/register", map[string]any{
		"name": "Bad", "email": "not-an-email", "password": "password123",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterSurvivesMailFailure(t *testing.T) {
	env := setupEnv(t)
	env.mail.err = errSMTPDown

	w := env.do(http.MethodPost, "/api/auth/register", map[string]any{
		"name": "Amina", "email": "amina@example.org", "password": "password123",
	}, "")
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestVerifyEmailRejectsForeignTokens(t *testing.T) {
	env := setupEnv(t)

	w := env.do(http.MethodGet, "/api/auth/verify/garbage", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// A reset token must not verify an account.
	reset, err := env.tokens.IssueEmailToken("nobody@example.org", auth.PurposeReset, auth.ResetTokenTTL)
	require.NoError(t, err)
	w = env.do(http.MethodGet, "/api/auth/verify/"+reset, nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	env := setupEnv(t)
	env.createUser(t, "Jane", "jane@example.org", true, true, models.RoleMember)

	for _, creds := range []map[string]any{
		{"email": "jane@example.org", "password": "wrong-password"},
		{"email": "ghost@example.org", "password": "password123"},
	} {
		w := env.do(http.MethodPost, "/api/auth/login", creds, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid email or password", decode[map[string]string](t, w)["message"])
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	env := setupEnv(t)
	env.createUser(t, "Jane", "jane@example.org", true, true, models.RoleMember)

	// Unknown addresses get the same answer and no email.
	w := env.do(http.MethodPost, "/api/auth/forgot-password", map[string]any{"email": "ghost@example.org"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, env.mail.messages())

	w = env.do(http.MethodPost, "/api/auth/forgot-password", map[string]any{"email": "jane@example.org"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
	sent := env.mail.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].HTML, "http://localhost:5173/reset-password/")

	token, err := env.tokens.IssueEmailToken("jane@example.org", auth.PurposeReset, auth.ResetTokenTTL)
	require.NoError(t, err)

	w = env.do(http.MethodPost, "/api/auth/reset-password", map[string]any{"token": "garbage", "password": "newpass123"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/auth/reset-password", map[string]any{"token": token, "password": "newpass123"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodPost, "/api/auth/login", map[string]any{"email": "jane@example.org", "password": "newpass123"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(http.MethodPost, "/api/auth/login", map[string]any{"email": "jane@example.org", "password": "password123"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
