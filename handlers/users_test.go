package handlers

import (
	"context"
	"net/http"
	"testing"

	"cima-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMe(t *testing.T) {
	env := setupEnv(t)
	user, token := env.createUser(t, "Jane", "jane@example.org", true, true, models.RoleMember)

	w := env.do(http.MethodGet, "/api/users/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, user.ID, body["_id"])
	assert.NotContains(t, body, "password")

	w = env.do(http.MethodGet, "/api/users/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Not authorized, no token", decode[map[string]string](t, w)["message"])
}

func TestUpdateProfile(t *testing.T) {
	env := setupEnv(t)
	_, token := env.createUser(t, "Jane", "jane@example.org", true, true, models.RoleMember)
	env.createUser(t, "Other", "other@example.org", true, true, models.RoleMember)

	w := env.do(http.MethodPut, "/api/users/profile", map[string]any{"name": "Jane W."}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.User](t, w)
	assert.Equal(t, "Jane W.", updated.Name)
	assert.Equal(t, "jane@example.org", updated.Email)

	w = env.do(http.MethodPut, "/api/users/profile", map[string]any{"email": "other@example.org"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email already in use", decode[map[string]string](t, w)["message"])
}

func TestChangePassword(t *testing.T) {
	env := setupEnv(t)
	_, token := env.createUser(t, "Jane", "jane@example.org", true, true, models.RoleMember)

	w := env.do(http.MethodPut, "/api/users/password", map[string]any{
		"currentPassword": "wrong-password", "newPassword": "newpass123",
	}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Current password is incorrect", decode[map[string]string](t, w)["message"])

	w = env.do(http.MethodPut, "/api/users/password", map[string]any{
		"currentPassword": "password123", "newPassword": "newpass123",
	}, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/auth/login", map[string]any{"email": "jane@example.org", "password": "newpass123"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdatePreferencesControlsNotifications(t *testing.T) {
	env := setupEnv(t)
	_, token := env.createUser(t, "Jane", "jane@example.org", true, true, models.RoleMember)

	w := env.do(http.MethodPut, "/api/users/preferences", map[string]any{"emailNotifications": false}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code) // both flags are required

	w = env.do(http.MethodPut, "/api/users/preferences", map[string]any{
		"emailNotifications": false, "reportUpdates": true,
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.User](t, w)
	assert.False(t, updated.Preferences.EmailNotifications)
	assert.True(t, updated.Preferences.ReportUpdates)

	w = env.do(http.MethodPost, "/api/reports", potholeReport(), token)
	require.Equal(t, http.StatusCreated, w.Code)
	env.waitDispatch(t)
	assert.Empty(t, env.mail.messages())
}

func TestUpdateProfileEmailChangeNeedsVerification(t *testing.T) {
	env := setupEnv(t)
	_, token := env.createUser(t, "Jane", "jane@example.org", true, true, models.RoleMember)

	w := env.do(http.MethodPut, "/api/users/profile", map[string]any{"email": "victim@example.org"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.User](t, w)
	assert.Equal(t, "victim@example.org", updated.Email)
	assert.False(t, updated.IsVerified)

	// The unconfirmed address receives no report notifications.
	emails, err := env.users.NotificationRecipients(context.Background())
	require.NoError(t, err)
	assert.Empty(t, emails)

	sent := env.mail.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"victim@example.org"}, sent[0].To)

	stored, err := env.users.FindByEmail(context.Background(), "victim@example.org")
	require.NoError(t, err)
	require.NotNil(t, stored.VerificationToken)
	assert.Contains(t, sent[0].HTML, "/verify/"+*stored.VerificationToken)

	// Confirming the link restores the flag for the new address.
	w = env.do(http.MethodGet, "/api/auth/verify/"+*stored.VerificationToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	emails, err = env.users.NotificationRecipients(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"victim@example.org"}, emails)
}

func TestUpdateProfileSameEmailKeepsVerification(t *testing.T) {
	env := setupEnv(t)
	_, token := env.createUser(t, "Jane", "jane@example.org", true, true, models.RoleMember)

	w := env.do(http.MethodPut, "/api/users/profile", map[string]any{"email": "jane@example.org"}, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[models.User](t, w).IsVerified)
	assert.Empty(t, env.mail.messages())
}
