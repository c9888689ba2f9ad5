// users.go - Account self-service for the signed-in user

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"cima-backend/auth"
	"cima-backend/database"
	"cima-backend/logging"
	"cima-backend/mailer"
	"cima-backend/middleware"
	"cima-backend/models"

	"github.com/gin-gonic/gin"
)

type UpdateProfileInput struct {
	Name  string `json:"name"`
	Email string `json:"email" binding:"omitempty,email"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

type PreferencesInput struct {
	EmailNotifications *bool `json:"emailNotifications" binding:"required"`
	ReportUpdates      *bool `json:"reportUpdates" binding:"required"`
}

// Me - GET /api/users/me
func (h *Handler) Me(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	c.JSON(http.StatusOK, user)
}

// UpdateProfile - PUT /api/users/profile
//
// Changing the email marks the account unverified until the new address is
// confirmed through the link mailed to it.
func (h *Handler) UpdateProfile(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	var input UpdateProfileInput
	if !bindJSON(c, &input) {
		return
	}
	ctx := c.Request.Context()

	// STEP 1: Work out whether the email really changes
	changes := database.ProfileUpdate{Name: input.Name}
	email := strings.TrimSpace(input.Email)
	emailChanged := email != "" && email != user.Email
	if emailChanged {
		token, err := h.Tokens.IssueEmailToken(email, auth.PurposeVerify, auth.VerifyTokenTTL)
		if err != nil {
			serverError(c, err, "issue verification token")
			return
		}
		changes.Email = email
		changes.VerificationToken = token
	}

	// STEP 2: Persist
	updated, err := h.Users.UpdateProfile(ctx, user.ID, changes)
	if errors.Is(err, database.ErrDuplicateEmail) {
		respondMessage(c, http.StatusBadRequest, "Email already in use")
		return
	}
	if err != nil {
		serverError(c, err, "update profile")
		return
	}

	// STEP 3: Ask the new address to confirm itself
	if emailChanged {
		link := h.link("/verify/" + changes.VerificationToken)
		if msg, err := mailer.VerificationMessage(updated.Email, updated.Name, link); err != nil {
			logging.Error().Err(err).Msg("build verification email")
		} else {
			h.sendMail(ctx, msg, "verify")
		}
	}
	c.JSON(http.StatusOK, updated)
}

// ChangePassword - PUT /api/users/password
func (h *Handler) ChangePassword(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	var input ChangePasswordInput
	if !bindJSON(c, &input) {
		return
	}
	if !auth.CheckPassword(user.Password, input.CurrentPassword) {
		respondMessage(c, http.StatusBadRequest, "Current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(input.NewPassword)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Users.UpdatePassword(c.Request.Context(), user.ID, hash); err != nil {
		serverError(c, err, "change password")
		return
	}
	respondMessage(c, http.StatusOK, "Password changed successfully")
}

// UpdatePreferences - PUT /api/users/preferences
func (h *Handler) UpdatePreferences(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	var input PreferencesInput
	if !bindJSON(c, &input) {
		return
	}

	updated, err := h.Users.UpdatePreferences(c.Request.Context(), user.ID, models.Preferences{
		EmailNotifications: *input.EmailNotifications,
		ReportUpdates:      *input.ReportUpdates,
	})
	if err != nil {
		serverError(c, err, "update preferences")
		return
	}
	c.JSON(http.StatusOK, updated)
}
