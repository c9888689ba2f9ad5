// auth.go - Registration, email verification, login and password reset

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"cima-backend/auth"
	"cima-backend/database"
	"cima-backend/logging"
	"cima-backend/mailer"
	"cima-backend/models"

	"github.com/gin-gonic/gin"
)

type RegisterInput struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ForgotPasswordInput struct {
	Email string `json:"email" binding:"required"`
}

type ResetPasswordInput struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	ID          string             `json:"_id"`
	Name        string             `json:"name"`
	Email       string             `json:"email"`
	Role        models.Role        `json:"role"`
	IsVerified  bool               `json:"isVerified"`
	Preferences models.Preferences `json:"preferences"`
	Token       string             `json:"token"`
}

// Register - POST /api/auth/register
func (h *Handler) Register(c *gin.Context) {
	var input RegisterInput
	if !bindJSON(c, &input) {
		return
	}
	ctx := c.Request.Context()
	email := strings.TrimSpace(input.Email)

	// STEP 1: Reject addresses that already have an account
	if _, err := h.Users.FindByEmail(ctx, email); err == nil {
		respondMessage(c, http.StatusBadRequest, "User already exists")
		return
	} else if !errors.Is(err, database.ErrNotFound) {
		serverError(c, err, "lookup user")
		return
	}

	// STEP 2: Hash the password and issue the verification token
	hash, err := auth.HashPassword(input.Password) // bcrypt
	if err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	token, err := h.Tokens.IssueEmailToken(email, auth.PurposeVerify, auth.VerifyTokenTTL)
	if err != nil {
		serverError(c, err, "issue verification token")
		return
	}

	// STEP 3: Store the unverified account
	user := &models.User{
		Name:              strings.TrimSpace(input.Name),
		Email:             email,
		Password:          hash,
		Role:              models.RoleMember,
		VerificationToken: &token,
		Preferences:       models.DefaultPreferences(),
	}
	if err := h.Users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, database.ErrDuplicateEmail):
			respondMessage(c, http.StatusBadRequest, "User already exists")
		case database.IsValidation(err):
			respondMessage(c, http.StatusBadRequest, err.Error())
		default:
			serverError(c, err, "create user")
		}
		return
	}

	// STEP 4: Mail the link; a failed send does not undo the registration
	link := h.link("/verify/" + token)
	if msg, err := mailer.VerificationMessage(user.Email, user.Name, link); err != nil {
		logging.Error().Err(err).Msg("build verification email")
	} else {
		h.sendMail(ctx, msg, "verify")
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":    "User registered successfully. Please check your email for verification link.",
		"_id":        user.ID,
		"name":       user.Name,
		"email":      user.Email,
		"isVerified": user.IsVerified,
	})
}

// VerifyEmail - GET /api/auth/verify/:token
func (h *Handler) VerifyEmail(c *gin.Context) {
	token := c.Param("token")
	email, err := h.Tokens.ParseEmailToken(token, auth.PurposeVerify)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "Invalid or expired token")
		return
	}

	user, err := h.Users.FindByEmail(c.Request.Context(), email)
	if errors.Is(err, database.ErrNotFound) {
		respondMessage(c, http.StatusBadRequest, "Invalid token")
		return
	}
	if err != nil {
		serverError(c, err, "lookup user")
		return
	}
	if user.IsVerified {
		respondMessage(c, http.StatusBadRequest, "User already verified")
		return
	}
	// Only the most recently issued token is accepted, and only once.
	if user.VerificationToken == nil || *user.VerificationToken != token {
		respondMessage(c, http.StatusBadRequest, "Invalid token")
		return
	}

	if err := h.Users.MarkVerified(c.Request.Context(), user.ID); err != nil {
		serverError(c, err, "mark verified")
		return
	}
	respondMessage(c, http.StatusOK, "Email verified successfully. You can now log in.")
}

// Login - POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	var input LoginInput
	if !bindJSON(c, &input) {
		return
	}

	user, err := h.Users.FindByEmail(c.Request.Context(), strings.TrimSpace(input.Email))
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		serverError(c, err, "lookup user")
		return
	}
	if user == nil || !auth.CheckPassword(user.Password, input.Password) { // Same answer for unknown email and wrong password
		respondMessage(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if !user.IsVerified {
		respondMessage(c, http.StatusUnauthorized, "Please verify your email first")
		return
	}

	token, err := h.Tokens.IssueSession(user.ID) // Signed JWT, sub = user id
	if err != nil {
		serverError(c, err, "issue session token")
		return
	}
	c.JSON(http.StatusOK, LoginResponse{
		ID:          user.ID,
		Name:        user.Name,
		Email:       user.Email,
		Role:        user.Role,
		IsVerified:  user.IsVerified,
		Preferences: user.Preferences,
		Token:       token,
	})
}

// ForgotPassword - POST /api/auth/forgot-password
//
// The response is identical whether or not the account exists.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var input ForgotPasswordInput
	if !bindJSON(c, &input) {
		return
	}
	ctx := c.Request.Context()

	user, err := h.Users.FindByEmail(ctx, strings.TrimSpace(input.Email))
	switch {
	case err == nil:
		token, err := h.Tokens.IssueEmailToken(user.Email, auth.PurposeReset, auth.ResetTokenTTL)
		if err != nil {
			serverError(c, err, "issue reset token")
			return
		}
		msg, err := mailer.PasswordResetMessage(user.Email, h.link("/reset-password/"+token))
		if err != nil {
			serverError(c, err, "build reset email")
			return
		}
		h.sendMail(ctx, msg, "reset")
	case !errors.Is(err, database.ErrNotFound):
		serverError(c, err, "lookup user")
		return
	}

	respondMessage(c, http.StatusOK, "Password reset link sent to your email")
}

// ResetPassword - POST /api/auth/reset-password
func (h *Handler) ResetPassword(c *gin.Context) {
	var input ResetPasswordInput
	if !bindJSON(c, &input) {
		return
	}
	ctx := c.Request.Context()

	email, err := h.Tokens.ParseEmailToken(input.Token, auth.PurposeReset)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "Invalid or expired token")
		return
	}
	user, err := h.Users.FindByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		respondMessage(c, http.StatusBadRequest, "Invalid token")
		return
	}
	if err != nil {
		serverError(c, err, "lookup user")
		return
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Users.UpdatePassword(ctx, user.ID, hash); err != nil {
		serverError(c, err, "update password")
		return
	}
	respondMessage(c, http.StatusOK, "Password reset successful")
}
