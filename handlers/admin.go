// admin.go - Moderation endpoints, admin role required

package handlers

import (
	"errors"
	"net/http"

	"cima-backend/database"
	"cima-backend/logging"
	"cima-backend/middleware"
	"cima-backend/models"

	"github.com/gin-gonic/gin"
)

type StatusInput struct {
	Status models.Status `json:"status" binding:"required"`
}

// ListUsers - GET /api/admin/users
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.Users.List(c.Request.Context())
	if err != nil {
		serverError(c, err, "list users")
		return
	}
	c.JSON(http.StatusOK, users)
}

// DeleteReport - DELETE /api/admin/reports/:id
func (h *Handler) DeleteReport(c *gin.Context) {
	id := c.Param("id")
	err := h.Reports.Delete(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		respondMessage(c, http.StatusNotFound, "Report not found")
		return
	}
	if err != nil {
		serverError(c, err, "delete report")
		return
	}
	logging.Info().Str("report_id", id).Str("admin_id", c.GetString(middleware.ContextUserID)).Msg("report removed")
	respondMessage(c, http.StatusOK, "Report removed")
}

// PromoteUser - PATCH /api/admin/users/:id/promote
func (h *Handler) PromoteUser(c *gin.Context) {
	id := c.Param("id")
	err := h.Users.Promote(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		respondMessage(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		serverError(c, err, "promote user")
		return
	}
	logging.Info().Str("user_id", id).Str("admin_id", c.GetString(middleware.ContextUserID)).Msg("user promoted to admin")
	respondMessage(c, http.StatusOK, "User promoted to admin")
}

// UpdateReportStatus - PATCH /api/admin/reports/:id/status
func (h *Handler) UpdateReportStatus(c *gin.Context) {
	var input StatusInput
	if !bindJSON(c, &input) {
		return
	}

	report, err := h.Reports.UpdateStatus(c.Request.Context(), c.Param("id"), input.Status)
	switch {
	case database.IsValidation(err):
		respondMessage(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrNotFound):
		respondMessage(c, http.StatusNotFound, "Report not found")
	case err != nil:
		serverError(c, err, "update report status")
	default:
		c.JSON(http.StatusOK, report)
	}
}
