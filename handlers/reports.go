// reports.go - Report listing, creation and live stream

package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"cima-backend/database"
	"cima-backend/logging"
	"cima-backend/metrics"
	"cima-backend/middleware"
	"cima-backend/models"

	"github.com/gin-gonic/gin"
)

const streamKeepAlive = 25 * time.Second

// ListReports - GET /api/reports (public)
func (h *Handler) ListReports(c *gin.Context) {
	reports, err := h.Reports.List(c.Request.Context())
	if err != nil {
		serverError(c, err, "list reports")
		return
	}
	c.JSON(http.StatusOK, reports)
}

// GetReport - GET /api/reports/:id (public)
func (h *Handler) GetReport(c *gin.Context) {
	report, err := h.Reports.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		respondMessage(c, http.StatusNotFound, "Report not found")
		return
	}
	if err != nil {
		serverError(c, err, "get report")
		return
	}
	c.JSON(http.StatusOK, report)
}

// CreateReport - POST /api/reports (authenticated)
//
// The report is persisted and re-read first; only then is it handed to the
// notifier. Notification outcome never changes the response.
func (h *Handler) CreateReport(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondMessage(c, http.StatusUnauthorized, "Not authorized")
		return
	}

	// STEP 1: Bind and validate the body
	var input models.ReportInput
	if !bindJSON(c, &input) {
		return
	}

	// STEP 2: Persist and re-read with the creator resolved
	report, err := h.Reports.Create(c.Request.Context(), input, user.ID)
	switch {
	case database.IsValidation(err):
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, database.ErrCreatorNotFound):
		respondMessage(c, http.StatusUnauthorized, "Not authorized, user not found")
		return
	case err != nil:
		serverError(c, err, "create report")
		return
	}

	// STEP 3: Only a stored report is announced
	metrics.ReportsCreated.Inc()
	logging.Info().Str("report_id", report.ID).Str("user_id", user.ID).Str("category", report.Category).Msg("report created")
	h.Notifier.ReportCreated(report)

	c.JSON(http.StatusCreated, report) // Respond with the stored document
}

// StreamReports - GET /api/reports/stream (public, Server-Sent Events)
func (h *Handler) StreamReports(c *gin.Context) {
	sub := h.Hub.Subscribe() // Register before the client sees the stream open
	defer h.Hub.Unsubscribe(sub)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush() // client sees the stream open once it is registered

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-sub.Messages():
			if !ok {
				return false
			}
			c.SSEvent(msg.Type, msg.Data)
			return true
		case <-keepAlive.C:
			_, err := io.WriteString(w, ": keepalive\n\n")
			return err == nil
		case <-c.Request.Context().Done():
			return false
		}
	})
}
