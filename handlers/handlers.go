// handlers.go - Shared handler dependencies and error helpers

package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"cima-backend/auth"
	"cima-backend/database"
	"cima-backend/logging"
	"cima-backend/mailer"
	"cima-backend/models"
	"cima-backend/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// ReportNotifier is told about every report after it has been persisted.
type ReportNotifier interface {
	ReportCreated(report *models.Report)
}

// Handler carries the collaborators of every HTTP handler.
type Handler struct {
	DB          *gorm.DB              // Used by the health check
	Reports     *database.ReportStore // Report documents
	Users       *database.UserStore   // Accounts
	Tokens      *auth.TokenService    // Session and email tokens
	Mailer      mailer.Sender         // Transactional email (verify, reset)
	Notifier    ReportNotifier        // Fan-out of new reports
	Hub         *realtime.Hub         // Live subscribers for /api/reports/stream
	FrontendURL string                // Base of links placed in emails
	MailTimeout time.Duration         // Bound for one transactional send
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}

// serverError logs err and answers 500 without leaking internals.
func serverError(c *gin.Context, err error, msg string) {
	_ = c.Error(err)
	logging.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
	respondMessage(c, http.StatusInternalServerError, "Server error")
}

// bindJSON decodes the body into dst and answers 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondMessage(c, http.StatusBadRequest, bindingMessage(err))
		return false
	}
	return true
}

// bindingMessage turns validator errors into "<json field> is required" style text.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request body"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:] // drop the struct name
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "email":
			msgs = append(msgs, field+" must be a valid email address")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "len":
			msgs = append(msgs, fmt.Sprintf("%s must have exactly %s values", field, fe.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

var registerNames sync.Once

// useJSONFieldNames makes validator report JSON names instead of Go field names.
func useJSONFieldNames() {
	registerNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}

// sendMail delivers a transactional email, logging instead of failing.
func (h *Handler) sendMail(ctx context.Context, msg *mailer.Message, kind string) {
	timeout := h.MailTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := h.Mailer.Send(ctx, msg); err != nil {
		logging.Error().Err(err).Str("kind", kind).Strs("to", msg.To).Msg("email delivery failed")
	}
}

func (h *Handler) link(path string) string {
	return strings.TrimRight(h.FrontendURL, "/") + path
}
