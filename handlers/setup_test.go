package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cima-backend/auth"
	"cima-backend/database"
	"cima-backend/mailer"
	"cima-backend/models"
	"cima-backend/notify"
	"cima-backend/realtime"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// recordingMailer keeps every message; err makes every send fail.
type recordingMailer struct {
	mu   sync.Mutex
	sent []*mailer.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg *mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []*mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*mailer.Message(nil), m.sent...)
}

type testEnv struct {
	router     *gin.Engine
	db         *gorm.DB
	users      *database.UserStore
	reports    *database.ReportStore
	tokens     *auth.TokenService
	hub        *realtime.Hub
	dispatcher *notify.Dispatcher
	mail       *recordingMailer
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Connect(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	env := &testEnv{
		db:      db,
		users:   database.NewUserStore(db),
		reports: database.NewReportStore(db),
		tokens:  auth.NewTokenService("test-secret", time.Hour),
		hub:     realtime.NewHub(),
		mail:    &recordingMailer{},
	}
	env.dispatcher = notify.New(env.hub, env.users, env.mail, notify.Options{Timeout: time.Second})

	h := &Handler{
		DB:          db,
		Reports:     env.reports,
		Users:       env.users,
		Tokens:      env.tokens,
		Mailer:      env.mail,
		Notifier:    env.dispatcher,
		Hub:         env.hub,
		FrontendURL: "http://localhost:5173",
		MailTimeout: time.Second,
	}
	env.router = SetupRouter(h, []string{"http://localhost:5173"})
	return env
}

// createUser stores a user directly and returns it with a session token.
func (e *testEnv) createUser(t *testing.T, name, email string, verified, notifications bool, role models.Role) (*models.User, string) {
	t.Helper()
	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)
	u := &models.User{
		Name:        name,
		Email:       email,
		Password:    hash,
		Role:        role,
		IsVerified:  verified,
		Preferences: models.Preferences{EmailNotifications: notifications, ReportUpdates: true},
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	token, err := e.tokens.IssueSession(u.ID)
	require.NoError(t, err)
	return u, token
}

func (e *testEnv) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) waitDispatch(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.dispatcher.Wait(ctx))
}

func (e *testEnv) reportCount(t *testing.T) int64 {
	t.Helper()
	n, err := e.reports.Count(context.Background())
	require.NoError(t, err)
	return n
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

var errSMTPDown = errors.New("smtp down")

func httpRecorder(e *testEnv, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}
