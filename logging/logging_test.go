package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("warn", "json", &buf)
	t.Cleanup(func() { Init("info", "json") })

	Info().Msg("hidden")
	Warn().Str("k", "v").Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"k":"v"`)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("debug", "json", &buf)
	t.Cleanup(func() { Init("info", "json") })

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/missing", func(c *gin.Context) {
		c.Set("user_id", "u-1")
		c.Status(http.StatusNotFound)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/missing", nil)
	r.ServeHTTP(w, req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "/missing", line["path"])
	assert.Equal(t, float64(404), line["status"])
	assert.Equal(t, "u-1", line["user_id"])
}
