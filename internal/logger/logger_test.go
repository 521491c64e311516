package logger

import (
	"bytes"
	"errors"
	"log"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })
	return &buf
}

func TestFormatFieldsSorted(t *testing.T) {
	got := formatFields(Fields{"style": "techno", "bpm": 128, "energy": 0.6, "ms": int64(12)})
	assert.Equal(t, "{bpm=128, energy=0.60, ms=12, style=techno}", got)
	assert.Equal(t, "", formatFields(nil))
}

func TestLevels(t *testing.T) {
	buf := captureLog(t)

	Info("hello", Fields{"a": 1})
	Warn("careful", nil)
	Debug("details", Fields{"b": "x"})
	Error("boom", errors.New("disk full"), Fields{"stage": "persistence"})

	out := buf.String()
	assert.Contains(t, out, "[INFO] hello {a=1}")
	assert.Contains(t, out, "[WARN] careful")
	assert.Contains(t, out, "[DEBUG] details {b=x}")
	assert.Contains(t, out, "[ERROR] boom: disk full {stage=persistence}")
}

func TestWithContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/api/ai/generate", nil)
	c.Set("request_id", "req-1")

	f := WithContext(c)
	assert.Equal(t, "req-1", f["request_id"])
	assert.Equal(t, "POST", f["method"])
	assert.Equal(t, "/api/ai/generate", f["path"])
}
