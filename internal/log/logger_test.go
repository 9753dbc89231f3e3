package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nope"))
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Output: &buf}).WithComponent(ComponentAPI)
	l.Info("hello", FieldPage, 2)

	out := buf.String()
	assert.Contains(t, out, `"component":"api"`)
	assert.Contains(t, out, `"page":2`)
}

func TestContextCarriesLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: slog.LevelDebug, Output: &buf}).With(FieldRequestID, "req_1")

	got := FromContext(NewContext(context.Background(), base))
	got.Info("inside")
	assert.Contains(t, buf.String(), "request_id=req_1")
}

func TestFromContextFallback(t *testing.T) {
	l := FromContext(context.Background())
	assert.Equal(t, "unknown", l.Component())
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	ctx := NewContext(context.Background(), New(Config{Output: &buf}))
	LogError(ctx, "boom", errors.New("bad"), ComponentExpense, OpDelete, NewFields().WithFilter("", "06"))

	out := buf.String()
	assert.Contains(t, out, "component=expense")
	assert.Contains(t, out, "operation=delete")
	assert.Contains(t, out, "error=bad")
	assert.Contains(t, out, "year=all")
	assert.Contains(t, out, "month=06")
}
