package logging

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func newTestLogger(t *testing.T, level zapcore.Level) (Logger, *zaptest.Buffer) {
	t.Helper()
	buf := &zaptest.Buffer{}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), buf, level)
	return NewLoggerFromCore(core), buf
}

func decodeLines(t *testing.T, buf *zaptest.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range buf.Lines() {
		m := map[string]interface{}{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		l, err := NewLogger(LogConfig{Level: LevelInfo, Format: format, OutputPaths: []string{"stdout"}})
		require.NoError(t, err)
		assert.NotNil(t, l)
	}
}

func TestNewLogger_EmptyOutputPaths(t *testing.T) {
	l, err := NewLogger(LogConfig{OutputPaths: []string{}})
	assert.Error(t, err)
	assert.Nil(t, l)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("bogus"))
}

func TestZapLogger_TypedFields(t *testing.T) {
	l, buf := newTestLogger(t, zapcore.DebugLevel)

	l.Info("resolved compound",
		String("compound", "caffeine"),
		Int("atoms", 24),
		Float64("mw", 194.19),
		Bool("cached", false),
		Duration("took", 15*time.Millisecond),
		Strings("synonyms", []string{"guaranine", "theine"}),
		Err(errors.New("boom")),
	)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	entry := lines[0]
	assert.Equal(t, "resolved compound", entry["msg"])
	assert.Equal(t, "caffeine", entry["compound"])
	assert.EqualValues(t, 24, entry["atoms"])
	assert.Equal(t, 194.19, entry["mw"])
	assert.Equal(t, false, entry["cached"])
	assert.Equal(t, "boom", entry["error"])
}

func TestZapLogger_LevelFiltering(t *testing.T) {
	l, buf := newTestLogger(t, zapcore.WarnLevel)
	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.Error("shown")
	assert.Len(t, buf.Lines(), 2)
}

func TestZapLogger_WithAndNamed(t *testing.T) {
	l, buf := newTestLogger(t, zapcore.DebugLevel)
	child := l.Named("analysis").With(String("request_id", "r-1"))
	child.Info("hello")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "r-1", lines[0]["request_id"])
	assert.Equal(t, "analysis", lines[0]["logger"])
}

func TestNopLogger_AllMethodsNoOp(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.Debug("msg")
		l.Info("msg")
		l.Warn("msg")
		l.Error("msg")
		l.With(String("k", "v")).Named("x").Info("msg")
	})
}

func TestDefault_SetAndGet(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	l, buf := newTestLogger(t, zapcore.DebugLevel)
	SetDefault(nil)
	assert.Equal(t, prev, Default())

	SetDefault(l)
	Default().Info("via default")
	assert.True(t, strings.Contains(buf.String(), "via default"))
}

func TestContextLogger(t *testing.T) {
	l, buf := newTestLogger(t, zapcore.DebugLevel)
	ctx := NewContext(context.Background(), l)
	FromContext(ctx).Info("from ctx")
	assert.Len(t, buf.Lines(), 1)

	assert.NotNil(t, FromContext(context.Background()))
}
