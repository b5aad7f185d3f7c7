package logger_test

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionstore/pkg/logger"
)

func TestError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Attr{}, logger.Error(nil), "nil error yields empty attr")

	attr := logger.Error(errors.New("boom"))
	assert.Equal(t, "error", attr.Key)
}

func TestSessionKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Attr{}, logger.SessionKey(""), "empty key yields empty attr")

	attr := logger.SessionKey("cust-42")
	assert.Equal(t, "session_key", attr.Key)
	assert.Equal(t, "cust-42", attr.Value.String())
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json output carries attrs", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithAttr(logger.Component("session")),
		)

		log.Info("session saved", logger.SessionKey("cust-42"))

		out := buf.String()
		require.NotEmpty(t, out)
		assert.Contains(t, out, `"component":"session"`)
		assert.Contains(t, out, `"session_key":"cust-42"`)
	})

	t.Run("level filters records", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithOutput(&buf), logger.WithLevel(slog.LevelWarn))

		log.Info("dropped")
		log.Warn("kept")

		assert.NotContains(t, buf.String(), "dropped")
		assert.Contains(t, buf.String(), "kept")
	})

	t.Run("text format", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithOutput(&buf), logger.WithFormat(logger.FormatText))

		log.Info("hello")
		assert.True(t, strings.Contains(buf.String(), "msg=hello"))
	})
}
