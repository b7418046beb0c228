package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newTestNetworkLogger(t *testing.T, maxSize int64) *NetworkLogger {
	t.Helper()
	nl, err := NewNetworkLogger("0", filepath.Join(t.TempDir(), "stream.txt"), maxSize)
	require.NoError(t, err)
	t.Cleanup(func() { nl.Stop() })
	return nl
}

func TestNetworkLoggerHistory(t *testing.T) {
	nl := newTestNetworkLogger(t, logStreamMaxSize)

	for _, line := range []string{"first\n", "second\n", "  third  "} {
		_, err := nl.Write([]byte(line))
		require.NoError(t, err)
	}
	require.NoError(t, nl.Sync())

	rec := httptest.NewRecorder()
	nl.handleHistory(rec, httptest.NewRequest(http.MethodGet, "/logs/history", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "first\nsecond\nthird", rec.Body.String())
}

func TestNetworkLoggerBroadcast(t *testing.T) {
	nl := newTestNetworkLogger(t, logStreamMaxSize)

	client := nl.addClient()
	nl.Write([]byte("hello"))
	assert.Equal(t, "hello", <-client)

	nl.removeClient(client)
	_, open := <-client
	assert.False(t, open)
	nl.Write([]byte("nobody listening"))
}

func TestSSEEventKeepsMultilineEntryTogether(t *testing.T) {
	assert.Equal(t, "data: hello\n\n", sseEvent("hello"))
	assert.Equal(t, "data: hello\n\n", sseEvent("hello\n"))

	entry := "ERROR\tboom\ngoroutine 1 [running]:\r\nmain.main()\n"
	assert.Equal(t, "data: ERROR\tboom\ndata: goroutine 1 [running]:\ndata: main.main()\n\n", sseEvent(entry))

	for _, line := range strings.Split(strings.TrimSuffix(sseEvent(entry), "\n\n"), "\n") {
		assert.True(t, strings.HasPrefix(line, "data: "), line)
	}
}

func TestNetworkLoggerRotates(t *testing.T) {
	nl := newTestNetworkLogger(t, 10)

	nl.Write([]byte(strings.Repeat("x", 20)))
	nl.Write([]byte("after rotation"))
	require.NoError(t, nl.Sync())

	backup, err := os.ReadFile(nl.path + ".backup")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 20)+"\n", string(backup))

	current, err := os.ReadFile(nl.path)
	require.NoError(t, err)
	assert.Equal(t, "after rotation\n", string(current))
}

func TestNetworkLoggerAsZapSink(t *testing.T) {
	nl := newTestNetworkLogger(t, logStreamMaxSize)

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), nl, zapcore.InfoLevel)
	logger := zap.New(core).Named("warns")
	logger.Info("user warned", zap.Int64("chat_id", -100))
	logger.Debug("dropped")
	require.NoError(t, logger.Sync())

	f, err := os.Open(nl.path)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "user warned")
	assert.Contains(t, out, `"chat_id": -100`)
	assert.NotContains(t, out, "dropped")
}
