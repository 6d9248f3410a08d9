package log

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitWithFileWritesRotatedLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signalcontrol.log")
	require.NoError(t, InitWithFile(false, FileOptions{Path: path}))

	GetSugaredLogger().Infow("cycle computed", "active", "North")
	Errorf("feed unreachable: %s", "timeout")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cycle computed")
	assert.Contains(t, string(data), `"active":"North"`)
	assert.Contains(t, string(data), "feed unreachable: timeout")
}

func TestHTTPMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel zapcore.Level
	}{
		{name: "ok is debug", status: http.StatusOK, wantLevel: zapcore.DebugLevel},
		{name: "bad request is debug", status: http.StatusBadRequest, wantLevel: zapcore.DebugLevel},
		{name: "server error is error", status: http.StatusServiceUnavailable, wantLevel: zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			logger := zap.New(core).Sugar()

			handler := HTTPMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("hello"))
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cycle", nil))

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, tt.wantLevel, entry.Level)
			fields := entry.ContextMap()
			assert.Equal(t, "/api/cycle", fields["path"])
			assert.EqualValues(t, tt.status, fields["status"])
			assert.EqualValues(t, 5, fields["size"])
		})
	}
}
