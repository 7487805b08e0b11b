package statusd

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiosk-firmware/pkg/display"
	"kiosk-firmware/pkg/globals"
	"kiosk-firmware/pkg/logger"
	"kiosk-firmware/pkg/updater"

	"github.com/gorilla/websocket"
)

type stubMedia struct{}

func (stubMedia) Locate() (string, bool)            { return "", false }
func (stubMedia) Unmount(string) bool               { return true }
func (stubMedia) FindPackage(string) (string, bool) { return "", false }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	updater.Init(stubMedia{})
	display.Init()
	return &Server{clients: make(map[*websocket.Conn]bool)}
}

func TestHealthSnapshot(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, globals.FirmwareVersion, payload["version"])
	assert.Equal(t, string(updater.StateIdle), payload["update_state"])
}

func TestLogsEndpoint(t *testing.T) {
	s := newTestServer(t)

	orig := globals.LogsPath
	globals.LogsPath = filepath.Join(t.TempDir(), "logs.json")
	defer func() { globals.LogsPath = orig }()
	logger.Init()
	log.Print("logs endpoint smoke entry")

	rec := httptest.NewRecorder()
	s.handleLogs(rec, httptest.NewRequest(http.MethodGet, "/logs?n=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var entries []logger.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.NotEmpty(t, entries)
	assert.Contains(t, entries[len(entries)-1].Msg, "logs endpoint smoke entry")
}

func TestStatusFeedBroadcast(t *testing.T) {
	s := newTestServer(t)

	srv := httptest.NewServer(http.HandlerFunc(s.handleStatus))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/status"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the server a beat to register the client.
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.clients) == 1
	}, time.Second, 10*time.Millisecond)

	s.DisplayStatus("Backing up current configuration and assets...")

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg statusMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "Backing up current configuration and assets...", msg.Msg)
	assert.NotEmpty(t, msg.Time)
}

func TestBroadcastDropsDeadClients(t *testing.T) {
	s := newTestServer(t)

	srv := httptest.NewServer(http.HandlerFunc(s.handleStatus))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/status"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.clients) == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		s.DisplayStatus("ping")
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.clients) == 0
	}, time.Second, 10*time.Millisecond)
}
