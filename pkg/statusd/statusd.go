package statusd

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"kiosk-firmware/pkg/display"
	"kiosk-firmware/pkg/globals"
	"kiosk-firmware/pkg/logger"
	"kiosk-firmware/pkg/updater"

	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
)

// Server is a localhost-only diagnostics endpoint: a health snapshot and a
// websocket feed mirroring every status message. It is passive; nothing here
// can trigger an update.
type Server struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	srv     *http.Server
}

type statusMessage struct {
	Time string `json:"time"`
	Msg  string `json:"msg"`
}

var upgrader = websocket.Upgrader{
	// Local loopback clients only; the listener is bound to 127.0.0.1.
	CheckOrigin: func(r *http.Request) bool { return true },
}

var instance *Server
var once sync.Once

func Init() {
	once.Do(func() {
		instance = &Server{clients: make(map[*websocket.Conn]bool)}
	})
}

func Get() *Server {
	if instance == nil {
		panic("statusd not initialized - call Init() first")
	}
	return instance
}

// Start serves /health and /status on the loopback address.
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/logs", s.handleLogs)

	s.srv = &http.Server{Addr: globals.StatusAddr, Handler: mux}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[statusd] Server stopped: %v", err)
		}
	}()
	log.Printf("[statusd] Listening on %s", globals.StatusAddr)
}

// Stop shuts the listener down and drops all feed clients.
func (s *Server) Stop() {
	if s.srv != nil {
		s.srv.Close()
	}
	s.mu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[*websocket.Conn]bool)
	s.mu.Unlock()
}

// DisplayStatus broadcasts a status message to all feed clients. Satisfies
// the updater's status sink.
func (s *Server) DisplayStatus(message string) {
	payload := statusMessage{
		Time: time.Now().Format(time.RFC3339),
		Msg:  message,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteJSON(payload); err != nil {
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[statusd] Upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	// Drain (and discard) client frames so pings are answered and closes
	// are noticed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.mu.Lock()
				delete(s.clients, conn)
				s.mu.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type health struct {
		Version     string  `json:"version"`
		UptimeSecs  uint64  `json:"uptime_secs"`
		UpdateState string  `json:"update_state"`
		LastUpdate  string  `json:"last_update_outcome"`
		Showing     string  `json:"showing"`
		DiskUsedPct float64 `json:"disk_used_pct"`
	}

	h := health{
		Version:     globals.FirmwareVersion,
		UpdateState: string(updater.Get().State()),
		LastUpdate:  updater.Get().LastOutcome(),
		Showing:     display.Get().Current(),
	}
	if uptime, err := host.Uptime(); err == nil {
		h.UptimeSecs = uptime
	}
	if usage, err := disk.Usage(globals.AppRoot); err == nil {
		h.DiskUsedPct = usage.UsedPercent
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	n := 100
	if v := r.URL.Query().Get("n"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(logger.Tail(n))
}
