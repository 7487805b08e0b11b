package logger

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"kiosk-firmware/pkg/globals"
)

// The journal keeps the most recent log entries in memory and mirrors them to
// a JSON file under the firmware data dir, so a unit in the field can be
// diagnosed after the fact through the local status endpoint.

const maxEntries = 500

type Entry struct {
	Time string `json:"time"`
	Msg  string `json:"msg"`
}

type journal struct {
	mu      sync.Mutex
	entries []Entry
}

var j *journal

// Init routes the std log package to stdout and the persisted journal.
func Init() {
	os.MkdirAll(filepath.Dir(globals.LogsPath), 0755)
	j = &journal{entries: load()}
	log.SetOutput(io.MultiWriter(os.Stdout, j))
}

func (jo *journal) Write(p []byte) (int, error) {
	jo.mu.Lock()
	defer jo.mu.Unlock()

	jo.entries = append(jo.entries, Entry{
		Time: time.Now().Format(time.RFC3339),
		Msg:  strings.TrimRight(string(p), "\n"),
	})
	if n := len(jo.entries) - maxEntries; n > 0 {
		jo.entries = jo.entries[n:]
	}

	persist(jo.entries)
	return len(p), nil
}

// Tail returns the most recent n journal entries, oldest first. n <= 0 means
// all of them.
func Tail(n int) []Entry {
	if j == nil {
		return []Entry{}
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if n <= 0 || n > len(j.entries) {
		n = len(j.entries)
	}
	return append([]Entry{}, j.entries[len(j.entries)-n:]...)
}

func load() []Entry {
	data, err := os.ReadFile(globals.LogsPath)
	if err != nil {
		return []Entry{}
	}
	var entries []Entry
	json.Unmarshal(data, &entries)
	return entries
}

func persist(entries []Entry) {
	data, _ := json.Marshal(entries)
	os.WriteFile(globals.LogsPath, data, 0644)
}
