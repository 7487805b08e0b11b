package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiosk-firmware/pkg/globals"
)

func TestJournalPersistsEntries(t *testing.T) {
	orig := globals.LogsPath
	globals.LogsPath = filepath.Join(t.TempDir(), "logs.json")
	defer func() { globals.LogsPath = orig }()

	jo := &journal{}
	n, err := jo.Write([]byte("first message\n"))
	require.NoError(t, err)
	assert.Equal(t, len("first message\n"), n)
	jo.Write([]byte("second message\n"))

	// Persisted entries survive a reload; trailing newlines are stripped.
	loaded := load()
	require.Len(t, loaded, 2)
	assert.Equal(t, "first message", loaded[0].Msg)
	assert.Equal(t, "second message", loaded[1].Msg)
	assert.NotEmpty(t, loaded[0].Time)
}

func TestJournalCapsEntries(t *testing.T) {
	orig := globals.LogsPath
	globals.LogsPath = filepath.Join(t.TempDir(), "logs.json")
	defer func() { globals.LogsPath = orig }()

	jo := &journal{}
	for i := 0; i < maxEntries+10; i++ {
		jo.Write([]byte("msg\n"))
	}
	assert.Len(t, jo.entries, maxEntries)
}

func TestTail(t *testing.T) {
	defer func() { j = nil }()
	j = &journal{entries: []Entry{
		{Time: "t1", Msg: "one"},
		{Time: "t2", Msg: "two"},
		{Time: "t3", Msg: "three"},
	}}

	tail := Tail(2)
	require.Len(t, tail, 2)
	assert.Equal(t, "two", tail[0].Msg)
	assert.Equal(t, "three", tail[1].Msg)

	assert.Len(t, Tail(0), 3)
	assert.Len(t, Tail(10), 3)

	j = nil
	assert.Empty(t, Tail(5))
}
