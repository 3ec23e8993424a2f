package chatlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sweetpotato0/agentgate/message"
	"github.com/sweetpotato0/agentgate/pkg/logging"
	"github.com/sweetpotato0/agentgate/session"
)

var fixed = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func decodeLines(t *testing.T, data []byte) []Entry {
	t.Helper()
	var out []Entry
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		out = append(out, e)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestLogWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, WithLogger(logging.Discard()), WithNow(func() time.Time { return fixed }))

	l.User("chat-1", "hello")
	l.System("chat-1", StatusSuccess, "New chat session started")
	l.Usage("chat-1", message.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})
	l.Reply("chat-1", "GENERAL")
	l.System("", StatusError, "Error: boom")

	entries := decodeLines(t, buf.Bytes())
	require.Len(t, entries, 5)

	assert.True(t, fixed.Equal(entries[0].Timestamp))
	assert.Equal(t, "chat-1", entries[0].ChatID)
	assert.Equal(t, SenderUser, entries[0].Sender)
	assert.Equal(t, "hello", entries[0].Message)
	assert.Nil(t, entries[0].TokenUsage)
	assert.Equal(t, StatusSuccess, entries[1].Status)
	assert.Equal(t, SenderSystem, entries[1].Sender)

	require.NotNil(t, entries[2].TokenUsage)
	assert.Equal(t, int64(15), entries[2].TokenUsage.TotalTokens)
	assert.Equal(t, "Token Usage: prompt=10, completion=5, total=15", entries[2].Message)

	assert.Equal(t, "GENERAL", entries[3].Mode)
	assert.Equal(t, StatusComplete, entries[3].Status)

	assert.Equal(t, UnknownChat, entries[4].ChatID)
}

func TestLogMirrorsToLogger(t *testing.T) {
	var logs bytes.Buffer
	l := New(nil, WithLogger(logging.New(&logs, "json", "info")))

	l.System("chat-9", StatusError, "factory failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "factory failed", entry["msg"])
	assert.Equal(t, "chat-9", entry["chat_id"])
	assert.Equal(t, "SYSTEM", entry["sender"])
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "nested", "chat.log")

	l, err := Open(path, WithLogger(logging.Discard()))
	require.NoError(t, err)
	l.User("a", "first")
	require.NoError(t, l.Close())

	l, err = Open(path, WithLogger(logging.Discard()))
	require.NoError(t, err)
	l.User("a", "second")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	entries := decodeLines(t, data)
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Message)
	assert.Equal(t, "second", entries[1].Message)
}

func TestConcurrentWritesKeepLinesIntact(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, WithLogger(logging.Discard()))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.User("c", "message")
		}()
	}
	wg.Wait()

	assert.Len(t, decodeLines(t, buf.Bytes()), 20)
}

func TestNilLoggerIsNoop(t *testing.T) {
	var l *Logger
	l.User("a", "b")
	assert.NoError(t, l.Close())
}

func TestSessionEvent(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, WithLogger(logging.Discard()))

	l.SessionEvent(session.Event{Type: session.EventQueued, SessionID: "q", Position: 3})
	l.SessionEvent(session.Event{Type: session.EventPromoted, SessionID: "q"})
	l.SessionEvent(session.Event{Type: session.EventPromotionFailed, SessionID: "r", Err: errors.New("no key")})
	l.SessionEvent(session.Event{Type: session.EventExpired, SessionID: "q"})
	l.SessionEvent(session.Event{Type: session.EventCreated, SessionID: "s"})

	entries := decodeLines(t, buf.Bytes())
	require.Len(t, entries, 4)
	assert.Equal(t, "Session queued at position 3", entries[0].Message)
	assert.Equal(t, "Queued session promoted to active", entries[1].Message)
	assert.Equal(t, StatusError, entries[2].Status)
	assert.Contains(t, entries[2].Message, "no key")
	assert.Equal(t, "r", entries[2].ChatID)
	assert.Equal(t, "Session closed after inactivity", entries[3].Message)
}
