// Package chatlog records per-chat transcripts as JSON lines and mirrors
// each entry to the process logger.
package chatlog

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sweetpotato0/agentgate/message"
	"github.com/sweetpotato0/agentgate/pkg/logging"
	"github.com/sweetpotato0/agentgate/session"
)

// Sender identifies who produced an entry.
type Sender string

const (
	SenderUser   Sender = "USER"
	SenderAI     Sender = "AI"
	SenderSystem Sender = "SYSTEM"
)

// Entry statuses.
const (
	StatusSuccess  = "SUCCESS"
	StatusError    = "ERROR"
	StatusComplete = "COMPLETE"
)

// UnknownChat is logged when a failing request carried no chat id.
const UnknownChat = "UNKNOWN"

// Entry is one transcript line.
type Entry struct {
	Timestamp  time.Time      `json:"timestamp"`
	ChatID     string         `json:"chatId"`
	Sender     Sender         `json:"sender"`
	Message    string         `json:"message"`
	Mode       string         `json:"mode,omitempty"`
	Status     string         `json:"status,omitempty"`
	TokenUsage *message.Usage `json:"tokenUsage,omitempty"`
}

// Logger appends entries to a writer. It is safe for concurrent use.
type Logger struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithLogger sets the logger entries are mirrored to.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithNow overrides the timestamp source.
func WithNow(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// Open appends to the file at path, creating it and its directory.
func Open(path string, opts ...Option) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create chat log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open chat log %s: %w", path, err)
	}
	l := New(f, opts...)
	l.closer = f
	return l, nil
}

// New writes entries to w. A nil w only mirrors entries to the logger.
func New(w io.Writer, opts ...Option) *Logger {
	if w == nil {
		w = io.Discard
	}
	l := &Logger{
		w:      w,
		logger: logging.WithComponent("chat"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log records e, stamping it when Timestamp is zero. Write failures are
// reported through the process logger; the transcript is best effort.
func (l *Logger) Log(e Entry) {
	if l == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now().UTC()
	}
	if e.ChatID == "" {
		e.ChatID = UnknownChat
	}

	attrs := []any{"chat_id", e.ChatID, "sender", string(e.Sender)}
	if e.Mode != "" {
		attrs = append(attrs, "mode", e.Mode)
	}
	if e.Status != "" {
		attrs = append(attrs, "status", e.Status)
	}
	if e.TokenUsage != nil {
		attrs = append(attrs,
			"prompt_tokens", e.TokenUsage.PromptTokens,
			"completion_tokens", e.TokenUsage.CompletionTokens,
			"total_tokens", e.TokenUsage.TotalTokens,
		)
	}
	if e.Status == StatusError {
		l.logger.Error(e.Message, attrs...)
	} else {
		l.logger.Info(e.Message, attrs...)
	}

	line, err := json.Marshal(e)
	if err != nil {
		l.logger.Error("failed to encode chat log entry", "chat_id", e.ChatID, "error", err)
		return
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(line); err != nil {
		l.logger.Error("failed to write chat log entry", "chat_id", e.ChatID, "error", err)
	}
}

// User records an inbound user message.
func (l *Logger) User(chatID, msg string) {
	l.Log(Entry{ChatID: chatID, Sender: SenderUser, Message: msg})
}

// System records a gateway event with a status.
func (l *Logger) System(chatID, status, msg string) {
	l.Log(Entry{ChatID: chatID, Sender: SenderSystem, Message: msg, Status: status})
}

// Usage records the token usage of one agent run.
func (l *Logger) Usage(chatID string, usage message.Usage) {
	l.Log(Entry{
		ChatID:     chatID,
		Sender:     SenderAI,
		Message:    fmt.Sprintf("Token Usage: prompt=%d, completion=%d, total=%d", usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens),
		TokenUsage: &usage,
	})
}

// Reply records the final reply returned to the user.
func (l *Logger) Reply(chatID, mode string) {
	l.Log(Entry{
		ChatID:  chatID,
		Sender:  SenderAI,
		Message: "Returning final JSON response to user.",
		Mode:    mode,
		Status:  StatusComplete,
	})
}

// SessionEvent records a session lifecycle transition. It has the shape
// session.WithEventHook expects.
func (l *Logger) SessionEvent(e session.Event) {
	switch e.Type {
	case session.EventQueued:
		l.System(e.SessionID, StatusSuccess, fmt.Sprintf("Session queued at position %d", e.Position))
	case session.EventPromoted:
		l.System(e.SessionID, StatusSuccess, "Queued session promoted to active")
	case session.EventPromotionFailed:
		l.System(e.SessionID, StatusError, fmt.Sprintf("Failed to process queued session: %v", e.Err))
	case session.EventExpired:
		l.System(e.SessionID, StatusSuccess, "Session closed after inactivity")
	}
}

// Close closes the underlying file, if Open created one.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closer.Close()
}
