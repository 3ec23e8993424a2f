package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sweetpotato0/agentgate/chatlog"
	errorskg "github.com/sweetpotato0/agentgate/errors"
	"github.com/sweetpotato0/agentgate/middleware"
	"github.com/sweetpotato0/agentgate/reply"
	"github.com/sweetpotato0/agentgate/session"
)

// Client-facing messages.
const (
	MsgMissingChatID      = "Missing 'chatId' in request body."
	MsgMissingUserMessage = "Missing 'userMessage' in request body."
	MsgChatIDInUse        = "That chatId is already in use."
	MsgInvalidBody        = "Invalid JSON in request body."
	MsgRunning            = "Server is running."
)

// isoMillis matches JavaScript's Date.toISOString output.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type (
	// StartChatRequest is the body of POST /api/start-chat.
	StartChatRequest struct {
		ChatID string `json:"chatId"`
	}

	// ChatRequest is the body of POST /api/chat.
	ChatRequest struct {
		ChatID      string `json:"chatId"`
		UserMessage string `json:"userMessage"`
	}

	// MessageResponse carries a status message, plus the queue position
	// when the session was queued.
	MessageResponse struct {
		Message  string `json:"message"`
		Position int    `json:"position,omitempty"`
	}

	// ErrorResponse is the body of every non-chat error.
	ErrorResponse struct {
		Error string `json:"error"`
	}

	// QueueStatusResponse lists the wait queue in FIFO order.
	QueueStatusResponse struct {
		Queued []session.QueueEntry `json:"queued"`
	}

	// SessionStatusResponse lists the active session ids.
	SessionStatusResponse struct {
		ActiveSessions []string `json:"activeSessions"`
	}
)

func (s *Server) handleStartChat(w http.ResponseWriter, r *http.Request) {
	var req StartChatRequest
	if !s.decode(w, r, &req) {
		return
	}
	id := strings.TrimSpace(req.ChatID)
	if id == "" {
		s.writeError(w, http.StatusBadRequest, MsgMissingChatID)
		return
	}

	adm, err := s.sessions.Start(r.Context(), id)
	if err != nil {
		if errors.Is(err, errorskg.ErrAlreadyExists) {
			s.writeError(w, http.StatusBadRequest, MsgChatIDInUse)
			return
		}
		s.chats.System(id, chatlog.StatusError, fmt.Sprintf("Error: %v", err))
		s.logger.Error("start-chat failed", "id", id, "error", err)
		s.writeError(w, statusFor(err), err.Error())
		return
	}

	if adm.Outcome == session.OutcomeQueued {
		s.writeJSON(w, http.StatusOK, s.queuedResponse(adm))
		return
	}
	s.chats.System(id, chatlog.StatusSuccess, "New chat session started")
	s.writeJSON(w, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("Session [%s] created successfully!", id),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !s.decode(w, r, &req) {
		return
	}
	id := strings.TrimSpace(req.ChatID)
	if id == "" {
		s.writeError(w, http.StatusBadRequest, MsgMissingChatID)
		return
	}
	if strings.TrimSpace(req.UserMessage) == "" {
		s.writeError(w, http.StatusBadRequest, MsgMissingUserMessage)
		return
	}

	s.chats.User(id, req.UserMessage)

	adm, err := s.sessions.Admit(r.Context(), id)
	if err != nil {
		s.chatFailed(w, id, err)
		return
	}
	switch adm.Outcome {
	case session.OutcomeQueued:
		s.writeJSON(w, http.StatusOK, s.queuedResponse(adm))
		return
	case session.OutcomeCreated:
		s.chats.System(id, chatlog.StatusSuccess, "Created new chat session automatically for /api/chat request")
	}

	sess := adm.Session
	input, err := s.prompts.ChatPrompt(truncate(req.UserMessage, s.cfg.MaxMessageChars))
	if err != nil {
		s.chatFailed(w, id, err)
		return
	}

	result, err := sess.Agent.Run(r.Context(), sess.Config, input)
	// The run itself counts as activity.
	s.sessions.Touch(id)
	if err != nil {
		s.chatFailed(w, id, err)
		return
	}
	if !result.Usage.IsZero() {
		s.chats.Usage(id, result.Usage)
	}

	payload, err := reply.Parse(result.Content)
	if err != nil {
		s.logShapeError(id, err)
		payload = reply.Fallback(err)
	}

	model := result.Model
	if model == "" {
		model = sess.Model
	}
	payload.Metadata = &reply.Metadata{
		Timestamp: s.now().UTC().Format(isoMillis),
		SessionID: id,
		Model:     model,
	}

	s.chats.Reply(id, string(payload.Mode))
	s.writeJSON(w, http.StatusOK, payload)
}

// chatFailed answers a failed chat request. Server-side failures keep the
// GENERAL reply shape so clients can render them like any other answer.
func (s *Server) chatFailed(w http.ResponseWriter, id string, err error) {
	s.chats.System(id, chatlog.StatusError, fmt.Sprintf("Error: %v", err))

	status := statusFor(err)
	if status != http.StatusInternalServerError {
		s.writeError(w, status, err.Error())
		return
	}
	s.logger.Error("chat failed", "id", id, "error", err)
	s.writeJSON(w, status, reply.NewGeneral(reply.IncompleteMessage, err.Error()))
}

func (s *Server) logShapeError(id string, err error) {
	var se *reply.ShapeError
	if !errors.As(err, &se) {
		s.chats.System(id, chatlog.StatusError, fmt.Sprintf("Error: %v", err))
		return
	}
	switch se.Reason {
	case reply.ReasonInvalidJSON:
		s.chats.System(id, chatlog.StatusError,
			"Failed to parse agent response as JSON. Returning fallback.\n\nResponse:\n"+se.Raw)
	case reply.ReasonIncomplete:
		s.chats.System(id, chatlog.StatusError, "Agent response missing required keys. Returning fallback.")
	default:
		s.chats.System(id, chatlog.StatusError, fmt.Sprintf("Agent response does not match its mode: %v", se.Err))
	}
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	queued := s.sessions.Queued()
	if queued == nil {
		queued = []session.QueueEntry{}
	}
	s.writeJSON(w, http.StatusOK, QueueStatusResponse{Queued: queued})
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	active := s.sessions.ActiveSessions()
	if active == nil {
		active = []string{}
	}
	s.writeJSON(w, http.StatusOK, SessionStatusResponse{ActiveSessions: active})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.sessions.Stats())
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(MsgRunning))
}

func (s *Server) queuedResponse(adm session.Admission) MessageResponse {
	return MessageResponse{
		Message:  fmt.Sprintf("Queue is full (%d). Your request has been queued.", s.sessions.Stats().MaxActive),
		Position: adm.Position,
	}
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	// Agent creation failures are server-side whatever their cause.
	var fe *session.FactoryError
	if errors.As(err, &fe) {
		return http.StatusInternalServerError
	}
	switch {
	case errors.Is(err, errorskg.ErrInvalidInput), errors.Is(err, errorskg.ErrAlreadyExists):
		return http.StatusBadRequest
	case errors.Is(err, errorskg.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errorskg.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decode reads the JSON body into v, writing the error response itself on
// failure. An empty body decodes as an empty object.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	s.writeError(w, http.StatusBadRequest, MsgInvalidBody)
	return false
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	middleware.WriteJSON(w, status, v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	middleware.WriteJSON(w, status, ErrorResponse{Error: message})
}
