// Package reply decodes and validates the structured JSON answers the agent
// produces in one of six modes.
package reply

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Fallback texts returned to clients when the agent output is unusable.
const (
	UnparsableMessage = "The system could not parse or generate the correct JSON structure."
	IncompleteMessage = "An error occurred while processing your request."
	IncompleteGeneral = "The system returned incomplete JSON (missing 'mode' or 'message')."
)

// Metadata is attached by the gateway to every chat reply.
type Metadata struct {
	Timestamp string `json:"timestamp"`
	SessionID string `json:"sessionId"`
	Model     string `json:"model"`
}

// Payload is a validated agent reply. Keys the agent produced beyond the
// typed fields are kept in Extra and returned to the client unchanged.
type Payload struct {
	Mode           Mode
	Message        string
	GeneralMessage string
	Body           Body
	Extra          map[string]json.RawMessage
	Metadata       *Metadata
}

// Reason classifies a ShapeError.
type Reason int

const (
	// ReasonInvalidJSON means the text is not a JSON object.
	ReasonInvalidJSON Reason = iota
	// ReasonIncomplete means "mode" or "message" is missing.
	ReasonIncomplete
	// ReasonModeFields means the mode is unknown or a required field of the
	// mode is missing.
	ReasonModeFields
)

// ShapeError reports agent output that does not match the reply contract.
type ShapeError struct {
	Reason Reason
	Raw    string
	Err    error

	partial *Payload
}

func (e *ShapeError) Error() string {
	switch e.Reason {
	case ReasonInvalidJSON:
		return fmt.Sprintf("reply is not valid JSON: %v", e.Err)
	case ReasonIncomplete:
		return "reply is missing 'mode' or 'message'"
	default:
		return fmt.Sprintf("reply does not match its mode: %v", e.Err)
	}
}

func (e *ShapeError) Unwrap() error { return e.Err }

var errMissingField = errors.New("missing required field")

func missing(field string) error {
	return fmt.Errorf("%w %q", errMissingField, field)
}

var reserved = map[string]bool{"mode": true, "message": true, "general_message": true, "metadata": true}

// Parse decodes raw agent output. Markdown code fences around the JSON are
// removed first. Any failure is a *ShapeError; pass it to Fallback to get
// the payload to send instead.
func Parse(raw string) (*Payload, error) {
	text := StripFences(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, &ShapeError{Reason: ReasonInvalidJSON, Raw: raw, Err: err}
	}

	var head struct {
		Mode           string `json:"mode"`
		Message        string `json:"message"`
		GeneralMessage string `json:"general_message"`
	}
	if err := json.Unmarshal([]byte(text), &head); err != nil {
		return nil, &ShapeError{Reason: ReasonInvalidJSON, Raw: raw, Err: err}
	}
	if strings.TrimSpace(head.Mode) == "" || head.Message == "" {
		return nil, &ShapeError{Reason: ReasonIncomplete, Raw: raw}
	}

	p := &Payload{
		Message:        head.Message,
		GeneralMessage: head.GeneralMessage,
		Extra:          make(map[string]json.RawMessage),
	}
	for k, v := range fields {
		if !reserved[k] {
			p.Extra[k] = v
		}
	}

	mode, ok := ParseMode(head.Mode)
	if !ok {
		return nil, demoted(raw, p, fmt.Errorf("unknown mode %q", head.Mode))
	}
	body := newBody(mode)
	if err := json.Unmarshal([]byte(text), body); err != nil {
		return nil, demoted(raw, p, err)
	}
	if err := body.validate(); err != nil {
		return nil, demoted(raw, p, fmt.Errorf("%s: %w", mode, err))
	}

	p.Mode = mode
	p.Body = body
	return p, nil
}

func demoted(raw string, p *Payload, err error) *ShapeError {
	p.Mode = ModeGeneral
	p.Body = &General{}
	return &ShapeError{Reason: ReasonModeFields, Raw: raw, Err: err, partial: p}
}

// Fallback returns the GENERAL payload to send when Parse failed with err.
// A reply whose mode could not be honoured keeps its message and extra keys.
func Fallback(err error) *Payload {
	var se *ShapeError
	if !errors.As(err, &se) {
		return NewGeneral(IncompleteMessage, err.Error())
	}
	switch se.Reason {
	case ReasonInvalidJSON:
		return NewGeneral(se.Raw, UnparsableMessage)
	case ReasonIncomplete:
		return NewGeneral(IncompleteMessage, IncompleteGeneral)
	default:
		p := *se.partial
		if p.GeneralMessage == "" {
			p.GeneralMessage = fmt.Sprintf("The system returned a reply that does not match its mode (%v).", se.Err)
		}
		return &p
	}
}

// NewGeneral builds a GENERAL payload.
func NewGeneral(message, generalMessage string) *Payload {
	return &Payload{
		Mode:           ModeGeneral,
		Message:        message,
		GeneralMessage: generalMessage,
		Body:           &General{},
	}
}

// StripFences removes a surrounding ``` or ```json fence.
func StripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	} else {
		return ""
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// MarshalJSON flattens the payload into a single object: extra keys first,
// then the typed body, then the common fields.
func (p Payload) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(p.Extra)+4)
	for k, v := range p.Extra {
		out[k] = v
	}
	if p.Body != nil {
		raw, err := json.Marshal(p.Body)
		if err != nil {
			return nil, err
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
		for k, v := range fields {
			out[k] = v
		}
	}

	mode := p.Mode
	if mode == "" {
		mode = ModeGeneral
	}
	set := func(key string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		out[key] = raw
		return nil
	}
	if err := set("mode", mode); err != nil {
		return nil, err
	}
	if err := set("message", p.Message); err != nil {
		return nil, err
	}
	if p.GeneralMessage != "" {
		if err := set("general_message", p.GeneralMessage); err != nil {
			return nil, err
		}
	}
	if p.Metadata != nil {
		if err := set("metadata", p.Metadata); err != nil {
			return nil, err
		}
	}
	return json.Marshal(out)
}
