package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/DoyleJ11/element-battle-backend/internal/elements"
	pt "github.com/DoyleJ11/element-battle-backend/pkg/types"
)

const (
	MaxNameLen        = 32
	MaxCodeLen        = 16
	MaxDescriptionLen = 500
	MaxImageRefLen    = 2048
	MaxElements       = 4
)

var ErrUnknownType = errors.New("unknown message type")

type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ServerMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewServerMessage marshals payload into a typed envelope.
func NewServerMessage(msgType string, payload any) (ServerMessage, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return ServerMessage{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return ServerMessage{Type: msgType, Payload: b}, nil
}

func ErrorFrame(message string) ServerMessage {
	b, _ := json.Marshal(pt.ErrorMessage{Message: message})
	return ServerMessage{Type: pt.EventErrorMessage, Payload: b}
}

// ValidationError reports a malformed inbound event.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ParseClientMessage decodes a raw frame into one of the inbound variants and
// validates its shape.
func ParseClientMessage(data []byte) (pt.Inbound, error) {
	var cm ClientMessage
	if err := json.Unmarshal(data, &cm); err != nil {
		return nil, invalid("message", "bad json")
	}

	var target pt.Inbound
	switch cm.Type {
	case pt.EventCreateRoom:
		target = &pt.CreateRoom{}
	case pt.EventJoinRoom:
		target = &pt.JoinRoom{}
	case pt.EventStartGame:
		target = &pt.StartGame{}
	case pt.EventPlayerChoice:
		target = &pt.PlayerChoice{}
	case pt.EventRequestNextRound:
		target = &pt.RequestNextRound{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cm.Type)
	}

	if len(cm.Payload) > 0 {
		if err := json.Unmarshal(cm.Payload, target); err != nil {
			return nil, invalid("payload", "bad json")
		}
	}
	return validate(target)
}

func validate(in pt.Inbound) (pt.Inbound, error) {
	switch m := in.(type) {
	case *pt.CreateRoom:
		name, err := displayName(m.DisplayName)
		if err != nil {
			return nil, err
		}
		return pt.CreateRoom{DisplayName: name}, nil

	case *pt.JoinRoom:
		name, err := displayName(m.DisplayName)
		if err != nil {
			return nil, err
		}
		code, err := roomCode(m.RoomCode)
		if err != nil {
			return nil, err
		}
		return pt.JoinRoom{DisplayName: name, RoomCode: code}, nil

	case *pt.StartGame:
		code, err := roomCode(m.RoomCode)
		if err != nil {
			return nil, err
		}
		return pt.StartGame{RoomCode: code}, nil

	case *pt.RequestNextRound:
		code, err := roomCode(m.RoomCode)
		if err != nil {
			return nil, err
		}
		return pt.RequestNextRound{RoomCode: code}, nil

	case *pt.PlayerChoice:
		code, err := roomCode(m.RoomCode)
		if err != nil {
			return nil, err
		}
		if len(m.Elements) == 0 || len(m.Elements) > MaxElements {
			return nil, invalid("elements", fmt.Sprintf("expected 1 to %d elements", MaxElements))
		}
		for _, e := range m.Elements {
			if !elements.Valid(elements.Element(e)) {
				return nil, invalid("elements", fmt.Sprintf("unknown element %q", e))
			}
		}
		if utf8.RuneCountInString(m.Description) > MaxDescriptionLen {
			return nil, invalid("description", "too long")
		}
		if len(m.ImageRef) > MaxImageRefLen {
			return nil, invalid("imageRef", "too long")
		}
		return pt.PlayerChoice{
			RoomCode:    code,
			Elements:    m.Elements,
			Description: strings.TrimSpace(m.Description),
			ImageRef:    m.ImageRef,
		}, nil
	}
	return nil, ErrUnknownType
}

func displayName(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", invalid("displayName", "required")
	}
	if utf8.RuneCountInString(s) > MaxNameLen {
		return "", invalid("displayName", "too long")
	}
	return s, nil
}

func roomCode(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", invalid("roomCode", "required")
	}
	if len(s) > MaxCodeLen {
		return "", invalid("roomCode", "too long")
	}
	return s, nil
}
