package relay

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/practicelab/relay/internal/store"
)

// Client-to-relay message types.
const (
	TypeCompleteAudio  = "completeAudio"
	TypeCancelResponse = "cancelResponse"
	TypeUserMessage    = "userMessage"
	TypeEndSession     = "endSession"
)

// Relay-to-client message types.
const (
	TypeUserTextDelta       = "userTextDelta"
	TypeAssistantTextDelta  = "assistantTextDelta"
	TypeAssistantAudioDelta = "assistantAudioDelta"
	TypeAssistantAudioDone  = "assistantAudioDone"
	TypeFeedback            = "feedback"
	TypeSessionEnded        = "sessionEnded"
)

// DecodeError describes a client frame that could not be decoded.
type DecodeError struct {
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if e.Param == "" {
		return e.Message
	}
	return e.Message + " (" + e.Param + ")"
}

func badFrame(msg, param string) error {
	return &DecodeError{Message: msg, Param: param}
}

// DecodeClientMessage turns one text frame into a session event.
func DecodeClientMessage(data []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badFrame("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badFrame("missing type", "type")
	}

	switch typ {
	case TypeCompleteAudio:
		var msg struct {
			Audio string `json:"audio"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid completeAudio", "")
		}
		if msg.Audio == "" {
			return nil, badFrame("completeAudio.audio is required", "audio")
		}
		raw, err := base64.StdEncoding.DecodeString(msg.Audio)
		if err != nil {
			return nil, badFrame("completeAudio.audio is not base64", "audio")
		}
		return CompleteAudio{Audio: raw}, nil
	case TypeCancelResponse:
		var msg struct {
			TrackID string  `json:"trackId"`
			Offset  float64 `json:"offset"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid cancelResponse", "")
		}
		return CancelResponse{TrackID: msg.TrackID, Offset: msg.Offset}, nil
	case TypeUserMessage:
		var msg struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid userMessage", "")
		}
		return UserMessage{Text: msg.Text}, nil
	case TypeEndSession:
		return EndSession{}, nil
	default:
		return nil, badFrame("unsupported message type", typ)
	}
}

// DecodeBinaryFrame treats a binary frame as a complete utterance.
func DecodeBinaryFrame(data []byte) Event {
	return CompleteAudio{Audio: data}
}

// DeltaMessage is a streamed text or audio fragment for one item.
type DeltaMessage struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Delta string `json:"delta"`
}

// DoneMessage marks the end of an item's audio.
type DoneMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type FeedbackMessage struct {
	Type      string         `json:"type"`
	MessageID string         `json:"messageId"`
	Feedback  store.Feedback `json:"feedback"`
}

type SessionEndedMessage struct {
	Type string `json:"type"`
}

func userTextDelta(id, delta string) DeltaMessage {
	return DeltaMessage{Type: TypeUserTextDelta, ID: id, Delta: delta}
}

func assistantTextDelta(id, delta string) DeltaMessage {
	return DeltaMessage{Type: TypeAssistantTextDelta, ID: id, Delta: delta}
}

func assistantAudioDelta(id, delta string) DeltaMessage {
	return DeltaMessage{Type: TypeAssistantAudioDelta, ID: id, Delta: delta}
}

func assistantAudioDone(id string) DoneMessage {
	return DoneMessage{Type: TypeAssistantAudioDone, ID: id}
}

func feedbackMessage(messageID string, fb store.Feedback) FeedbackMessage {
	return FeedbackMessage{Type: TypeFeedback, MessageID: messageID, Feedback: fb}
}

func sessionEnded() SessionEndedMessage {
	return SessionEndedMessage{Type: TypeSessionEnded}
}
