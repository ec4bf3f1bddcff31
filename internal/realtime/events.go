package realtime

import (
	"encoding/json"

	"github.com/openai/openai-go/v2/packages/param"
	openairt "github.com/openai/openai-go/v2/realtime"
)

// Upstream event types the relay reacts to. Beta and GA names are both
// listed where the service renamed them.
const (
	EventError                    = "error"
	EventSessionCreated           = "session.created"
	EventSessionUpdated           = "session.updated"
	EventItemCreated              = "conversation.item.created"
	EventItemAdded                = "conversation.item.added"
	EventInputTranscriptionDelta  = "conversation.item.input_audio_transcription.delta"
	EventInputTranscriptionDone   = "conversation.item.input_audio_transcription.completed"
	EventInputTranscriptionFailed = "conversation.item.input_audio_transcription.failed"
	EventSpeechStarted            = "input_audio_buffer.speech_started"
	EventSpeechStopped            = "input_audio_buffer.speech_stopped"
	EventOutputAudioDelta         = "response.output_audio.delta"
	EventOutputAudioDone          = "response.output_audio.done"
	EventOutputTranscriptDelta    = "response.output_audio_transcript.delta"
	EventOutputTranscriptDone     = "response.output_audio_transcript.done"
	EventBetaAudioDelta           = "response.audio.delta"
	EventBetaAudioDone            = "response.audio.done"
	EventBetaAudioTranscriptDelta = "response.audio_transcript.delta"
	EventBetaAudioTranscriptDone  = "response.audio_transcript.done"
	EventResponseCreated          = "response.created"
	EventResponseDone             = "response.done"
	EventRateLimitsUpdated        = "rate_limits.updated"
)

// Event is the subset of an upstream server event the relay consumes.
type Event struct {
	Type       string    `json:"type"`
	EventID    string    `json:"event_id,omitempty"`
	ItemID     string    `json:"item_id,omitempty"`
	ResponseID string    `json:"response_id,omitempty"`
	Delta      string    `json:"delta,omitempty"`
	Transcript string    `json:"transcript,omitempty"`
	Item       *Item     `json:"item,omitempty"`
	Error      *APIError `json:"error,omitempty"`
}

// Item is a conversation item as reported by the upstream.
type Item struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Role string `json:"role"`
}

// APIError is the payload of an "error" event.
type APIError struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
}

// Canonical maps beta event names onto their GA equivalents.
func Canonical(typ string) string {
	switch typ {
	case EventBetaAudioDelta:
		return EventOutputAudioDelta
	case EventBetaAudioDone:
		return EventOutputAudioDone
	case EventBetaAudioTranscriptDelta:
		return EventOutputTranscriptDelta
	case EventBetaAudioTranscriptDone:
		return EventOutputTranscriptDone
	case EventItemAdded:
		return EventItemCreated
	}
	return typ
}

// SessionConfig describes the per-session configuration sent upstream.
type SessionConfig struct {
	Model              string
	Instructions       string
	Voice              string
	TranscriptionModel string
	SampleRate         int
}

// SessionUpdateMessage configures formats, transcription, voice and instructions.
type SessionUpdateMessage struct {
	Type    string                                     `json:"type"`
	Session openairt.RealtimeSessionCreateRequestParam `json:"session"`
}

// Message is an outbound control envelope without payload fields.
type Message struct {
	Type string `json:"type"`
}

// AppendMessage appends base64 PCM16 audio to the input buffer.
type AppendMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// SessionUpdate builds the initial session.update envelope. Turn detection is
// sent as an explicit null because the client submits complete utterances.
func SessionUpdate(cfg SessionConfig) SessionUpdateMessage {
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 24000
	}
	format := openairt.RealtimeAudioFormatsUnionParam{
		OfAudioPCM: &openairt.RealtimeAudioFormatsAudioPCMParam{Type: "audio/pcm", Rate: int64(rate)},
	}

	sess := openairt.RealtimeSessionCreateRequestParam{
		Model:            cfg.Model,
		OutputModalities: []string{"audio"},
		Audio: openairt.RealtimeAudioConfigParam{
			Input: openairt.RealtimeAudioConfigInputParam{
				Format:        format,
				TurnDetection: param.Override[openairt.RealtimeAudioInputTurnDetectionUnionParam](json.RawMessage("null")),
			},
			Output: openairt.RealtimeAudioConfigOutputParam{
				Format: format,
				Voice:  openairt.RealtimeAudioConfigOutputVoice(cfg.Voice),
			},
		},
	}
	if cfg.Instructions != "" {
		sess.Instructions = param.NewOpt(cfg.Instructions)
	}
	if cfg.TranscriptionModel != "" {
		sess.Audio.Input.Transcription = openairt.AudioTranscriptionParam{
			Model: openairt.AudioTranscriptionModel(cfg.TranscriptionModel),
		}
	}
	return SessionUpdateMessage{Type: "session.update", Session: sess}
}

// AppendAudio appends base64 PCM16 to the upstream input buffer.
func AppendAudio(b64 string) AppendMessage {
	return AppendMessage{Type: "input_audio_buffer.append", Audio: b64}
}

func CommitAudio() Message    { return Message{Type: "input_audio_buffer.commit"} }
func ClearAudio() Message     { return Message{Type: "input_audio_buffer.clear"} }
func CreateResponse() Message { return Message{Type: "response.create"} }
func CancelResponse() Message { return Message{Type: "response.cancel"} }
