package relay

import (
	"github.com/practicelab/relay/internal/realtime"
	"github.com/practicelab/relay/internal/store"
)

// Event is one input to a session. The set of variants is closed; every input
// from the client, the upstream, timers and background work arrives as one.
type Event interface {
	eventName() string
}

// CompleteAudio carries one full utterance as a WAV (or raw PCM16) buffer.
type CompleteAudio struct {
	Audio []byte
}

// CancelResponse is a barge-in. TrackID and Offset are informational.
type CancelResponse struct {
	TrackID string
	Offset  float64
}

// UserMessage is a free-text turn. It is accepted but has no effect.
type UserMessage struct {
	Text string
}

type EndSession struct{}

// Disconnect means the client socket is gone.
type Disconnect struct{}

type UpstreamEvent struct {
	Event realtime.Event
}

// UpstreamClosed means the upstream connection ended on its own.
type UpstreamClosed struct {
	Err error
}

type Timeout struct{}

type SnapshotTick struct{}

// FeedbackReady is posted by the background feedback task once the result is stored.
type FeedbackReady struct {
	MessageID string
	Feedback  store.Feedback
}

func (CompleteAudio) eventName() string  { return TypeCompleteAudio }
func (CancelResponse) eventName() string { return TypeCancelResponse }
func (UserMessage) eventName() string    { return TypeUserMessage }
func (EndSession) eventName() string     { return TypeEndSession }
func (Disconnect) eventName() string     { return "disconnect" }
func (UpstreamEvent) eventName() string  { return "upstream" }
func (UpstreamClosed) eventName() string { return "upstreamClosed" }
func (Timeout) eventName() string        { return "timeout" }
func (SnapshotTick) eventName() string   { return "snapshotTick" }
func (FeedbackReady) eventName() string  { return "feedbackReady" }
