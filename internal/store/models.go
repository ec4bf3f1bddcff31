package store

import "time"

// Kind distinguishes the two practice flows a session can drive.
type Kind string

const (
	KindRoleplay Kind = "roleplay"
	KindLesson   Kind = "lesson"
)

// Valid reports whether k is a known practice kind.
func (k Kind) Valid() bool {
	return k == KindRoleplay || k == KindLesson
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Profile struct {
	ID             string `json:"id"`
	UserID         string `json:"userId"`
	Name           string `json:"name"`
	NativeLanguage string `json:"nativeLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	Level          string `json:"level"`
}

type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Tier string `json:"tier"`
}

// Practice is the persisted roleplay or lesson session a connection drives.
type Practice struct {
	Kind           Kind     `json:"kind"`
	SessionID      string   `json:"sessionId"`
	OrganizationID string   `json:"organizationId"`
	ProfileID      string   `json:"profileId"`
	Title          string   `json:"title"`
	Scenario       string   `json:"scenario"`
	Character      string   `json:"character"`
	Objectives     []string `json:"objectives"`
	Voice          string   `json:"voice"`
}

// Feedback is the generator's JSON object. The relay does not interpret it.
type Feedback map[string]any

type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Kind      Kind      `json:"kind"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Feedback  Feedback  `json:"feedback,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// DurationSnapshot carries the session's time bookkeeping, all in seconds.
type DurationSnapshot struct {
	Elapsed           float64 `json:"elapsed"`
	UserSpeaking      float64 `json:"userSpeaking"`
	AssistantSpeaking float64 `json:"assistantSpeaking"`
}
