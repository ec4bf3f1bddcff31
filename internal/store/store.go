package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrFeedbackExists is returned when roleplay feedback would overwrite an earlier result.
	ErrFeedbackExists = errors.New("feedback already attached")
)

// Store is the persistence collaborator shared by all sessions. Implementations
// must be safe for concurrent use.
type Store interface {
	ProfileByUser(ctx context.Context, userID string) (Profile, error)
	IsMember(ctx context.Context, organizationID, profileID string) (bool, error)
	OrganizationTier(ctx context.Context, organizationID string) (string, error)
	LoadPractice(ctx context.Context, kind Kind, sessionID string) (Practice, error)

	// CreateMessage assigns an ID and timestamp when they are empty.
	CreateMessage(ctx context.Context, m Message) (Message, error)
	ListMessages(ctx context.Context, kind Kind, sessionID string) ([]Message, error)
	AttachFeedback(ctx context.Context, kind Kind, messageID string, fb Feedback) error

	SnapshotDuration(ctx context.Context, kind Kind, sessionID string, d DurationSnapshot) error
	FinalizeDuration(ctx context.Context, kind Kind, sessionID string, d DurationSnapshot) error
}
