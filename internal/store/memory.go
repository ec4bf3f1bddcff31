package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type practiceKey struct {
	kind Kind
	id   string
}

// Memory is an in-process Store. It backs tests and local runs without a database.
type Memory struct {
	mu        sync.Mutex
	profiles  map[string]Profile // by user id
	orgs      map[string]Organization
	members   map[[2]string]bool
	practices map[practiceKey]Practice
	messages  map[practiceKey][]Message
	snapshots map[practiceKey][]DurationSnapshot
	finals    map[practiceKey][]DurationSnapshot

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		profiles:  make(map[string]Profile),
		orgs:      make(map[string]Organization),
		members:   make(map[[2]string]bool),
		practices: make(map[practiceKey]Practice),
		messages:  make(map[practiceKey][]Message),
		snapshots: make(map[practiceKey][]DurationSnapshot),
		finals:    make(map[practiceKey][]DurationSnapshot),
		now:       time.Now,
	}
}

func (m *Memory) UpsertProfile(_ context.Context, p Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = p
	return nil
}

func (m *Memory) UpsertOrganization(_ context.Context, o Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgs[o.ID] = o
	return nil
}

func (m *Memory) AddMember(_ context.Context, organizationID, profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[[2]string{organizationID, profileID}] = true
	return nil
}

func (m *Memory) UpsertPractice(_ context.Context, p Practice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.practices[practiceKey{p.Kind, p.SessionID}] = p
	return nil
}

func (m *Memory) ProfileByUser(_ context.Context, userID string) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) IsMember(_ context.Context, organizationID, profileID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members[[2]string{organizationID, profileID}], nil
}

func (m *Memory) OrganizationTier(_ context.Context, organizationID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orgs[organizationID]
	if !ok {
		return "", ErrNotFound
	}
	return o.Tier, nil
}

func (m *Memory) LoadPractice(_ context.Context, kind Kind, sessionID string) (Practice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.practices[practiceKey{kind, sessionID}]
	if !ok {
		return Practice{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) CreateMessage(_ context.Context, msg Message) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := practiceKey{msg.Kind, msg.SessionID}
	if _, ok := m.practices[key]; !ok {
		return Message{}, ErrNotFound
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = m.now().UTC()
	}
	m.messages[key] = append(m.messages[key], msg)
	return msg, nil
}

func (m *Memory) ListMessages(_ context.Context, kind Kind, sessionID string) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.messages[practiceKey{kind, sessionID}]
	out := make([]Message, len(src))
	copy(out, src)
	return out, nil
}

func (m *Memory) AttachFeedback(_ context.Context, kind Kind, messageID string, fb Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, msgs := range m.messages {
		if key.kind != kind {
			continue
		}
		for i := range msgs {
			if msgs[i].ID != messageID {
				continue
			}
			if kind == KindRoleplay && msgs[i].Feedback != nil {
				return ErrFeedbackExists
			}
			msgs[i].Feedback = fb
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) SnapshotDuration(_ context.Context, kind Kind, sessionID string, d DurationSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := practiceKey{kind, sessionID}
	if _, ok := m.practices[key]; !ok {
		return ErrNotFound
	}
	m.snapshots[key] = append(m.snapshots[key], d)
	return nil
}

func (m *Memory) FinalizeDuration(_ context.Context, kind Kind, sessionID string, d DurationSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := practiceKey{kind, sessionID}
	if _, ok := m.practices[key]; !ok {
		return ErrNotFound
	}
	m.finals[key] = append(m.finals[key], d)
	return nil
}

// Snapshots returns every periodic duration write recorded for a session.
func (m *Memory) Snapshots(kind Kind, sessionID string) []DurationSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DurationSnapshot(nil), m.snapshots[practiceKey{kind, sessionID}]...)
}

// Finals returns every final duration write recorded for a session.
func (m *Memory) Finals(kind Kind, sessionID string) []DurationSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DurationSnapshot(nil), m.finals[practiceKey{kind, sessionID}]...)
}
