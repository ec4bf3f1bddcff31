package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/practicelab/relay/internal/store"
)

var ErrBadPractice = errors.New("malformed practice descriptor")

// Descriptor identifies the practice entity a connection drives.
type Descriptor struct {
	Kind           store.Kind
	SessionID      string
	OrganizationID string
}

type rawDescriptor struct {
	Type              string `json:"type"`
	SessionID         string `json:"sessionId"`
	OrganizationID    string `json:"organizationId"`
	RoleplaySessionID string `json:"roleplaySessionId"`
	LessonSessionID   string `json:"lessonSessionId"`
}

// ParsePractice decodes the JSON "practice" query parameter. Older clients send
// roleplaySessionId or lessonSessionId without a type.
func ParsePractice(raw string) (Descriptor, error) {
	if raw == "" {
		return Descriptor{}, fmt.Errorf("%w: empty", ErrBadPractice)
	}
	var rd rawDescriptor
	if err := json.Unmarshal([]byte(raw), &rd); err != nil {
		return Descriptor{}, fmt.Errorf("%w: %v", ErrBadPractice, err)
	}

	d := Descriptor{Kind: store.Kind(rd.Type), SessionID: rd.SessionID, OrganizationID: rd.OrganizationID}
	switch {
	case d.SessionID != "":
	case rd.RoleplaySessionID != "" && rd.LessonSessionID != "":
		return Descriptor{}, fmt.Errorf("%w: both roleplay and lesson ids", ErrBadPractice)
	case rd.RoleplaySessionID != "":
		d.SessionID = rd.RoleplaySessionID
		if d.Kind == "" {
			d.Kind = store.KindRoleplay
		}
	case rd.LessonSessionID != "":
		d.SessionID = rd.LessonSessionID
		if d.Kind == "" {
			d.Kind = store.KindLesson
		}
	}

	if !d.Kind.Valid() {
		return Descriptor{}, fmt.Errorf("%w: type %q", ErrBadPractice, rd.Type)
	}
	if d.SessionID == "" {
		return Descriptor{}, fmt.Errorf("%w: missing session id", ErrBadPractice)
	}
	if d.OrganizationID == "" {
		return Descriptor{}, fmt.Errorf("%w: missing organization id", ErrBadPractice)
	}
	return d, nil
}
