package store

import (
	"context"
	"errors"
	"testing"
)

func seeded(t *testing.T) *Memory {
	t.Helper()
	ctx := context.Background()
	m := NewMemory()
	if err := m.UpsertProfile(ctx, Profile{ID: "p1", UserID: "u1", Name: "Ana"}); err != nil {
		t.Fatal(err)
	}
	if err := m.UpsertOrganization(ctx, Organization{ID: "org1", Tier: "pro"}); err != nil {
		t.Fatal(err)
	}
	if err := m.AddMember(ctx, "org1", "p1"); err != nil {
		t.Fatal(err)
	}
	for _, k := range []Kind{KindRoleplay, KindLesson} {
		if err := m.UpsertPractice(ctx, Practice{Kind: k, SessionID: "s1", OrganizationID: "org1", ProfileID: "p1"}); err != nil {
			t.Fatal(err)
		}
	}
	return m
}

func TestMemoryLookups(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)

	p, err := m.ProfileByUser(ctx, "u1")
	if err != nil || p.ID != "p1" {
		t.Fatalf("profile=%+v err=%v", p, err)
	}
	if _, err = m.ProfileByUser(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
	if ok, _ := m.IsMember(ctx, "org1", "p1"); !ok {
		t.Fatalf("expected membership")
	}
	if ok, _ := m.IsMember(ctx, "org2", "p1"); ok {
		t.Fatalf("unexpected membership")
	}
	if tier, _ := m.OrganizationTier(ctx, "org1"); tier != "pro" {
		t.Fatalf("tier=%q", tier)
	}
	if _, err = m.LoadPractice(ctx, KindLesson, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestMemoryMessagesKeepOrder(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)

	for _, text := range []string{"one", "two", "three"} {
		msg, err := m.CreateMessage(ctx, Message{Kind: KindRoleplay, SessionID: "s1", Role: RoleUser, Content: text})
		if err != nil {
			t.Fatal(err)
		}
		if msg.ID == "" || msg.CreatedAt.IsZero() {
			t.Fatalf("id and timestamp should be assigned: %+v", msg)
		}
	}
	msgs, err := m.ListMessages(ctx, KindRoleplay, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 || msgs[0].Content != "one" || msgs[2].Content != "three" {
		t.Fatalf("msgs=%+v", msgs)
	}
	if other, _ := m.ListMessages(ctx, KindLesson, "s1"); len(other) != 0 {
		t.Fatalf("lesson history leaked roleplay messages: %+v", other)
	}
	if _, err = m.CreateMessage(ctx, Message{Kind: KindRoleplay, SessionID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestAttachFeedbackRoleplayRefusesOverwrite(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)
	msg, _ := m.CreateMessage(ctx, Message{Kind: KindRoleplay, SessionID: "s1", Role: RoleUser, Content: "hola"})

	if err := m.AttachFeedback(ctx, KindRoleplay, msg.ID, Feedback{"score": 1}); err != nil {
		t.Fatalf("first attach: %v", err)
	}
	if err := m.AttachFeedback(ctx, KindRoleplay, msg.ID, Feedback{"score": 2}); !errors.Is(err, ErrFeedbackExists) {
		t.Fatalf("err=%v, want ErrFeedbackExists", err)
	}
	msgs, _ := m.ListMessages(ctx, KindRoleplay, "s1")
	if msgs[0].Feedback["score"] != 1 {
		t.Fatalf("feedback overwritten: %+v", msgs[0].Feedback)
	}
}

func TestAttachFeedbackLessonOverwrites(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)
	msg, _ := m.CreateMessage(ctx, Message{Kind: KindLesson, SessionID: "s1", Role: RoleUser, Content: "bonjour"})

	_ = m.AttachFeedback(ctx, KindLesson, msg.ID, Feedback{"score": 1})
	if err := m.AttachFeedback(ctx, KindLesson, msg.ID, Feedback{"score": 2}); err != nil {
		t.Fatalf("second attach: %v", err)
	}
	msgs, _ := m.ListMessages(ctx, KindLesson, "s1")
	if msgs[0].Feedback["score"] != 2 {
		t.Fatalf("feedback=%+v", msgs[0].Feedback)
	}
	if err := m.AttachFeedback(ctx, KindLesson, "missing", Feedback{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestDurationWrites(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)

	_ = m.SnapshotDuration(ctx, KindRoleplay, "s1", DurationSnapshot{Elapsed: 30})
	_ = m.FinalizeDuration(ctx, KindRoleplay, "s1", DurationSnapshot{Elapsed: 300, UserSpeaking: 2})
	if got := m.Snapshots(KindRoleplay, "s1"); len(got) != 1 || got[0].Elapsed != 30 {
		t.Fatalf("snapshots=%+v", got)
	}
	if got := m.Finals(KindRoleplay, "s1"); len(got) != 1 || got[0].UserSpeaking != 2 {
		t.Fatalf("finals=%+v", got)
	}
	if err := m.FinalizeDuration(ctx, KindLesson, "nope", DurationSnapshot{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
}
