package store

import (
	"context"
	"strings"
	"testing"
)

const fixtureJSON = `{
  "profiles": [{"id": "p1", "userId": "u1", "name": "Ana", "targetLanguage": "es"}],
  "organizations": [{"id": "org1", "tier": "pro"}],
  "memberships": [{"organizationId": "org1", "profileId": "p1"}],
  "practices": [{"kind": "roleplay", "sessionId": "rp1", "organizationId": "org1", "profileId": "p1",
                 "title": "Ordering coffee", "objectives": ["greet", "order"]}]
}`

func TestLoadFixtures(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	f, err := LoadFixtures(ctx, m, strings.NewReader(fixtureJSON))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(f.Practices) != 1 {
		t.Fatalf("practices=%d", len(f.Practices))
	}
	pr, err := m.LoadPractice(ctx, KindRoleplay, "rp1")
	if err != nil {
		t.Fatalf("practice: %v", err)
	}
	if pr.Title != "Ordering coffee" || len(pr.Objectives) != 2 {
		t.Fatalf("practice=%+v", pr)
	}
	if ok, _ := m.IsMember(ctx, "org1", "p1"); !ok {
		t.Fatalf("membership not seeded")
	}
}

func TestLoadFixturesRejectsUnknownKind(t *testing.T) {
	_, err := LoadFixtures(context.Background(), NewMemory(),
		strings.NewReader(`{"practices":[{"kind":"quiz","sessionId":"q1"}]}`))
	if err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
