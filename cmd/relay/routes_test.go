package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/practicelab/relay/internal/auth"
	"github.com/practicelab/relay/internal/relay"
	"github.com/practicelab/relay/internal/store"
)

const testSecret = "routes-secret"

func newMux(t *testing.T) *http.ServeMux {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	_ = mem.UpsertProfile(ctx, store.Profile{ID: "p1", UserID: "u1"})
	_ = mem.UpsertProfile(ctx, store.Profile{ID: "p2", UserID: "u2"})
	_ = mem.UpsertPractice(ctx, store.Practice{Kind: store.KindLesson, SessionID: "l1", ProfileID: "p1"})
	if _, err := mem.CreateMessage(ctx, store.Message{Kind: store.KindLesson, SessionID: "l1", Role: store.RoleUser, Content: "bonjour"}); err != nil {
		t.Fatal(err)
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps{
		wsHandler: http.NotFoundHandler(),
		store:     mem,
		verifier:  auth.NewVerifier(testSecret, nil),
		tracker:   relay.NewTracker(),
	})
	return mux
}

func get(t *testing.T, mux *http.ServeMux, path, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if userID != "" {
		tok, err := auth.Sign(testSecret, userID, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, newMux(t), "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["status"] != "ok" {
		t.Fatalf("body=%s err=%v", rec.Body, err)
	}
}

func TestMetricsExposed(t *testing.T) {
	rec := get(t, newMux(t), "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestMessages(t *testing.T) {
	mux := newMux(t)
	rec := get(t, mux, "/api/sessions/lesson/l1/messages", "u1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	var body struct {
		Messages []store.Message `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Messages) != 1 || body.Messages[0].Content != "bonjour" {
		t.Fatalf("messages=%+v", body.Messages)
	}
}

func TestMessagesRejections(t *testing.T) {
	mux := newMux(t)
	cases := []struct {
		name, path, user string
		want             int
	}{
		{"bad kind", "/api/sessions/quiz/l1/messages", "u1", http.StatusBadRequest},
		{"no token", "/api/sessions/lesson/l1/messages", "", http.StatusUnauthorized},
		{"unknown user", "/api/sessions/lesson/l1/messages", "ghost", http.StatusUnauthorized},
		{"other owner", "/api/sessions/lesson/l1/messages", "u2", http.StatusNotFound},
		{"missing", "/api/sessions/lesson/nope/messages", "u1", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := get(t, mux, tc.path, tc.user); rec.Code != tc.want {
				t.Fatalf("status=%d, want %d", rec.Code, tc.want)
			}
		})
	}
}
