package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/practicelab/relay/internal/auth"
	"github.com/practicelab/relay/internal/relay"
	"github.com/practicelab/relay/internal/store"
)

type deps struct {
	wsHandler http.Handler
	store     store.Store
	verifier  *auth.Verifier
	tracker   *relay.Tracker
}

// registerRoutes wires all HTTP endpoints to the shared mux.
func registerRoutes(mux *http.ServeMux, d deps) {
	mux.Handle("/ws/session", d.wsHandler)
	mux.HandleFunc("/health", d.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/sessions/{kind}/{id}/messages", d.handleMessages)
}

func (d deps) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": "ok", "sessions": d.tracker.Count()})
}

// handleMessages returns a practice session's transcript to its owner.
func (d deps) handleMessages(w http.ResponseWriter, r *http.Request) {
	kind := store.Kind(r.PathValue("kind"))
	if !kind.Valid() {
		http.Error(w, "unknown practice kind", http.StatusBadRequest)
		return
	}

	claims, err := d.verifier.Verify(r.Context(), auth.CredentialFromRequest(r))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	profile, err := d.store.ProfileByUser(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	practice, err := d.store.LoadPractice(r.Context(), kind, r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) || (err == nil && practice.ProfileID != profile.ID) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("load practice", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	msgs, err := d.store.ListMessages(r.Context(), kind, practice.SessionID)
	if err != nil {
		slog.Error("list messages", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"messages": msgs})
}
