package main

import (
	"net/url"
	"testing"
	"time"

	"github.com/practicelab/relay/internal/audio"
)

func TestPercentile(t *testing.T) {
	data := []float64{50, 10, 40, 20, 30, 60, 70, 80, 90, 100}
	if p := percentile(data, 50); p != 50 {
		t.Fatalf("p50=%v", p)
	}
	if p := percentile(data, 99); p != 100 {
		t.Fatalf("p99=%v", p)
	}
	if p := percentile([]float64{7}, 95); p != 7 {
		t.Fatalf("single=%v", p)
	}
}

func TestSyntheticAudioIsWAV(t *testing.T) {
	w := audio.ParseWAV(generateSyntheticAudio(2 * time.Second))
	if got := w.Duration(); got != 2 {
		t.Fatalf("duration=%v", got)
	}
}

func TestSessionURL(t *testing.T) {
	raw, err := sessionURL("ws://relay:8080/ws/session", "tok", `{"type":"lesson"}`)
	if err != nil {
		t.Fatal(err)
	}
	u, _ := url.Parse(raw)
	if u.Query().Get("token") != "tok" || u.Query().Get("practice") != `{"type":"lesson"}` {
		t.Fatalf("url=%s", raw)
	}
}
