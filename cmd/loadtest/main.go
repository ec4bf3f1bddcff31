package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/practicelab/relay/internal/audio"
	"github.com/practicelab/relay/internal/auth"
	"github.com/practicelab/relay/internal/env"
	"github.com/practicelab/relay/internal/relay"
)

func main() {
	endpoint := flag.String("url", "ws://localhost:8080/ws/session", "relay WebSocket URL")
	concurrency := flag.Int("concurrency", 10, "number of concurrent learners")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	audioDir := flag.String("audio-dir", "", "directory with sample .wav utterances")
	userID := flag.String("user", "u1", "user id to sign tokens for")
	practice := flag.String("practice", `{"type":"roleplay","sessionId":"rp1","organizationId":"org1"}`, "practice descriptor")
	flag.Parse()

	secret := env.Str("JWT_SECRET", "")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is required")
		os.Exit(1)
	}

	files, err := findAudioFiles(*audioDir)
	if err != nil || len(files) == 0 {
		fmt.Fprintf(os.Stderr, "no audio files in %q, generating synthetic audio\n", *audioDir)
		files = nil
	}

	fmt.Printf("Load test: %d concurrent sessions for %s\n", *concurrency, *duration)
	fmt.Printf("Relay: %s\n\n", *endpoint)

	var mu sync.Mutex
	var results []sessionResult
	var wg sync.WaitGroup

	deadline := time.Now().Add(*duration)

	for range *concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for time.Now().Before(deadline) {
				r := runSession(*endpoint, secret, *userID, *practice, files)
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	printSummary(results)
}

type sessionResult struct {
	success    bool
	responseMs float64
	feedbackMs float64
	endMs      float64
	err        string
}

type envelope struct {
	Type string `json:"type"`
}

func sessionURL(endpoint, token, practice string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	q.Set("practice", practice)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// runSession sends one utterance, waits for the reply and feedback, then ends
// the session and waits for the relay to confirm.
func runSession(endpoint, secret, userID, practice string, files []string) sessionResult {
	token, err := auth.Sign(secret, userID, time.Hour)
	if err != nil {
		return sessionResult{err: fmt.Sprintf("sign: %v", err)}
	}
	target, err := sessionURL(endpoint, token, practice)
	if err != nil {
		return sessionResult{err: fmt.Sprintf("url: %v", err)}
	}
	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		return sessionResult{err: fmt.Sprintf("dial: %v", err)}
	}
	defer conn.Close()

	msg, _ := json.Marshal(map[string]string{
		"type":  relay.TypeCompleteAudio,
		"audio": base64.StdEncoding.EncodeToString(getAudioData(files)),
	})
	start := time.Now()
	if err = conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return sessionResult{err: fmt.Sprintf("send audio: %v", err)}
	}

	var r sessionResult
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	for r.responseMs == 0 || r.feedbackMs == 0 {
		typ, err := readType(conn)
		if err != nil {
			return sessionResult{err: fmt.Sprintf("read: %v", err)}
		}
		elapsed := float64(time.Since(start).Milliseconds())
		switch typ {
		case relay.TypeAssistantTextDelta, relay.TypeAssistantAudioDelta:
			if r.responseMs == 0 {
				r.responseMs = elapsed
			}
		case relay.TypeFeedback:
			r.feedbackMs = elapsed
		case relay.TypeSessionEnded:
			return sessionResult{err: "session ended early"}
		}
	}

	end, _ := json.Marshal(envelope{Type: relay.TypeEndSession})
	endStart := time.Now()
	if err = conn.WriteMessage(websocket.TextMessage, end); err != nil {
		return sessionResult{err: fmt.Sprintf("send end: %v", err)}
	}
	for {
		typ, err := readType(conn)
		if err != nil {
			return sessionResult{err: fmt.Sprintf("read: %v", err)}
		}
		if typ == relay.TypeSessionEnded {
			r.endMs = float64(time.Since(endStart).Milliseconds())
			r.success = true
			return r
		}
	}
}

func readType(conn *websocket.Conn) (string, error) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return "", err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var e envelope
		if err = json.Unmarshal(data, &e); err != nil {
			continue
		}
		return e.Type, nil
	}
}

func getAudioData(files []string) []byte {
	if len(files) > 0 {
		data, err := os.ReadFile(files[rand.Intn(len(files))])
		if err == nil {
			return data
		}
	}
	return generateSyntheticAudio(3 * time.Second)
}

// generateSyntheticAudio returns a WAV-wrapped 440Hz tone at 24kHz.
func generateSyntheticAudio(dur time.Duration) []byte {
	sampleRate := audio.DefaultSampleRate
	numSamples := int(dur.Seconds() * float64(sampleRate))
	samples := make([]int16, numSamples)

	for i := range numSamples {
		t := float64(i) / float64(sampleRate)
		sample := math.Sin(2*math.Pi*440*t)*0.3 + (rand.Float64()-0.5)*0.05
		samples[i] = int16(sample * math.MaxInt16)
	}
	return audio.EncodeWAV(samples, sampleRate)
}

func findAudioFiles(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".wav" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

func printSummary(results []sessionResult) {
	var succeeded, failed int
	var respAll, fbAll, endAll []float64
	errs := map[string]int{}

	for _, r := range results {
		if !r.success {
			failed++
			errs[r.err]++
			continue
		}
		succeeded++
		respAll = append(respAll, r.responseMs)
		fbAll = append(fbAll, r.feedbackMs)
		endAll = append(endAll, r.endMs)
	}

	fmt.Printf("\n=== Load Test Results ===\n")
	fmt.Printf("Sessions completed: %d\n", succeeded)
	fmt.Printf("Sessions failed:    %d\n", failed)
	for e, n := range errs {
		fmt.Printf("  %4d  %s\n", n, e)
	}

	if len(respAll) == 0 {
		fmt.Println("No successful sessions to report latency")
		return
	}

	fmt.Printf("\n%-9s %8s %8s %8s\n", "Stage", "p50", "p95", "p99")
	fmt.Printf("%-9s %8.0fms %8.0fms %8.0fms\n", "Reply", percentile(respAll, 50), percentile(respAll, 95), percentile(respAll, 99))
	fmt.Printf("%-9s %8.0fms %8.0fms %8.0fms\n", "Feedback", percentile(fbAll, 50), percentile(fbAll, 95), percentile(fbAll, 99))
	fmt.Printf("%-9s %8.0fms %8.0fms %8.0fms\n", "End", percentile(endAll, 50), percentile(endAll, 95), percentile(endAll, 99))
}

func percentile(data []float64, pct float64) float64 {
	sort.Float64s(data)
	idx := int(math.Ceil(pct/100*float64(len(data)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(data) {
		idx = len(data) - 1
	}
	return data[idx]
}
