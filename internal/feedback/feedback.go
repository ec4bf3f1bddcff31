package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/practicelab/relay/internal/store"
)

// ErrNoJSON is returned when the model reply has no JSON object in it.
var ErrNoJSON = errors.New("feedback reply contains no json object")

// Request is everything the generator sees for one user utterance.
type Request struct {
	Kind       store.Kind
	Transcript string
	Profile    store.Profile
	Practice   store.Practice
	History    []store.Message
}

// Generator produces feedback for a completed user transcription.
type Generator interface {
	Generate(ctx context.Context, req Request) (store.Feedback, error)
}

// maxHistory bounds how many prior turns are sent as context.
const maxHistory = 20

// BuildInput renders the conversation so far plus the utterance under review.
func BuildInput(req Request) string {
	history := req.History
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}

	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, m := range history {
			if m.Content == "" {
				continue
			}
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Utterance to review: %q", req.Transcript)
	return b.String()
}

// ParseFeedback pulls the first JSON object out of a model reply, tolerating
// code fences and surrounding prose.
func ParseFeedback(text string) (store.Feedback, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, ErrNoJSON
	}
	var fb store.Feedback
	if err := json.Unmarshal([]byte(text[start:end+1]), &fb); err != nil {
		return nil, fmt.Errorf("decode feedback: %w", err)
	}
	return fb, nil
}
