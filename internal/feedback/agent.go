package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nlpodyssey/openai-agents-go/agents"
	"github.com/nlpodyssey/openai-agents-go/modelsettings"
	"github.com/openai/openai-go/v2/packages/param"

	"github.com/practicelab/relay/internal/metrics"
	"github.com/practicelab/relay/internal/prompts"
	"github.com/practicelab/relay/internal/store"
)

// AgentGenerator asks an LLM for feedback through a single-turn agent run.
type AgentGenerator struct {
	provider  agents.ModelProvider
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewOpenAIProvider builds a Responses API provider. baseURL may be empty.
func NewOpenAIProvider(apiKey, baseURL string) agents.ModelProvider {
	params := agents.OpenAIProviderParams{
		APIKey:       param.NewOpt(apiKey),
		UseResponses: param.NewOpt(true),
	}
	if baseURL != "" {
		params.BaseURL = param.NewOpt(baseURL)
	}
	return agents.NewOpenAIProvider(params)
}

func NewAgentGenerator(provider agents.ModelProvider, model string, maxTokens int, timeout time.Duration) *AgentGenerator {
	if maxTokens <= 0 {
		maxTokens = 300
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &AgentGenerator{provider: provider, model: model, maxTokens: maxTokens, timeout: timeout}
}

func (g *AgentGenerator) Generate(ctx context.Context, req Request) (store.Feedback, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	agent := agents.New("feedback").
		WithInstructions(prompts.FeedbackSystem(req.Kind, req.Profile)).
		WithModel(g.model).
		WithModelSettings(modelsettings.ModelSettings{
			MaxTokens: param.NewOpt(int64(g.maxTokens)),
		})

	runner := agents.Runner{Config: agents.RunConfig{
		ModelProvider:   g.provider,
		MaxTurns:        1,
		TracingDisabled: true,
	}}

	start := time.Now()
	events, errCh, err := runner.RunStreamedChan(ctx, agent, BuildInput(req))
	if err != nil {
		metrics.FeedbackErrors.Inc()
		return nil, fmt.Errorf("feedback stream start: %w", err)
	}

	var text strings.Builder
	for ev := range events {
		raw, ok := ev.(agents.RawResponsesStreamEvent)
		if !ok || raw.Data.Type != "response.output_text.delta" {
			continue
		}
		text.WriteString(raw.Data.Delta)
	}
	if streamErr := <-errCh; streamErr != nil {
		metrics.FeedbackErrors.Inc()
		return nil, fmt.Errorf("feedback stream: %w", streamErr)
	}
	metrics.FeedbackDuration.Observe(time.Since(start).Seconds())

	fb, err := ParseFeedback(text.String())
	if err != nil {
		metrics.FeedbackErrors.Inc()
		return nil, err
	}
	return fb, nil
}
