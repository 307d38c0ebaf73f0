package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = `You design two-arm A/B experiments for conversion funnels.
Given a brief, respond with a single JSON object with these keys:
name, hypothesis, baseline_rate, target_lift_pct, alpha, power, daily_traffic, control_share.
Rates, lifts, alpha, power, and control_share are fractions, never percentages.
Respond with JSON only, no prose.`

// chatCompleter is the slice of the OpenAI client the source needs.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// #region llm-source
// LLMSource asks a chat model to propose a scenario for a brief. Every
// proposal passes through the guardrail bounds before it leaves this package.
type LLMSource struct {
	client chatCompleter
	model  string
	bounds Bounds
	log    zerolog.Logger
}

// NewLLMSource builds a source backed by the OpenAI chat API.
func NewLLMSource(apiKey, model string, bounds Bounds, log zerolog.Logger) *LLMSource {
	return &LLMSource{
		client: openai.NewClient(apiKey),
		model:  model,
		bounds: bounds,
		log:    log,
	}
}

// Propose asks the model for one scenario and clamps the result.
func (s *LLMSource) Propose(ctx context.Context, brief string) (Scenario, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: brief},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return Scenario{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Scenario{}, fmt.Errorf("%w: model returned no choices", ErrNoScenario)
	}

	sc, err := parseScenario(resp.Choices[0].Message.Content)
	if err != nil {
		return Scenario{}, err
	}
	clamped := s.bounds.Clamp(sc)
	if clamped != sc {
		s.log.Warn().Str("scenario", sc.Name).Msg("proposal clamped to guardrail bounds")
	}
	s.log.Debug().Str("scenario", clamped.Name).Float64("baseline", clamped.BaselineRate).Msg("scenario proposed")
	return clamped, nil
}

// #endregion llm-source

// #region parse
// parseScenario decodes a model response, tolerating a fenced code block
// around the JSON object.
func parseScenario(raw string) (Scenario, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}

	var sc Scenario
	if err := json.Unmarshal([]byte(text), &sc); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	if sc.Name == "" {
		return Scenario{}, fmt.Errorf("%w: proposal missing name", ErrNoScenario)
	}
	return sc, nil
}

// #endregion parse
