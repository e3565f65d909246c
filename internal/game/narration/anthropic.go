package narration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/storyloom/backend/internal/config"
)

// anthropicLLM is the production llm backed by the Anthropic Messages
// API.
type anthropicLLM struct {
	client       anthropic.Client
	defaultModel string
	maxTokens    int64
}

func newAnthropicLLM(cfg config.NarrationConfig) *anthropicLLM {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	return &anthropicLLM{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.Model,
		maxTokens:    int64(cfg.MaxTokens),
	}
}

// resolveModel maps a room's opaque model selector onto an upstream
// model. Anything that is not a claude selector degrades to the
// configured default.
func (a *anthropicLLM) resolveModel(model string) anthropic.Model {
	if strings.HasPrefix(model, "claude") {
		return anthropic.Model(model)
	}
	return anthropic.Model(a.defaultModel)
}

func (a *anthropicLLM) params(model, system, prompt string, history []Message) anthropic.MessageNewParams {
	msgs := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, m := range history {
		if m.Role == "assistant" {
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)))

	params := anthropic.MessageNewParams{
		Model:     a.resolveModel(model),
		MaxTokens: a.maxTokens,
		Messages:  msgs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

func (a *anthropicLLM) complete(ctx context.Context, model, system, prompt string, history []Message) (string, error) {
	msg, err := a.client.Messages.New(ctx, a.params(model, system, prompt, history))
	if err != nil {
		return "", fmt.Errorf("creating message: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		sb.WriteString(block.Text)
	}
	if sb.Len() == 0 {
		return "", errors.New("upstream returned an empty completion")
	}
	return sb.String(), nil
}

func (a *anthropicLLM) stream(ctx context.Context, model, system, prompt string, history []Message, emit func(chunk string)) error {
	stream := a.client.Messages.NewStreaming(ctx, a.params(model, system, prompt, history))
	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				emit(delta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("streaming message: %w", err)
	}
	return nil
}
