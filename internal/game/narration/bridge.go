// Package narration adapts the external text-generation collaborator
// for story rooms and single-session adventures. Calls are synchronous,
// single-attempt, and bounded by a configured timeout; on failure the
// cooperative paths degrade to deterministic fallback text so a room is
// never left waiting on the upstream.
package narration

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/storyloom/backend/internal/config"
)

// Message is one prior exchange passed as generation context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// llm is the upstream completion surface. Split out so tests can swap
// the real client for a scripted one.
type llm interface {
	complete(ctx context.Context, model, system, prompt string, history []Message) (string, error)
	stream(ctx context.Context, model, system, prompt string, history []Message, emit func(chunk string)) error
}

// Bridge invokes the generation collaborator on behalf of the AI
// participant and the single-session game paths.
type Bridge struct {
	llm     llm
	timeout time.Duration
	logger  *zap.Logger
}

// NewBridge creates a Bridge backed by the Anthropic API.
//
// Precondition: logger must be non-nil; cfg must have passed Validate.
func NewBridge(cfg config.NarrationConfig, logger *zap.Logger) *Bridge {
	return &Bridge{
		llm:     newAnthropicLLM(cfg),
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Seed produces the opening narration for a cooperative story.
//
// Postcondition: always returns non-empty text; upstream failure yields
// FallbackSeed.
func (b *Bridge) Seed(ctx context.Context, genre, model string) string {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	text, err := b.llm.complete(ctx, model, cooperativeSystemPrompt(genre), seedPrompt(genre), nil)
	if err != nil {
		b.logger.Warn("seed narration failed, using fallback",
			zap.String("genre", genre),
			zap.Error(err),
		)
		return FallbackSeed
	}
	return text
}

// Continue produces the AI's next contribution to a cooperative story.
//
// Postcondition: always returns non-empty text; upstream failure yields
// FallbackContinue.
func (b *Bridge) Continue(ctx context.Context, story, genre, model string) string {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	text, err := b.llm.complete(ctx, model, cooperativeSystemPrompt(genre), continuePrompt(story), nil)
	if err != nil {
		b.logger.Warn("continuation narration failed, using fallback",
			zap.String("genre", genre),
			zap.Error(err),
		)
		return FallbackContinue
	}
	return text
}

// SoloSeed opens a single-session adventure with numbered choices.
func (b *Bridge) SoloSeed(ctx context.Context, genre, model string) string {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	text, err := b.llm.complete(ctx, model, soloSystemPrompt(genre), seedPrompt(genre), nil)
	if err != nil {
		b.logger.Warn("solo seed failed, using fallback",
			zap.String("genre", genre),
			zap.Error(err),
		)
		return FallbackSeed
	}
	return text
}

// SoloContinue advances a single-session adventure from a player action.
func (b *Bridge) SoloContinue(ctx context.Context, story, action, genre, model string) string {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	prompt := continuePrompt(story) + "\n\nThe player's action: " + action
	text, err := b.llm.complete(ctx, model, soloSystemPrompt(genre), prompt, nil)
	if err != nil {
		b.logger.Warn("solo continuation failed, using fallback",
			zap.String("genre", genre),
			zap.Error(err),
		)
		return FallbackContinue
	}
	return text
}

// SoloSeedStream is SoloSeed with incremental delivery. Returns the
// complete text once the stream finishes; a mid-stream failure is
// surfaced to the caller instead of being masked with fallback text.
func (b *Bridge) SoloSeedStream(ctx context.Context, genre, model string, emit func(chunk string)) (string, error) {
	return b.streamWith(ctx, model, soloSystemPrompt(genre), seedPrompt(genre), nil, emit)
}

// SoloContinueStream is SoloContinue with incremental delivery.
func (b *Bridge) SoloContinueStream(ctx context.Context, story, action, genre, model string, emit func(chunk string)) (string, error) {
	prompt := continuePrompt(story) + "\n\nThe player's action: " + action
	return b.streamWith(ctx, model, soloSystemPrompt(genre), prompt, nil, emit)
}

// ChatStream streams a free-form chat completion with prior history.
func (b *Bridge) ChatStream(ctx context.Context, message string, history []Message, model string, emit func(chunk string)) error {
	_, err := b.streamWith(ctx, model, "", message, history, emit)
	return err
}

func (b *Bridge) streamWith(ctx context.Context, model, system, prompt string, history []Message, emit func(chunk string)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var full []byte
	err := b.llm.stream(ctx, model, system, prompt, history, func(chunk string) {
		full = append(full, chunk...)
		emit(chunk)
	})
	if err != nil {
		b.logger.Warn("streaming generation failed", zap.Error(err))
		return "", err
	}
	return string(full), nil
}
