// Package synth turns a natural-language question into a candidate SQL
// statement using a language model.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/wms-askbot/internal/metrics"
)

// ErrEmptyCompletion is returned when the model produced no statement.
var ErrEmptyCompletion = errors.New("model returned an empty completion")

// Completer is the language-model capability the synthesizer needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f(ctx, systemPrompt, userPrompt)
}

// Synthesizer generates one candidate statement per question.
type Synthesizer struct {
	llm    Completer
	logger *slog.Logger
}

// New creates a Synthesizer backed by llm.
func New(llm Completer, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{llm: llm, logger: logger}
}

// Synthesize calls the model once and returns the cleaned statement. The
// result is not vetted; callers must pass it through the safety gate.
func (s *Synthesizer) Synthesize(ctx context.Context, question string) (string, error) {
	start := time.Now()
	text, err := s.llm.Complete(ctx, SystemPrompt, UserPrompt(question))
	metrics.SynthesisDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}

	sql := StripCodeFence(text)
	if sql == "" {
		return "", ErrEmptyCompletion
	}
	s.logger.Debug("Synthesized query", "prompt_version", PromptVersion, "sql_length", len(sql))
	return sql, nil
}
