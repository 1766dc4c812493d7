// Package provider implements the engine's generation capability and the
// memory summarization capability against the Anthropic API.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/campushq/studymate/engine"
)

// ErrMissingAPIKey is returned at construction when no API key is supplied.
var ErrMissingAPIKey = errors.New("provider: anthropic api key is required")

const summarizePrompt = `Condense the following note into one short sentence that preserves every concrete fact and preference. Reply with the sentence only.`

// Config configures the Anthropic provider.
type Config struct {
	// APIKey is the Anthropic API key. Required.
	APIKey string

	// Model defaults to claude-sonnet-4-20250514.
	Model string

	// MaxTokens caps response length. Defaults to 1024.
	MaxTokens int64
}

// Anthropic satisfies engine.Completer and memory.Summarizer.
type Anthropic struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// New validates cfg and creates the provider.
func New(cfg Config) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	return &Anthropic{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     anthropic.Model(cfg.Model),
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Complete sends the history plus the current message with the assembled
// system instruction and returns the generated text.
func (a *Anthropic) Complete(ctx context.Context, system string, history []engine.Turn, userMessage string) (string, error) {
	messages := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, turn := range history {
		switch turn.Role {
		case engine.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)))

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages:  messages,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// Summarize compresses free text before memory storage.
func (a *Anthropic) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
		System: []anthropic.TextBlockParam{
			{Text: summarizePrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api: %w", err)
	}

	var summary string
	for _, block := range resp.Content {
		if block.Type == "text" {
			summary += block.Text
		}
	}
	return summary, nil
}
