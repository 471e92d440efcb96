package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	log "github.com/sirupsen/logrus"

	"github.com/dyike/PainRadar/config"
)

var ErrEmptyCompletion = errors.New("language model returned an empty reply")

// Completer is the only capability the stages need from a language model:
// a system prompt and one user input in, text out.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, input string) (string, error)
}

type CompleterFunc func(ctx context.Context, systemPrompt, input string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, systemPrompt, input string) (string, error) {
	return f(ctx, systemPrompt, input)
}

// ChatModelCompleter adapts an eino chat model to Completer.
type ChatModelCompleter struct {
	model   model.BaseChatModel
	tpl     prompt.ChatTemplate
	timeout time.Duration
}

func NewChatModelCompleter(m model.BaseChatModel, timeout time.Duration) *ChatModelCompleter {
	return &ChatModelCompleter{
		model: m,
		// Prompt texts travel as values so their JSON braces are never parsed.
		tpl: prompt.FromMessages(schema.FString,
			schema.SystemMessage("{system_message}"),
			schema.UserMessage("{user_input}"),
		),
		timeout: timeout,
	}
}

func (c *ChatModelCompleter) Complete(ctx context.Context, systemPrompt, input string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages, err := c.tpl.Format(ctx, map[string]any{
		"system_message": systemPrompt,
		"user_input":     input,
	})
	if err != nil {
		return "", fmt.Errorf("format prompt: %w", err)
	}

	msg, err := c.model.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return msg.Content, nil
}

// NewCompleter picks the backend for the configured provider. A missing API
// key yields ErrNoModel so callers can degrade to rule-based behaviour.
func NewCompleter(ctx context.Context, cfg *config.Config) (Completer, error) {
	if cfg.LLMProvider == config.ProviderGemini {
		return NewGeminiCompleter(ctx, cfg)
	}
	m, err := NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"provider": cfg.LLMProvider,
		"model":    cfg.ChatModel,
	}).Info("chat model ready")
	return NewChatModelCompleter(m, cfg.RequestTimeout()), nil
}
