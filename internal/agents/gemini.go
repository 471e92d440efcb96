package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/dyike/PainRadar/config"
)

const defaultGeminiModel = "gemini-2.5-flash"

type GeminiCompleter struct {
	client    *genai.Client
	model     string
	maxTokens int32
	timeout   time.Duration
}

func NewGeminiCompleter(ctx context.Context, cfg *config.Config) (*GeminiCompleter, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, ErrNoModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.GeminiAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	name := cfg.ChatModel
	if name == "" || strings.HasPrefix(name, "deepseek") || strings.HasPrefix(name, "gpt") {
		name = defaultGeminiModel
	}
	log.WithField("model", name).Info("gemini client ready")
	return &GeminiCompleter{
		client:    client,
		model:     name,
		maxTokens: int32(cfg.MaxTokens),
		timeout:   cfg.RequestTimeout(),
	}, nil
}

func (g *GeminiCompleter) Complete(ctx context.Context, systemPrompt, input string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
		MaxOutputTokens:   g.maxTokens,
	}
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(input), config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", ErrEmptyCompletion
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyCompletion
	}
	return sb.String(), nil
}
