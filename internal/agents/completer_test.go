package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/PainRadar/config"
)

type fakeChatModel struct {
	reply    string
	err      error
	received []*schema.Message
	deadline bool
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.received = input
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func TestChatModelCompleterKeepsBraces(t *testing.T) {
	fake := &fakeChatModel{reply: `{"ok": true}`}
	c := NewChatModelCompleter(fake, time.Second)

	system := `Reply with {"pains": []} only.`
	input := `{"subreddit": "golang", "posts": [{"title": "a {b}"}]}`
	out, err := c.Complete(context.Background(), system, input)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"ok": true}` {
		t.Fatalf("unexpected output %q", out)
	}
	if len(fake.received) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(fake.received))
	}
	if fake.received[0].Role != schema.System || fake.received[0].Content != system {
		t.Fatalf("system prompt altered: %+v", fake.received[0])
	}
	if fake.received[1].Role != schema.User || fake.received[1].Content != input {
		t.Fatalf("user input altered: %+v", fake.received[1])
	}
	if !fake.deadline {
		t.Fatalf("per-call timeout not applied")
	}
}

func TestChatModelCompleterErrors(t *testing.T) {
	c := NewChatModelCompleter(&fakeChatModel{err: errors.New("boom")}, 0)
	if _, err := c.Complete(context.Background(), "s", "i"); err == nil {
		t.Fatalf("expected model error")
	}
	c = NewChatModelCompleter(&fakeChatModel{reply: "  "}, 0)
	if _, err := c.Complete(context.Background(), "s", "i"); !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestCompleterFunc(t *testing.T) {
	var c Completer = CompleterFunc(func(_ context.Context, system, input string) (string, error) {
		return system + "|" + input, nil
	})
	out, _ := c.Complete(context.Background(), "a", "b")
	if out != "a|b" {
		t.Fatalf("unexpected %q", out)
	}
}

func TestNewCompleterWithoutKey(t *testing.T) {
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	for _, provider := range []string{config.ProviderDeepSeek, config.ProviderOpenAI, config.ProviderGemini} {
		cfg.LLMProvider = provider
		if _, err := NewCompleter(context.Background(), cfg); !errors.Is(err, ErrNoModel) {
			t.Fatalf("%s: expected ErrNoModel, got %v", provider, err)
		}
	}
}
