package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	log "github.com/sirupsen/logrus"

	"github.com/dyike/PainRadar/config"
	"github.com/dyike/PainRadar/consts"
	"github.com/dyike/PainRadar/internal/storage"
	"github.com/dyike/PainRadar/internal/tools"
	"github.com/dyike/PainRadar/internal/utils"
	"github.com/dyike/PainRadar/models"
	"github.com/dyike/PainRadar/pkg/dataflows"
)

// HistoryWindow is how many past turns are replayed to the assistant.
const HistoryWindow = 10

// Assistant answers messages that do not start an analysis.
type Assistant interface {
	Reply(ctx context.Context, history []models.ConversationTurn, message string) (string, error)
}

const HelpText = `I analyse Reddit communities to find the problems their members keep complaining about, and turn them into business opportunities.

To start, name a subreddit, for example "analyze r/smallbusiness".
You can also set:
- the number of posts (default 5, at most 50)
- the number of comments per post (default 5, at most 50)
- the sort criteria: top (default), new, hot, best or rising
- the period for top: hour, day, week, month (default), year or all`

// NewAssistant builds the best assistant the configuration allows: a tool
// calling agent, a plain completion, or the static help text.
func NewAssistant(ctx context.Context, cfg *config.Config, llm Completer, source dataflows.RedditSource, store storage.SolutionStore) Assistant {
	if cfg.LLMProvider != config.ProviderGemini {
		if cm, err := NewChatModel(ctx, cfg); err == nil {
			a, err := NewReactAssistant(ctx, cm, tools.AssistantTools(source, store), cfg.AgentMaxSteps)
			if err == nil {
				return a
			}
			log.WithError(err).Warn("react assistant unavailable")
		}
	}
	if llm != nil {
		return NewCompleterAssistant(llm)
	}
	return StaticAssistant{}
}

type assistantInput struct {
	History []models.ConversationTurn
	Message string
}

type ReactAssistant struct {
	runnable compose.Runnable[*assistantInput, *schema.Message]
	tpl      prompt.ChatTemplate
	system   string
}

func NewReactAssistant(ctx context.Context, cm model.ToolCallingChatModel, assistantTools []tool.BaseTool, maxSteps int) (*ReactAssistant, error) {
	a := &ReactAssistant{
		tpl: prompt.FromMessages(schema.FString,
			schema.SystemMessage("{system_message}"),
			schema.MessagesPlaceholder("history", true),
			schema.UserMessage("{user_input}"),
		),
		system: utils.MustLoadPrompt(utils.PromptAssistant),
	}

	agent, err := react.NewAgent(ctx, &react.AgentConfig{
		MaxStep:          maxSteps,
		ToolCallingModel: cm,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: assistantTools,
		},
		StreamToolCallChecker: ToolCallChecker,
	})
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	agentLambda, err := compose.AnyLambda(agent.Generate, agent.Stream, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create agent lambda: %w", err)
	}

	g := compose.NewGraph[*assistantInput, *schema.Message]()
	_ = g.AddLambdaNode("load", compose.InvokableLambda(a.load))
	_ = g.AddLambdaNode("agent", agentLambda)
	_ = g.AddEdge(compose.START, "load")
	_ = g.AddEdge("load", "agent")
	_ = g.AddEdge("agent", compose.END)

	a.runnable, err = g.Compile(ctx, compose.WithGraphName(consts.AssistantGraph))
	if err != nil {
		return nil, fmt.Errorf("compile assistant: %w", err)
	}
	return a, nil
}

func (a *ReactAssistant) load(ctx context.Context, in *assistantInput) ([]*schema.Message, error) {
	return a.tpl.Format(ctx, map[string]any{
		"system_message": a.system,
		"history":        historyMessages(in.History),
		"user_input":     in.Message,
	})
}

func (a *ReactAssistant) Reply(ctx context.Context, history []models.ConversationTurn, message string) (string, error) {
	msg, err := a.runnable.Invoke(ctx, &assistantInput{History: history, Message: message})
	if err != nil {
		return "", err
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return msg.Content, nil
}

func historyMessages(turns []models.ConversationTurn) []*schema.Message {
	if len(turns) > HistoryWindow {
		turns = turns[len(turns)-HistoryWindow:]
	}
	out := make([]*schema.Message, 0, len(turns)*2)
	for _, t := range turns {
		out = append(out, schema.UserMessage(t.UserMessage))
		if t.AgentResponse != "" {
			out = append(out, schema.AssistantMessage(t.AgentResponse, nil))
		}
	}
	return out
}

// CompleterAssistant is used with providers that have no tool calling model.
// The history is replayed as a transcript in the user input.
type CompleterAssistant struct {
	llm    Completer
	system string
}

func NewCompleterAssistant(llm Completer) *CompleterAssistant {
	return &CompleterAssistant{llm: llm, system: utils.MustLoadPrompt(utils.PromptAssistant)}
}

func (a *CompleterAssistant) Reply(ctx context.Context, history []models.ConversationTurn, message string) (string, error) {
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}
	var sb strings.Builder
	if len(history) > 0 {
		sb.WriteString("Conversation so far:\n")
		for _, t := range history {
			fmt.Fprintf(&sb, "User: %s\nAssistant: %s\n", t.UserMessage, t.AgentResponse)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("User: ")
	sb.WriteString(message)
	return a.llm.Complete(ctx, a.system, sb.String())
}

type StaticAssistant struct{}

func (StaticAssistant) Reply(context.Context, []models.ConversationTurn, string) (string, error) {
	return HelpText, nil
}
