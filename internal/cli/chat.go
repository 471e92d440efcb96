package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dyike/PainRadar/internal/agents"
	"github.com/dyike/PainRadar/internal/logging"
	"github.com/dyike/PainRadar/models"
	"github.com/dyike/PainRadar/pkg/app"
	"github.com/dyike/PainRadar/pkg/bridge"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant and run analyses from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), opts, sessionID)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Resume a conversation by session id")
	return cmd
}

// chatSession is the interactive loop over one conversation.
type chatSession struct {
	app       *app.App
	sessionID string
}

func runChat(ctx context.Context, opts *rootOptions, sessionID string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	if !cfg.Debug {
		logging.Silence(os.Stderr)
	}

	a, err := app.Build(ctx, *cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if sessionID == "" {
		sessionID = "cli_" + uuid.NewString()
	}
	s := &chatSession{app: a, sessionID: sessionID}
	unsubscribe := a.Events.Subscribe(bridge.NoticeTopic(sessionID), func(_ string, payload string) {
		fmt.Println(inProgressStyle.Render("⏳ " + payload))
	})
	defer unsubscribe()

	return s.loop(ctx)
}

func (s *chatSession) loop(ctx context.Context) error {
	fmt.Println(titleStyle.Render("💬 PainRadar"))
	fmt.Println(pendingStyle.Render(fmt.Sprintf("Session %s. Type 'help' for commands, 'exit' to quit.", s.sessionID)))
	s.printHistory(ctx)

	for {
		msg, err := PromptForMessage()
		if errors.Is(err, terminal.InterruptErr) {
			fmt.Println("\n👋 Goodbye!")
			return nil
		}
		if err != nil {
			return err
		}

		switch strings.ToLower(msg) {
		case "":
			continue
		case "exit", "quit":
			fmt.Println("👋 Goodbye!")
			return nil
		case "help":
			s.showHelp()
			continue
		case "/clear":
			n, err := s.app.Service.ClearHistory(ctx, s.sessionID)
			if err != nil {
				fmt.Println(errorStyle.Render("✘ " + err.Error()))
				continue
			}
			fmt.Println(completedStyle.Render(fmt.Sprintf("✔ history cleared (%d turns)", n)))
			continue
		case "/history":
			s.printHistory(ctx)
			continue
		}

		resp, err := s.app.Service.Chat(ctx, models.ChatRequest{Message: msg, SessionID: s.sessionID})
		if err != nil {
			fmt.Println(errorStyle.Render("✘ " + err.Error()))
			continue
		}
		fmt.Printf("%s %s\n\n", agentStyle.Render("PainRadar:"), resp.Response)
	}
}

func (s *chatSession) printHistory(ctx context.Context) {
	turns, err := s.app.Service.History(ctx, s.sessionID, 0)
	if err != nil || len(turns) == 0 {
		return
	}
	fmt.Println(headerStyle.Render(fmt.Sprintf("Conversation history (%d turns)", len(turns))))
	for _, t := range turns {
		fmt.Printf("%s %s\n", labelStyle.Render(t.Timestamp.Local().Format("15:04")+" You:"), t.UserMessage)
		fmt.Printf("%s %s\n\n", agentStyle.Render("PainRadar:"), truncate(t.AgentResponse, 400))
	}
}

func (s *chatSession) showHelp() {
	fmt.Println(headerStyle.Render("Commands"))
	fmt.Println("  exit, quit   leave the chat")
	fmt.Println("  /clear       clear this conversation")
	fmt.Println("  /history     show this conversation")
	fmt.Println("  help         this message")
	fmt.Println()
	fmt.Println(agents.HelpText)
}
