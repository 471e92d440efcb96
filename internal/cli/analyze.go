package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyike/PainRadar/config"
	"github.com/dyike/PainRadar/internal/graph"
	"github.com/dyike/PainRadar/internal/logging"
	"github.com/dyike/PainRadar/internal/storage"
	"github.com/dyike/PainRadar/models"
	"github.com/dyike/PainRadar/pkg/app"
	"github.com/dyike/PainRadar/pkg/dataflows"
)

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var (
		params      models.AnalysisParams
		interactive bool
	)
	cmd := &cobra.Command{
		Use:   "analyze [subreddit]",
		Short: "Analyze the pain points of a subreddit",
		Example: `  painradar analyze startups
  painradar analyze r/smallbusiness --posts 10 --sort top --time week
  painradar analyze -i`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				params.Subreddit = dataflows.NormalizeSubreddit(args[0])
			}
			if interactive || params.Subreddit == "" {
				var err error
				if params, err = PromptForParams(params); err != nil {
					return err
				}
				ok, err := PromptForConfirmation(fmt.Sprintf("Analyze r/%s now?", params.Subreddit), true)
				if err != nil || !ok {
					return err
				}
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return runAnalysis(cmd.Context(), cfg, params)
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Ask for every parameter")
	cmd.Flags().IntVar(&params.NumPosts, "posts", 0, "Number of posts to read (default 5, max 50)")
	cmd.Flags().IntVar(&params.CommentsLimit, "comments", 0, "Comments per post (default 5, max 50)")
	cmd.Flags().StringVar(&params.SortCriteria, "sort", "", "Sort: top, new, hot, best or rising")
	cmd.Flags().StringVar(&params.TimeFilter, "time", "", "Time window with --sort top: hour, day, week, month, year or all")
	return cmd
}

func runAnalysis(ctx context.Context, cfg *config.Config, params models.AnalysisParams) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !cfg.Debug {
		logging.Silence(os.Stderr)
	}

	progress := make(chan graph.ProgressEvent, 16)
	a, err := app.Build(ctx, *cfg, app.WithProgress(progress))
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Println(titleStyle.Render(fmt.Sprintf("🔎 Analyzing r/%s", params.Subreddit)))

	resp, err := a.Service.Analyze(ctx, models.AnalyzeRequest{
		SubredditName: params.Subreddit,
		NumPosts:      params.NumPosts,
		CommentsLimit: params.CommentsLimit,
		SortCriteria:  params.SortCriteria,
		TimeFilter:    params.TimeFilter,
	})
	if err != nil {
		return err
	}

	board := newProgressBoard()
	done := make(chan error, 1)
	go func() { done <- a.Service.Wait(ctx) }()

	waitErr := func() error {
		for {
			select {
			case ev := <-progress:
				board.apply(ev)
				fmt.Println(board.line(ev))
			case err := <-done:
				// drain what arrived before the last stage returned
				for {
					select {
					case ev := <-progress:
						board.apply(ev)
						fmt.Println(board.line(ev))
					default:
						return err
					}
				}
			}
		}
	}()
	if waitErr != nil {
		return waitErr
	}

	turns, err := a.Service.History(ctx, resp.SessionID, 1)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		return errors.New("analysis finished without a report")
	}
	fmt.Println()
	fmt.Println(board.summary())
	fmt.Println()
	// the report is printed as produced, without wrapping or styling
	fmt.Println(turns[0].AgentResponse)
	return nil
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <subreddit>",
		Short: "Check that a subreddit exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			snapshot := dataflows.NewRedditClient(cfg).CheckExists(cmd.Context(), args[0])
			fmt.Println(renderSnapshot(snapshot))
			if !snapshot.Exists {
				os.Exit(2)
			}
			return nil
		},
	}
}

func newSolutionsCmd(opts *rootOptions) *cobra.Command {
	var (
		subreddit string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "solutions",
		Short: "List stored exceptional solutions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			store, err := storage.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			solutions, err := store.QuerySolutions(cmd.Context(), dataflows.NormalizeSubreddit(subreddit), limit)
			if err != nil {
				return err
			}
			fmt.Println(renderSolutions(solutions))
			return nil
		},
	}
	cmd.Flags().StringVarP(&subreddit, "subreddit", "s", "", "Only solutions from this subreddit")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of solutions (max 100)")
	return cmd
}
