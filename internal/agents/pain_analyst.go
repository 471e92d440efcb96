package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/dyike/PainRadar/consts"
	"github.com/dyike/PainRadar/internal/processing"
	"github.com/dyike/PainRadar/internal/storage"
	"github.com/dyike/PainRadar/internal/utils"
	"github.com/dyike/PainRadar/models"
)

var ErrAnalysisFailed = errors.New("pain analysis failed")

type painReply struct {
	AnalysisSuccess *bool                      `json:"analysis_success"`
	Pains           []models.PainFinding       `json:"pains"`
	Solutions       []models.SolutionCandidate `json:"exceptional_solutions"`
	ErrorMessage    string                     `json:"error_message"`
}

// PainAnalyst asks the model to name the recurring pains of a corpus, scores
// them locally and keeps the exceptional solutions it points at.
type PainAnalyst struct {
	llm    Completer
	store  storage.SolutionStore
	prompt string
}

func NewPainAnalyst(llm Completer, store storage.SolutionStore) *PainAnalyst {
	return &PainAnalyst{
		llm:    llm,
		store:  store,
		prompt: utils.MustLoadPrompt(utils.PromptPainAnalysis),
	}
}

func (a *PainAnalyst) Analyze(ctx context.Context, scrape *models.ScrapeResult) (*models.PainAnalysis, error) {
	if scrape == nil || !scrape.ScrapingSuccess {
		return a.fail("", errors.New("no scraped data to analyse"))
	}
	logger := log.WithFields(log.Fields{"stage": "pain_analysis", "subreddit": scrape.Subreddit})

	input, err := json.Marshal(struct {
		Subreddit string        `json:"subreddit"`
		Posts     []models.Post `json:"posts"`
	}{scrape.Subreddit, scrape.Posts})
	if err != nil {
		return a.fail(scrape.Subreddit, err)
	}

	reply, err := a.llm.Complete(ctx, a.prompt, string(input))
	if err != nil {
		return a.fail(scrape.Subreddit, err)
	}
	var parsed painReply
	if err := processing.DecodeModelJSON(reply, &parsed); err != nil {
		return a.fail(scrape.Subreddit, err)
	}
	if parsed.AnalysisSuccess != nil && !*parsed.AnalysisSuccess {
		msg := parsed.ErrorMessage
		if msg == "" {
			msg = "model could not analyse the corpus"
		}
		return a.fail(scrape.Subreddit, errors.New(msg))
	}

	pains := make([]models.PainPoint, 0, len(parsed.Pains))
	for _, f := range parsed.Pains {
		f.PainType = strings.TrimSpace(f.PainType)
		if f.PainType == "" {
			continue
		}
		score, err := processing.ScoreFinding(f)
		if err != nil {
			logger.WithError(err).WithField("pain_type", f.PainType).Warn("pain dropped")
			continue
		}
		pains = append(pains, models.PainPoint{
			PainType:    f.PainType,
			Score:       score.Total,
			Description: f.Description,
			Frequency:   f.Frequency,
			Breakdown:   score,
		})
	}
	if len(pains) == 0 {
		return a.fail(scrape.Subreddit, errors.New("model reported no usable pain"))
	}
	sort.SliceStable(pains, func(i, j int) bool { return pains[i].Score > pains[j].Score })

	stored := a.storeSolutions(ctx, scrape, parsed.Solutions)
	logger.WithFields(log.Fields{"pains": len(pains), "solutions_stored": stored}).Info("pain analysis done")

	return &models.PainAnalysis{
		AnalysisSuccess: true,
		Subreddit:       scrape.Subreddit,
		TopPains:        pains,
		SolutionsStored: stored,
	}, nil
}

// storeSolutions persists the candidates that point at a real comment above
// the score threshold. Author, post and score always come from Reddit.
func (a *PainAnalyst) storeSolutions(ctx context.Context, scrape *models.ScrapeResult, candidates []models.SolutionCandidate) int {
	if a.store == nil || len(candidates) == 0 {
		return 0
	}
	comments := make(map[string]models.Comment)
	for _, p := range scrape.Posts {
		for _, c := range p.Comments {
			comments[c.ID] = c
		}
	}

	stored := 0
	for _, cand := range candidates {
		c, ok := comments[strings.TrimPrefix(strings.TrimSpace(cand.CommentID), "t1_")]
		if !ok || c.Score <= consts.ExceptionalScoreThreshold {
			continue
		}
		text := strings.TrimSpace(cand.SolutionText)
		if text == "" {
			text = c.Body
		}
		sol := &models.ExceptionalSolution{
			CommentID:    c.ID,
			PostID:       c.PostID,
			Author:       c.Author,
			SolutionText: text,
			Score:        c.Score,
			PainType:     cand.PainType,
			Intensity:    clampIntensity(cand.Intensity),
			Subreddit:    scrape.Subreddit,
		}
		if err := a.store.UpsertSolution(ctx, sol); err != nil {
			log.WithError(err).WithField("comment_id", c.ID).Warn("store exceptional solution")
			continue
		}
		stored++
	}
	return stored
}

func (a *PainAnalyst) fail(subreddit string, err error) (*models.PainAnalysis, error) {
	return &models.PainAnalysis{
		AnalysisSuccess: false,
		Subreddit:       subreddit,
		ErrorMessage:    err.Error(),
	}, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
}

func clampIntensity(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}
