package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/dyike/PainRadar/internal/processing"
	"github.com/dyike/PainRadar/internal/utils"
	"github.com/dyike/PainRadar/models"
)

const MinSolutionsPerPain = 3

var (
	ErrRecommendationFailed  = errors.New("recommendation failed")
	errInvalidRecommendation = errors.New("invalid recommendations")
)

// typeAliases is checked in order; the first alias found in the reply wins.
var typeAliases = []struct{ alias, kind string }{
	{"saas", models.SolutionSaaS},
	{"software", models.SolutionSaaS},
	{"digital", models.SolutionDigital},
	{"product", models.SolutionDigital},
	{"content", models.SolutionContent},
	{"training", models.SolutionTraining},
	{"course", models.SolutionTraining},
	{"marketing", models.SolutionMarket},
}

var complexityAliases = map[string]string{
	"low":      models.ComplexityLow,
	"easy":     models.ComplexityLow,
	"medium":   models.ComplexityMedium,
	"moderate": models.ComplexityMedium,
	"high":     models.ComplexityHigh,
	"hard":     models.ComplexityHigh,
	"complex":  models.ComplexityHigh,
}

type Recommender struct {
	llm    Completer
	prompt string
}

func NewRecommender(llm Completer, currency string) *Recommender {
	p, err := utils.LoadPromptWithContext(utils.PromptRecommendation, map[string]string{"currency": currency})
	if err != nil {
		panic(err)
	}
	return &Recommender{llm: llm, prompt: p}
}

// Recommend asks for at least three opportunities per pain. A reply that does
// not validate is sent back once with the problem spelled out.
func (r *Recommender) Recommend(ctx context.Context, analysis *models.PainAnalysis) (*models.Recommendations, error) {
	if analysis == nil || !analysis.AnalysisSuccess || len(analysis.TopPains) == 0 {
		return nil, fmt.Errorf("%w: no pains to work from", ErrRecommendationFailed)
	}
	logger := log.WithFields(log.Fields{"stage": "recommendation", "subreddit": analysis.Subreddit})

	type painInput struct {
		PainType    string  `json:"pain_type"`
		Score       float64 `json:"score"`
		Description string  `json:"description"`
	}
	pains := make([]painInput, 0, len(analysis.TopPains))
	for _, p := range analysis.TopPains {
		pains = append(pains, painInput{p.PainType, p.Score, p.Description})
	}
	body, err := json.Marshal(map[string]any{"subreddit": analysis.Subreddit, "pains": pains})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecommendationFailed, err)
	}
	input := string(body)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		reply, err := r.llm.Complete(ctx, r.prompt, input)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRecommendationFailed, err)
		}
		recs, err := parseRecommendations(reply, analysis)
		if err == nil {
			logger.WithField("attempt", attempt+1).Info("recommendations ready")
			return recs, nil
		}
		lastErr = err
		logger.WithError(err).Warn("recommendations rejected")
		input = fmt.Sprintf("%s\n\nYour previous reply was rejected: %v.\nReply again with the corrected JSON object only.", body, err)
	}
	return nil, fmt.Errorf("%w: %v", ErrRecommendationFailed, lastErr)
}

func parseRecommendations(reply string, analysis *models.PainAnalysis) (*models.Recommendations, error) {
	var parsed struct {
		Recommendations []models.RecommendationSet `json:"recommendations"`
	}
	if err := processing.DecodeModelJSON(reply, &parsed); err != nil {
		return nil, err
	}

	byPain := make(map[string]models.RecommendationSet, len(parsed.Recommendations))
	for _, set := range parsed.Recommendations {
		byPain[painKey(set.PainType)] = set
	}

	out := &models.Recommendations{Subreddit: analysis.Subreddit}
	var problems []string
	for _, pain := range analysis.TopPains {
		set, ok := byPain[painKey(pain.PainType)]
		if !ok {
			problems = append(problems, fmt.Sprintf("no recommendations for %q", pain.PainType))
			continue
		}
		solutions, err := normalizeSolutions(set.Solutions)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%q: %v", pain.PainType, err))
			continue
		}
		out.Recommendations = append(out.Recommendations, models.RecommendationSet{
			PainType:  pain.PainType,
			Solutions: solutions,
		})
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", errInvalidRecommendation, strings.Join(problems, "; "))
	}
	return out, nil
}

func normalizeSolutions(in []models.Solution) ([]models.Solution, error) {
	out := make([]models.Solution, 0, len(in))
	for _, s := range in {
		s.Title = strings.TrimSpace(s.Title)
		if s.Title == "" {
			continue
		}
		t, ok := normalizeSolutionType(s.Type)
		if !ok {
			return nil, fmt.Errorf("unknown type %q for %q", s.Type, s.Title)
		}
		s.Type = t
		c, ok := complexityAliases[strings.ToLower(strings.TrimSpace(s.Complexity))]
		if !ok {
			return nil, fmt.Errorf("unknown complexity %q for %q", s.Complexity, s.Title)
		}
		s.Complexity = c
		out = append(out, s)
	}
	if len(out) < MinSolutionsPerPain {
		return nil, fmt.Errorf("%d solutions, at least %d required", len(out), MinSolutionsPerPain)
	}
	return out, nil
}

func normalizeSolutionType(v string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(v))
	for _, a := range typeAliases {
		if strings.Contains(key, a.alias) {
			return a.kind, true
		}
	}
	return "", false
}

func painKey(v string) string {
	return strings.ToLower(strings.Join(strings.Fields(v), " "))
}
