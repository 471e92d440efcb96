package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/template"

	log "github.com/sirupsen/logrus"

	"github.com/dyike/PainRadar/config"
	"github.com/dyike/PainRadar/internal/utils"
	"github.com/dyike/PainRadar/models"
)

var ErrReportFailed = errors.New("report generation failed")

// ReportInput is everything the last stage reads from the workflow state.
type ReportInput struct {
	Scrape          *models.ScrapeResult
	Analysis        *models.PainAnalysis
	Recommendations *models.Recommendations
}

type Reporter interface {
	Report(ctx context.Context, in ReportInput) (models.FinalReport, error)
}

// NewReporter returns the reporter of the configured mode. The llm mode needs
// a Completer and falls back to the template without one.
func NewReporter(cfg *config.Config, llm Completer) Reporter {
	if cfg.ReportMode == config.ReportModeLLM && llm != nil {
		return NewLLMReporter(llm, cfg.ReportCurrency)
	}
	return NewTemplateReporter(cfg.ReportCurrency)
}

const reportLayout = `Here is the analysis report for subreddit r/{{.Subreddit}}:
Posts analyzed: {{.Posts}}
Comments analyzed: {{.Comments}}

**Recurring problems/frustrations:**
{{range $i, $p := .Pains}}{{inc $i}}. {{$p.PainType}} (score: {{score $p.Score}}) : {{$p.Description}}
{{end}}
**Business opportunities:**
{{range .Sections}}
{{.PainType}}:
{{range .Solutions}}- Title: {{.Title}}
  Type: {{.Type}}
  Detailed description: {{.Description}}
  Complexity: {{.Complexity}}
  Estimated cost: {{.EstimatedCost.String}} {{$.Currency}}
  Development time: {{.EstimatedDuration}}
{{end}}{{end}}`

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"inc":   func(i int) int { return i + 1 },
	"score": func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
}).Parse(reportLayout))

type reportView struct {
	Subreddit string
	Posts     int
	Comments  int
	Currency  string
	Pains     []models.PainPoint
	Sections  []models.RecommendationSet
}

// TemplateReporter renders the report without a model, so the same inputs
// always give the same text.
type TemplateReporter struct {
	currency string
}

func NewTemplateReporter(currency string) *TemplateReporter {
	return &TemplateReporter{currency: currency}
}

func (r *TemplateReporter) Report(_ context.Context, in ReportInput) (models.FinalReport, error) {
	view, err := buildView(in, r.currency)
	if err != nil {
		return models.FinalReport{}, err
	}
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, view); err != nil {
		return models.FinalReport{}, fmt.Errorf("%w: %v", ErrReportFailed, err)
	}
	return models.NewFinalReport(strings.TrimRight(buf.String(), "\n")), nil
}

func buildView(in ReportInput, currency string) (*reportView, error) {
	if in.Scrape == nil || in.Analysis == nil || in.Recommendations == nil {
		return nil, fmt.Errorf("%w: missing stage output", ErrReportFailed)
	}

	pains := append([]models.PainPoint(nil), in.Analysis.TopPains...)
	sort.SliceStable(pains, func(i, j int) bool { return pains[i].Score > pains[j].Score })

	sets := make(map[string]models.RecommendationSet, len(in.Recommendations.Recommendations))
	for _, set := range in.Recommendations.Recommendations {
		sets[set.PainType] = set
	}
	sections := make([]models.RecommendationSet, 0, len(pains))
	for _, p := range pains {
		if set, ok := sets[p.PainType]; ok {
			sections = append(sections, set)
		}
	}

	subreddit := in.Scrape.Subreddit
	if subreddit == "" {
		subreddit = in.Analysis.Subreddit
	}
	return &reportView{
		Subreddit: subreddit,
		Posts:     in.Scrape.PostsCount,
		Comments:  in.Scrape.CommentsCount,
		Currency:  currency,
		Pains:     pains,
		Sections:  sections,
	}, nil
}

// LLMReporter lets the model write the report and keeps its text as is.
type LLMReporter struct {
	llm    Completer
	prompt string
}

func NewLLMReporter(llm Completer, currency string) *LLMReporter {
	p := utils.MustLoadPrompt(utils.PromptReport)
	return &LLMReporter{llm: llm, prompt: p + "\nThe currency is " + currency + ".\n"}
}

func (r *LLMReporter) Report(ctx context.Context, in ReportInput) (models.FinalReport, error) {
	view, err := buildView(in, "")
	if err != nil {
		return models.FinalReport{}, err
	}
	body, err := json.Marshal(map[string]any{
		"subreddit":       view.Subreddit,
		"posts_count":     view.Posts,
		"comments_count":  view.Comments,
		"top_pains":       view.Pains,
		"recommendations": view.Sections,
	})
	if err != nil {
		return models.FinalReport{}, fmt.Errorf("%w: %v", ErrReportFailed, err)
	}

	text, err := r.llm.Complete(ctx, r.prompt, string(body))
	if err != nil {
		return models.FinalReport{}, fmt.Errorf("%w: %v", ErrReportFailed, err)
	}
	if strings.TrimSpace(text) == "" {
		return models.FinalReport{}, fmt.Errorf("%w: %v", ErrReportFailed, ErrEmptyCompletion)
	}
	log.WithFields(log.Fields{"stage": "report_generation", "subreddit": view.Subreddit}).Info("report written by model")
	return models.NewFinalReport(text), nil
}
