package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dyike/PainRadar/models"
)

func analysisFixture() *models.PainAnalysis {
	return &models.PainAnalysis{
		AnalysisSuccess: true,
		Subreddit:       "smallbusiness",
		TopPains: []models.PainPoint{
			{PainType: "invoicing", Score: 27.9, Description: "Chasing unpaid invoices."},
			{PainType: "finding clients", Score: 8.7, Description: "No steady lead flow."},
		},
	}
}

const validRecommendations = `{"recommendations": [
  {"pain_type": "Invoicing", "solutions": [
    {"title": "InvoiceBot", "type": "saas", "description": "Automated reminders.", "complexity": "Medium", "estimated_cost": 5000, "estimated_duration": "6 weeks"},
    {"title": "Late payment kit", "type": "Digital Product", "description": "Templates.", "complexity": "low", "estimated_cost": "800 €", "estimated_duration": "1 week"},
    {"title": "Cashflow course", "type": "online course", "description": "Video course.", "complexity": "easy", "estimated_cost": "1,500", "estimated_duration": "3 weeks"}
  ]},
  {"pain_type": "finding clients", "solutions": [
    {"title": "Lead finder", "type": "SaaS", "description": "Scrapes leads.", "complexity": "high", "estimated_cost": 12000, "estimated_duration": "3 months"},
    {"title": "Cold email playbook", "type": "content", "description": "Guide.", "complexity": "low", "estimated_cost": 300, "estimated_duration": "1 week"},
    {"title": "Niche ads", "type": "marketing", "description": "Agency offer.", "complexity": "moderate", "estimated_cost": 2000, "estimated_duration": "2 weeks"}
  ]}
]}`

func TestRecommenderNormalizes(t *testing.T) {
	llm := &scriptedCompleter{replies: []string{validRecommendations}}
	recs, err := NewRecommender(llm, "EUR").Recommend(context.Background(), analysisFixture())
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(llm.calls) != 1 {
		t.Fatalf("expected a single model call, got %d", len(llm.calls))
	}
	if !strings.Contains(llm.calls[0].system, "cost to build it in EUR") {
		t.Fatalf("currency not injected in prompt")
	}
	if len(recs.Recommendations) != 2 || recs.Recommendations[0].PainType != "invoicing" {
		t.Fatalf("unexpected sets %+v", recs.Recommendations)
	}

	inv := recs.Recommendations[0].Solutions
	if inv[0].Type != models.SolutionSaaS || inv[0].Complexity != models.ComplexityMedium {
		t.Fatalf("first solution not normalised: %+v", inv[0])
	}
	if inv[1].Type != models.SolutionDigital || inv[1].EstimatedCost.String() != "800" {
		t.Fatalf("second solution not normalised: %+v", inv[1])
	}
	if inv[2].Type != models.SolutionTraining || inv[2].Complexity != models.ComplexityLow || inv[2].EstimatedCost.String() != "1500" {
		t.Fatalf("third solution not normalised: %+v", inv[2])
	}
}

func TestRecommenderReasksOnce(t *testing.T) {
	tooFew := `{"recommendations": [{"pain_type": "invoicing", "solutions": [{"title": "Only one", "type": "SaaS", "complexity": "low"}]}]}`
	llm := &scriptedCompleter{replies: []string{tooFew, validRecommendations}}

	recs, err := NewRecommender(llm, "EUR").Recommend(context.Background(), analysisFixture())
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(llm.calls) != 2 {
		t.Fatalf("expected a corrective call, got %d calls", len(llm.calls))
	}
	if !strings.Contains(llm.calls[1].input, "previous reply was rejected") {
		t.Fatalf("corrective input does not explain the problem: %s", llm.calls[1].input)
	}
	for _, set := range recs.Recommendations {
		if len(set.Solutions) < MinSolutionsPerPain {
			t.Fatalf("pain %s has %d solutions", set.PainType, len(set.Solutions))
		}
	}
}

func TestRecommenderGivesUp(t *testing.T) {
	bad := `{"recommendations": [{"pain_type": "invoicing", "solutions": []}]}`
	llm := &scriptedCompleter{replies: []string{bad, bad}}
	_, err := NewRecommender(llm, "EUR").Recommend(context.Background(), analysisFixture())
	if !errors.Is(err, ErrRecommendationFailed) {
		t.Fatalf("expected ErrRecommendationFailed, got %v", err)
	}
	if len(llm.calls) != 2 {
		t.Fatalf("expected exactly two attempts, got %d", len(llm.calls))
	}
}

func TestRecommenderRejectsUnknownType(t *testing.T) {
	reply := strings.Replace(validRecommendations, `"type": "content"`, `"type": "franchise"`, 1)
	llm := &scriptedCompleter{replies: []string{reply, reply}}
	if _, err := NewRecommender(llm, "EUR").Recommend(context.Background(), analysisFixture()); err == nil {
		t.Fatalf("expected unknown type to be rejected")
	}
}

func TestRecommenderNeedsPains(t *testing.T) {
	_, err := NewRecommender(&scriptedCompleter{}, "EUR").Recommend(context.Background(), &models.PainAnalysis{AnalysisSuccess: true})
	if !errors.Is(err, ErrRecommendationFailed) {
		t.Fatalf("expected ErrRecommendationFailed, got %v", err)
	}
}
