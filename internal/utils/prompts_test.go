package utils

import (
	"strings"
	"testing"
)

func TestEmbeddedPromptsLoad(t *testing.T) {
	for _, name := range []string{
		PromptIntent,
		PromptAssistant,
		PromptPainAnalysis,
		PromptRecommendation,
		PromptReport,
	} {
		content, err := LoadPrompt(name)
		if err != nil {
			t.Fatalf("LoadPrompt(%s): %v", name, err)
		}
		if strings.TrimSpace(content) == "" {
			t.Fatalf("prompt %s is empty", name)
		}
	}
}

func TestLoadPromptWithContext(t *testing.T) {
	content, err := LoadPromptWithContext(PromptRecommendation, map[string]string{"currency": "EUR"})
	if err != nil {
		t.Fatalf("LoadPromptWithContext: %v", err)
	}
	if !strings.Contains(content, "build it in EUR") {
		t.Fatalf("currency placeholder not replaced")
	}
	if !strings.Contains(content, `"estimated_cost": 5000`) {
		t.Fatalf("JSON example was altered")
	}
}

func TestLoadPromptMissing(t *testing.T) {
	if _, err := LoadPrompt("nope"); err == nil {
		t.Fatalf("expected error for unknown prompt")
	}
}
