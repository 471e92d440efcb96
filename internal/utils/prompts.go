package utils

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed prompts
var promptFiles embed.FS

// Prompt names, relative to prompts/ and without the .md suffix.
const (
	PromptIntent         = "router/intent"
	PromptAssistant      = "router/assistant"
	PromptPainAnalysis   = "stages/pain_analysis"
	PromptRecommendation = "stages/recommendation"
	PromptReport         = "stages/report"
)

// LoadPrompt loads a prompt from the embedded markdown files
func LoadPrompt(name string) (string, error) {
	content, err := promptFiles.ReadFile(fmt.Sprintf("prompts/%s.md", name))
	if err != nil {
		return "", fmt.Errorf("failed to load prompt %s: %w", name, err)
	}
	return string(content), nil
}

// LoadPromptWithContext loads a prompt and fills its {name} placeholders.
// Braces that are not a known key, as in the JSON examples, stay as written.
func LoadPromptWithContext(name string, vars map[string]string) (string, error) {
	content, err := LoadPrompt(name)
	if err != nil {
		return "", err
	}
	pairs := make([]string, 0, 2*len(vars))
	for key, value := range vars {
		pairs = append(pairs, "{"+key+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(content), nil
}

// MustLoadPrompt is for prompts that ship with the binary.
func MustLoadPrompt(name string) string {
	content, err := LoadPrompt(name)
	if err != nil {
		panic(err)
	}
	return content
}
