// Package ai provides the AI client interface and implementations.
package ai

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/deploy-doctor/internal/domain"
)

// DefaultPromptBuilder implements PromptBuilder with templated prompts.
type DefaultPromptBuilder struct {
	systemPrompt string
	templates    map[domain.Variant]*template.Template
}

// systemPromptText defines the AI's role and behavior.
const systemPromptText = `You are a senior DevOps engineer who helps people self-host n8n and small Node.js services on container platforms such as Render, Railway, Hugging Face Spaces and plain Docker hosts.

Guidelines:
- Read the log carefully and name the concrete failing step.
- Prefer the smallest change that makes the deployment work.
- Mention the exact environment variables, file paths and commands involved.
- Never invent secrets; use placeholders such as <YOUR_ENCRYPTION_KEY>.
- Write every human-readable field in {{.Language}}. Keep code, file names and identifiers unchanged.

Your answer is parsed by a program. Return only the JSON object described by the response schema.`

const fileFixTemplate = `Analyze the following deployment build error. Explain why it happened, give step-by-step instructions to fix it, and provide the complete corrected configuration files (for example Dockerfile, docker-compose.yml, render.yaml, .dockerignore).

Return:
- explanation: a clear explanation of why this error occurred
- solution: step-by-step instructions to fix it
- files: every file to create or replace, each with name, language and full content

Error log:
---
{{.LogText}}
---
{{if .Context}}
Project context:
{{.Context}}
{{end}}{{if .Hints}}
Known signatures detected in the log:
{{range .Hints}}- {{.}}
{{end}}{{end}}`

const logDiagnosisTemplate = `Diagnose the following deployment log. Identify what went wrong, list the probable causes from most to least likely, and suggest concrete fixes.

Return:
- diagnosis: a short summary of the failure
- probableCauses: probable causes, most likely first
- suggestedFixes: fixes in the order they should be tried, each with title, description and optional code (a command or config snippet)

Log:
---
{{.LogText}}
---
{{if .Context}}
Deployment context:
{{.Context}}
{{end}}{{if .Hints}}
Known signatures detected in the log:
{{range .Hints}}- {{.}}
{{end}}{{end}}`

// NewDefaultPromptBuilder creates a prompt builder answering in the given language.
func NewDefaultPromptBuilder(language string) (*DefaultPromptBuilder, error) {
	language = strings.TrimSpace(language)
	if language == "" {
		language = "English"
	}

	system, err := template.New("system").Parse(systemPromptText)
	if err != nil {
		return nil, fmt.Errorf("parse system prompt: %w", err)
	}
	var buf bytes.Buffer
	if err := system.Execute(&buf, struct{ Language string }{language}); err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	templates := make(map[domain.Variant]*template.Template, 2)
	for variant, text := range map[domain.Variant]string{
		domain.VariantFileFix:      fileFixTemplate,
		domain.VariantLogDiagnosis: logDiagnosisTemplate,
	} {
		tmpl, err := template.New(string(variant)).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse %s prompt: %w", variant, err)
		}
		templates[variant] = tmpl
	}

	return &DefaultPromptBuilder{
		systemPrompt: buf.String(),
		templates:    templates,
	}, nil
}

// BuildSystemPrompt returns the system prompt with the language policy applied.
func (p *DefaultPromptBuilder) BuildSystemPrompt() string {
	return p.systemPrompt
}

// BuildUserPrompt constructs the user prompt for the requested variant.
func (p *DefaultPromptBuilder) BuildUserPrompt(in Input) (string, error) {
	tmpl, ok := p.templates[in.Variant]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownVariant, in.Variant)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, in); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", in.Variant, err)
	}

	return buf.String(), nil
}
