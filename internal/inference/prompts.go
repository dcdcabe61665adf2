package inference

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// TaskPrompt holds the prompt and model parameters for one inference task
type TaskPrompt struct {
	Temperature  float32 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	System       string  `yaml:"system"`
	UserTemplate string  `yaml:"user_template"`
}

// PromptConfig holds all prompts used by the inference client
type PromptConfig struct {
	Classify TaskPrompt `yaml:"classify"`
	Extract  TaskPrompt `yaml:"extract"`
	Validate TaskPrompt `yaml:"validate"`
}

// ForTask returns the prompt configured for the given task
func (p *PromptConfig) ForTask(task Task) (TaskPrompt, error) {
	switch task {
	case TaskClassify:
		return p.Classify, nil
	case TaskExtract:
		return p.Extract, nil
	case TaskValidate:
		return p.Validate, nil
	default:
		return TaskPrompt{}, fmt.Errorf("no prompt for task %s", task)
	}
}

// LoadPrompts loads prompt configuration from a YAML file
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	data, err := os.ReadFile(promptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var prompts PromptConfig
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}

	return &prompts, nil
}

// renderTemplate renders a prompt template with the provided data
func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// DefaultPrompts returns the built-in prompt set, used when no prompts
// file is configured
func DefaultPrompts() *PromptConfig {
	return &PromptConfig{
		Classify: TaskPrompt{
			Temperature: 0.1,
			MaxTokens:   600,
			System:      "You are an expert document analyst. Classify business documents by structure, terminology and content. Always respond with valid JSON only.",
			UserTemplate: `Analyze this document and classify it.

Document Content:
{{.Content}}

Identify the document type from these options:
- invoice: has invoice number, items, prices, totals
- contract: has parties, terms, obligations, signatures
- purchase_order: has PO number, vendor, items to purchase
- technical_specification: has product specs, requirements
- mixed: contains multiple document types
- unknown: cannot determine type

Return ONLY a JSON object with this structure:
{"document_type": "...", "confidence": 0.0, "reasoning": "...", "alternative_types": []}`,
		},
		Extract: TaskPrompt{
			Temperature: 0.1,
			MaxTokens:   900,
			System:      "You are a data extraction specialist. Extract fields from business documents accurately. Always respond with valid JSON only.",
			UserTemplate: `Extract data from this {{.DocumentType}}:

Document:
{{.Content}}

Extract these fields: {{.Fields}}

Return ONLY a JSON object with this structure:
{"fields": {"field_name": {"value": "...", "confidence": 0.0}}, "confidence": 0.0, "warnings": []}`,
		},
		Validate: TaskPrompt{
			Temperature: 0.1,
			MaxTokens:   600,
			System:      "You are a quality assurance specialist. Validate extracted data against the source document for consistency and completeness. Always respond with valid JSON only.",
			UserTemplate: `Validate this extracted data against the original document.

Extracted:
{{.Extracted}}

Original:
{{.Content}}

Check that values match the document, that there are no conflicts,
that critical fields are present, and that the data is logically
consistent.

Return ONLY a JSON object with this structure:
{"is_valid": true, "conflicts": [], "missing_fields": [], "confidence": 0.0, "warnings": []}`,
		},
	}
}
