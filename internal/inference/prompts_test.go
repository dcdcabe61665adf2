package inference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPromptsCoverAllTasks(t *testing.T) {
	prompts := DefaultPrompts()

	for _, task := range []Task{TaskClassify, TaskExtract, TaskValidate} {
		prompt, err := prompts.ForTask(task)
		require.NoError(t, err)
		assert.NotEmpty(t, prompt.System)
		assert.NotEmpty(t, prompt.UserTemplate)
		assert.Greater(t, prompt.MaxTokens, 0)
	}

	_, err := prompts.ForTask(Task("summarize"))
	assert.Error(t, err)
}

func TestLoadPrompts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	content := `
classify:
  temperature: 0.2
  max_tokens: 300
  system: classify system
  user_template: "Document: {{.Content}}"
extract:
  temperature: 0.1
  max_tokens: 500
  system: extract system
  user_template: "Type: {{.DocumentType}}, fields: {{.Fields}}"
validate:
  temperature: 0.1
  max_tokens: 300
  system: validate system
  user_template: "Check {{.Extracted}} against {{.Content}}"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	prompts, err := LoadPrompts(path)
	require.NoError(t, err)

	assert.Equal(t, float32(0.2), prompts.Classify.Temperature)
	assert.Equal(t, 300, prompts.Classify.MaxTokens)
	assert.Equal(t, "classify system", prompts.Classify.System)
}

func TestLoadPromptsMissingFile(t *testing.T) {
	_, err := LoadPrompts(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRenderTemplate(t *testing.T) {
	rendered, err := renderTemplate("Extract from this {{.DocumentType}}: {{.Content}}", map[string]string{
		"DocumentType": "invoice",
		"Content":      "INV-001",
	})
	require.NoError(t, err)
	assert.Equal(t, "Extract from this invoice: INV-001", rendered)
}

func TestRenderTemplateInvalid(t *testing.T) {
	_, err := renderTemplate("{{.Broken", nil)
	assert.Error(t, err)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name:     "bare object",
			content:  `{"confidence": 0.9}`,
			expected: `{"confidence": 0.9}`,
		},
		{
			name:     "markdown fence",
			content:  "```json\n{\"confidence\": 0.9}\n```",
			expected: `{"confidence": 0.9}`,
		},
		{
			name:     "surrounding prose",
			content:  `Here is the result: {"confidence": 0.9} as requested.`,
			expected: `{"confidence": 0.9}`,
		},
		{
			name:     "no object",
			content:  "cannot comply",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractJSON(tt.content))
		})
	}
}
