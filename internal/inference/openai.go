package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DocumentReader resolves an opaque document reference to its text content
type DocumentReader interface {
	ReadText(ref string) (string, error)
}

// Content preview limits per task, to bound prompt size
var previewLimits = map[Task]int{
	TaskClassify: 2000,
	TaskExtract:  2500,
	TaskValidate: 1500,
}

// Extraction field templates per document type
var fieldTemplates = map[string]string{
	"invoice":                 "invoice_number, date, vendor, total_amount, items, tax",
	"contract":                "parties, effective_date, term, value, obligations",
	"purchase_order":          "po_number, date, vendor, items, total, delivery_date",
	"technical_specification": "product_name, version, specifications",
}

// OpenAIClient implements Client against the OpenAI chat completion API
type OpenAIClient struct {
	client  *openai.Client
	model   string
	prompts *PromptConfig
	reader  DocumentReader
	logger  *zap.Logger
}

// NewOpenAIClient creates an inference client backed by OpenAI
func NewOpenAIClient(apiKey, model string, prompts *PromptConfig, reader DocumentReader, logger *zap.Logger) *OpenAIClient {
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &OpenAIClient{
		client:  openai.NewClient(apiKey),
		model:   model,
		prompts: prompts,
		reader:  reader,
		logger:  logger,
	}
}

// Infer performs one inference call. The caller supplies the deadline via
// ctx; on expiry the returned error has kind ErrKindTimeout.
func (c *OpenAIClient) Infer(ctx context.Context, req Request) (*Result, error) {
	prompt, err := c.prompts.ForTask(req.Task)
	if err != nil {
		return nil, &Error{Kind: ErrKindCollaborator, Message: err.Error()}
	}

	content, err := c.reader.ReadText(req.DocumentRef)
	if err != nil {
		return nil, &Error{Kind: ErrKindCollaborator, Message: fmt.Sprintf("failed to read document: %v", err)}
	}
	if limit := previewLimits[req.Task]; limit > 0 && len(content) > limit {
		content = content[:limit]
	}

	userPrompt, err := renderTemplate(prompt.UserTemplate, c.templateData(req, content))
	if err != nil {
		return nil, &Error{Kind: ErrKindCollaborator, Message: err.Error()}
	}

	c.logger.Debug("Calling inference collaborator",
		zap.String("task", string(req.Task)),
		zap.String("document_ref", req.DocumentRef),
		zap.String("model", c.model))

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: prompt.Temperature,
		MaxTokens:   prompt.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.System},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		kind := ErrKindCollaborator
		if ctx.Err() != nil {
			kind = ErrKindTimeout
		}
		c.logger.Error("Inference call failed",
			zap.String("task", string(req.Task)),
			zap.Error(err))
		return nil, &Error{Kind: kind, Message: err.Error()}
	}

	if len(resp.Choices) == 0 {
		return nil, &Error{Kind: ErrKindCollaborator, Message: "empty response from collaborator"}
	}

	payload := extractJSON(resp.Choices[0].Message.Content)
	if payload == "" {
		return nil, &Error{Kind: ErrKindCollaborator, Message: "no JSON object in collaborator response"}
	}

	var probe struct {
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(payload), &probe); err != nil {
		return nil, &Error{Kind: ErrKindCollaborator, Message: fmt.Sprintf("malformed collaborator payload: %v", err)}
	}

	c.logger.Info("Inference call completed",
		zap.String("task", string(req.Task)),
		zap.String("document_ref", req.DocumentRef),
		zap.Float64("confidence", probe.Confidence))

	return &Result{Payload: json.RawMessage(payload), Confidence: probe.Confidence}, nil
}

// templateData assembles prompt template inputs from the request
func (c *OpenAIClient) templateData(req Request, content string) map[string]string {
	docType := req.Context["document_type"]
	if docType == "" {
		docType = "unknown"
	}

	fields, ok := fieldTemplates[docType]
	if !ok {
		fields = "key_information"
	}

	return map[string]string{
		"Content":      content,
		"DocumentType": docType,
		"Fields":       fields,
		"Extracted":    req.Context["extracted_fields"],
	}
}

// extractJSON pulls the outermost JSON object out of a model response,
// tolerating markdown code fences and surrounding prose
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	if idx := strings.Index(content, "```json"); idx != -1 {
		content = content[idx+len("```json"):]
		if end := strings.Index(content, "```"); end != -1 {
			content = content[:end]
		}
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}

	return strings.TrimSpace(content[start : end+1])
}
