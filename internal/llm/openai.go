package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fleetwatch/fleetwatch/internal/config"
	"github.com/fleetwatch/fleetwatch/internal/models"
)

const parseSystemPrompt = `You are a query parser for a service monitoring assistant.
Convert natural language questions to structured queries.

Available query types:
1. rank - sort services by a metric
2. filter - filter services by condition
3. aggregate - get overall statistics
4. compare - compare specific services
5. count - count services matching criteria

Available metrics: health_score, failure_rate, error_count, response_time, problem_count
Available statuses: healthy, warning, critical

Return ONLY valid JSON, no other text:
{
  "action": "rank|filter|aggregate|compare|count",
  "metric": "metric_name",
  "order": "desc|asc",
  "condition": "expression",
  "limit": number,
  "services": ["service1", "service2"]
}`

const parseExamples = `Examples:
"Which has highest failure?" -> {"action":"rank","metric":"failure_rate","order":"desc","limit":5}
"Services with errors>100" -> {"action":"filter","condition":"error_count > 100"}
"What's today's health?" -> {"action":"aggregate","scope":"all"}
"Show critical services" -> {"action":"filter","condition":"status == 'critical'"}`

const answerSystemPrompt = `You are a friendly service monitoring assistant.
Generate natural, conversational answers based on the data provided.
Be concise but informative. If there are critical issues, mention them first.`

// OpenAIClient talks to an OpenAI-compatible chat-completions API. A custom
// base URL covers self-hosted gateways exposing the same contract.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	logger      *slog.Logger
}

// NewOpenAIClient constructs a client from the AI configuration.
func NewOpenAIClient(cfg config.AIConfig, logger *slog.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ai api key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		logger:      logger,
	}, nil
}

// ParseQuestion asks the model to translate a free-text question into a
// StructuredQuery. The response must be JSON; code fences are tolerated.
func (c *OpenAIClient) ParseQuestion(ctx context.Context, question string) (models.StructuredQuery, error) {
	userPrompt := fmt.Sprintf("Question: %q\n\n%s\n\nConvert the question to query JSON:", question, parseExamples)

	raw, err := c.complete(ctx, parseSystemPrompt, userPrompt)
	if err != nil {
		return models.StructuredQuery{}, err
	}

	var query models.StructuredQuery
	if err := json.Unmarshal([]byte(stripFences(raw)), &query); err != nil {
		return models.StructuredQuery{}, fmt.Errorf("parse model response: %w", err)
	}
	if query.Action == "" {
		return models.StructuredQuery{}, fmt.Errorf("model response missing action")
	}
	return query, nil
}

// GenerateAnswer asks the model to phrase an answer from the question and a
// deterministic context block describing the query result.
func (c *OpenAIClient) GenerateAnswer(ctx context.Context, question, context string) (string, error) {
	userPrompt := fmt.Sprintf("Question: %q\n\nData:\n%s\n\nGenerate a natural, helpful answer.", question, context)

	answer, err := c.complete(ctx, answerSystemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("model returned empty answer")
	}
	return answer, nil
}

func (c *OpenAIClient) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}

	c.logger.Debug("chat completion ok",
		slog.String("model", c.model),
		slog.Int("tokens", resp.Usage.TotalTokens))
	return resp.Choices[0].Message.Content, nil
}

// stripFences removes a surrounding markdown code fence from a model reply.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
