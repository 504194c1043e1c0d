package aigen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/evobug-com/story-server/internal/models"
)

// UsageInfo — данные о токенах и оценочной стоимости одного вызова генерации.
type UsageInfo struct {
	PromptTokens     int     `json:"promptTokens"`
	CompletionTokens int     `json:"completionTokens"`
	TotalTokens      int     `json:"totalTokens"`
	EstimatedCostUSD float64 `json:"estimatedCostUsd"`
}

// Add суммирует usage нескольких вызовов (слой за слоем).
func (u *UsageInfo) Add(other UsageInfo) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.EstimatedCostUSD += other.EstimatedCostUSD
}

// AIClient — клиент генерации одного слоя истории. Возвращает сырой JSON
// ответа модели; парсинг и валидация — забота генератора.
type AIClient interface {
	GenerateLayer(ctx context.Context, systemPrompt, userInput string) (string, UsageInfo, error)
}

// ClientConfig — настройки OpenAI-совместимого клиента.
type ClientConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	// PromptTokenBudget — жесткий лимит на размер промпта; защита от
	// неконтролируемого роста стоимости. 0 — без лимита.
	PromptTokenBudget int
	// Цены за миллион токенов для оценки стоимости.
	PricePerMillionInputUSD  float64
	PricePerMillionOutputUSD float64
}

type openAIClient struct {
	client *openaigo.Client
	cfg    ClientConfig
	logger *zap.Logger
}

var _ AIClient = (*openAIClient)(nil)

// NewOpenAIClient создает клиент для OpenAI-совместимого API.
func NewOpenAIClient(cfg ClientConfig, logger *zap.Logger) AIClient {
	apiCfg := openaigo.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	return &openAIClient{
		client: openaigo.NewClientWithConfig(apiCfg),
		cfg:    cfg,
		logger: logger.Named("AIClient"),
	}
}

func (c *openAIClient) GenerateLayer(ctx context.Context, systemPrompt, userInput string) (string, UsageInfo, error) {
	var usage UsageInfo
	log := c.logger.With(zap.String("model", c.cfg.Model))

	if strings.TrimSpace(systemPrompt) == "" {
		return "", usage, fmt.Errorf("%w: empty system prompt", models.ErrGenerationFailed)
	}

	// Предварительная оценка размера промпта через tiktoken: дешевле
	// отклонить запрос локально, чем оплатить его модели.
	if promptTokens := c.countTokens(systemPrompt + userInput); promptTokens > 0 {
		promptTokensEstimated.WithLabelValues(c.cfg.Model).Observe(float64(promptTokens))
		if c.cfg.PromptTokenBudget > 0 && promptTokens > c.cfg.PromptTokenBudget {
			log.Warn("Prompt exceeds token budget",
				zap.Int("promptTokens", promptTokens),
				zap.Int("budget", c.cfg.PromptTokenBudget))
			aiRequestsTotal.WithLabelValues(c.cfg.Model, "rejected_budget").Inc()
			return "", usage, fmt.Errorf("%w: prompt of %d tokens exceeds budget %d", models.ErrGenerationFailed, promptTokens, c.cfg.PromptTokenBudget)
		}
	}

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{Role: openaigo.ChatMessageRoleUser, Content: userInput})
	}

	request := openaigo.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		ResponseFormat: &openaigo.ChatCompletionResponseFormat{
			Type: openaigo.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, request)
	duration := time.Since(start)
	if err != nil {
		log.Error("AI API request failed", zap.Duration("duration", duration), zap.Error(err))
		aiRequestsTotal.WithLabelValues(c.cfg.Model, "error").Inc()
		return "", usage, fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 {
		aiRequestsTotal.WithLabelValues(c.cfg.Model, "empty").Inc()
		return "", usage, fmt.Errorf("%w: AI returned no choices", models.ErrGenerationFailed)
	}

	aiRequestsTotal.WithLabelValues(c.cfg.Model, "success").Inc()
	aiRequestDuration.WithLabelValues(c.cfg.Model).Observe(duration.Seconds())

	if resp.Usage.TotalTokens > 0 {
		usage.PromptTokens = resp.Usage.PromptTokens
		usage.CompletionTokens = resp.Usage.CompletionTokens
		usage.TotalTokens = resp.Usage.TotalTokens
		usage.EstimatedCostUSD = c.estimateCost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		aiTokensUsed.WithLabelValues(c.cfg.Model).Add(float64(resp.Usage.TotalTokens))
		if usage.EstimatedCostUSD > 0 {
			aiEstimatedCostUSD.WithLabelValues(c.cfg.Model).Add(usage.EstimatedCostUSD)
		}
	}

	content := resp.Choices[0].Message.Content
	log.Info("AI layer generated",
		zap.Duration("duration", duration),
		zap.Int("responseBytes", len(content)),
		zap.Int("totalTokens", usage.TotalTokens))
	return content, usage, nil
}

// countTokens оценивает число токенов промпта. 0 — оценка недоступна
// (неизвестная модель), в этом случае бюджет не проверяется.
func (c *openAIClient) countTokens(text string) int {
	enc, err := tiktoken.EncodingForModel(c.cfg.Model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0
		}
	}
	return len(enc.Encode(text, nil, nil))
}

func (c *openAIClient) estimateCost(promptTokens, completionTokens int) float64 {
	return float64(promptTokens)/1_000_000*c.cfg.PricePerMillionInputUSD +
		float64(completionTokens)/1_000_000*c.cfg.PricePerMillionOutputUSD
}
