// Package clients содержит HTTP-клиенты внешних сервисов. Движок историй
// сам не хранит балансы: начисление наград делегируется экономическому
// сервису через его внутренний API.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// GrantRewardRequest — запрос на начисление награды.
type GrantRewardRequest struct {
	DiscordUserID string `json:"discordUserId"`
	DBUserID      uint64 `json:"dbUserId,omitempty"`
	Coins         int    `json:"coins"`
	XP            int    `json:"xp"`
	ActivityType  string `json:"activityType"`
	Notes         string `json:"notes,omitempty"`
}

// EconomyClient — граница с экономическим сервисом.
type EconomyClient interface {
	GrantReward(ctx context.Context, req GrantRewardRequest) error
}

// Compile-time check to ensure implementation satisfies the interface.
var _ EconomyClient = (*HTTPEconomyClient)(nil)

// HTTPEconomyClient — HTTP-реализация EconomyClient.
type HTTPEconomyClient struct {
	baseURL           string
	httpClient        *http.Client
	interServiceToken string
	logger            *zap.Logger
}

// NewHTTPEconomyClient создает клиент экономического сервиса.
func NewHTTPEconomyClient(baseURL, interServiceToken string, logger *zap.Logger) *HTTPEconomyClient {
	return &HTTPEconomyClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		interServiceToken: interServiceToken,
		logger:            logger.Named("HTTPEconomyClient"),
	}
}

// GrantReward начисляет монеты и опыт пользователю. Вызывается ровно один
// раз, после достижения терминального узла; движок не делает частичных
// начислений и не ретраит — решение о повторе за вызывающим.
func (c *HTTPEconomyClient) GrantReward(ctx context.Context, grant GrantRewardRequest) error {
	log := c.logger.With(
		zap.String("discordUserID", grant.DiscordUserID),
		zap.Int("coins", grant.Coins),
		zap.Int("xp", grant.XP))

	jsonData, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("failed to marshal grant request: %w", err)
	}

	endpointURL := c.baseURL + "/internal/rewards/grant"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create grant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.interServiceToken != "" {
		req.Header.Set("X-Internal-Service-Token", c.interServiceToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("Economy service request failed", zap.Error(err))
		return fmt.Errorf("economy service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Error("Economy service returned non-OK status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return fmt.Errorf("economy service returned status %d", resp.StatusCode)
	}

	log.Info("Reward granted")
	return nil
}
