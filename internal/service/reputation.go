package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"item_recovery/pkg/logger"
)

// ReputationService уведомляет Reputation-сервис о завершённом разговоре.
// Уведомление fire-and-forget: ответа не ждём, агрегация на их стороне.
type ReputationService interface {
	NotifyResolved(conversationID uuid.UUID, itemRef string, resolvedBy *uuid.UUID)
}

type resolvedNotification struct {
	ConversationID string     `json:"conversation_id"`
	ItemRef        string     `json:"item_ref"`
	ResolvedBy     *uuid.UUID `json:"resolved_by,omitempty"`
	ResolvedAt     time.Time  `json:"resolved_at"`
}

type reputationServiceClient struct {
	baseURL    string
	httpClient *http.Client
	log        logger.Logger
}

func NewReputationServiceClient(baseURL string, timeout time.Duration, log logger.Logger) ReputationService {
	return &reputationServiceClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

func (c *reputationServiceClient) NotifyResolved(conversationID uuid.UUID, itemRef string, resolvedBy *uuid.UUID) {
	go func() {
		notification := resolvedNotification{
			ConversationID: conversationID.String(),
			ItemRef:        itemRef,
			ResolvedBy:     resolvedBy,
			ResolvedAt:     time.Now(),
		}

		if err := c.post(notification); err != nil {
			c.log.Warn("Failed to notify reputation service", "error", err, "conversation_id", conversationID)
		}
	}()
}

func (c *reputationServiceClient) post(notification resolvedNotification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.httpClient.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/resolutions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("reputation service returned status %d", resp.StatusCode)
	}

	return nil
}
