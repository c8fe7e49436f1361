package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SmsCarrier is the outbound side of the SMS provider. Send returns the
// provider's message id, which delivery-status webhooks later reference.
type SmsCarrier interface {
	Send(ctx context.Context, to, from, body string) (string, error)
}

type HTTPCarrier struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPCarrier(baseURL, apiKey string) *HTTPCarrier {
	return &HTTPCarrier{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type carrierSendRequest struct {
	To   string `json:"to"`
	From string `json:"from"`
	Body string `json:"body"`
}

type carrierSendResponse struct {
	MessageID string `json:"message_id"`
}

func (c *HTTPCarrier) Send(ctx context.Context, to, from, body string) (string, error) {
	payload, err := json.Marshal(carrierSendRequest{To: to, From: from, Body: body})
	if err != nil {
		return "", fmt.Errorf("marshal carrier payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewBuffer(payload))
	if err != nil {
		return "", fmt.Errorf("build carrier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send to carrier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("carrier returned status %d", resp.StatusCode)
	}

	var result carrierSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode carrier response: %w", err)
	}

	return result.MessageID, nil
}

// DisabledCarrier stands in when no carrier credentials are configured.
// Sends fail fast and the caller records the message as failed.
type DisabledCarrier struct{}

func (DisabledCarrier) Send(context.Context, string, string, string) (string, error) {
	return "", ErrCarrierUnavailable
}
