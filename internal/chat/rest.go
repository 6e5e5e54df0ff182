package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// RESTConfig configures the vendor REST client.
type RESTConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// RESTClient talks to the chat vendor's query API over HTTP.
type RESTClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRESTClient constructs a vendor client.
func NewRESTClient(cfg RESTConfig) (*RESTClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("chat api url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid chat api url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &RESTClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// GetMessage fetches authoritative message metadata by id.
func (c *RESTClient) GetMessage(ctx context.Context, id string) (Message, error) {
	endpoint := fmt.Sprintf("%s/messages/%s", c.baseURL, url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Message{}, err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return Message{}, fmt.Errorf("fetch message %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Message{}, fmt.Errorf("fetch message %s: unexpected status %d", id, resp.StatusCode)
	}

	var payload struct {
		Message Message `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Message{}, fmt.Errorf("decode message %s: %w", id, err)
	}

	return payload.Message, nil
}

// QueryChannels queries channels matching the filter.
func (c *RESTClient) QueryChannels(ctx context.Context, filter ChannelFilter) ([]Channel, error) {
	body, err := json.Marshal(filter)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/channels/query", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query channels: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Channels []Channel `json:"channels"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode channels: %w", err)
	}

	return payload.Channels, nil
}

func (c *RESTClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
