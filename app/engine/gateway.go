package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/retailops/messaging-engine/config"
)

// MediaType distinguishes attachment kinds on the gateway wire
type MediaType string

const (
	MediaTypeImage    MediaType = "image"
	MediaTypeDocument MediaType = "document"
)

// Media describes an attachment to deliver alongside or instead of text
type Media struct {
	Type    MediaType
	Path    string
	Caption string
}

// SessionGateway is the WhatsApp transport for one or more branch sessions.
// SendMessage and SendMedia return an error for transport or session
// failures; a nil error means the gateway accepted the message.
type SessionGateway interface {
	IsConnected(ctx context.Context, sessionID int64) (bool, error)
	SendMessage(ctx context.Context, sessionID int64, phone, body string) error
	SendMedia(ctx context.Context, sessionID int64, phone string, media Media) error
}

type httpSessionGateway struct {
	cfg    config.GatewayConfig
	client *http.Client
}

// NewHTTPSessionGateway creates a gateway client against the session
// bridge's HTTP API.
func NewHTTPSessionGateway(cfg config.GatewayConfig) SessionGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &httpSessionGateway{
		cfg: cfg,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type gatewayStatusResponse struct {
	Connected bool    `json:"connected"`
	State     *string `json:"state"`
}

type gatewaySendResponse struct {
	Success bool    `json:"success"`
	Error   *string `json:"error"`
}

func (g *httpSessionGateway) IsConnected(ctx context.Context, sessionID int64) (bool, error) {
	endpoint := fmt.Sprintf("%s/sessions/%d/status", g.cfg.BaseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build status request: %w", err)
	}
	g.setHeaders(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to query session status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, fmt.Errorf("session status returned %d: %s", resp.StatusCode, string(body))
	}

	var status gatewayStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false, fmt.Errorf("failed to decode session status: %w", err)
	}
	return status.Connected, nil
}

func (g *httpSessionGateway) SendMessage(ctx context.Context, sessionID int64, phone, body string) error {
	payload := struct {
		Phone string `json:"phone"`
		Body  string `json:"body"`
	}{Phone: phone, Body: body}
	endpoint := fmt.Sprintf("%s/sessions/%d/messages/text", g.cfg.BaseURL, sessionID)
	return g.post(ctx, endpoint, payload)
}

func (g *httpSessionGateway) SendMedia(ctx context.Context, sessionID int64, phone string, media Media) error {
	payload := struct {
		Phone   string `json:"phone"`
		Type    string `json:"type"`
		Path    string `json:"path"`
		Caption string `json:"caption,omitempty"`
	}{Phone: phone, Type: string(media.Type), Path: media.Path, Caption: media.Caption}
	endpoint := fmt.Sprintf("%s/sessions/%d/messages/media", g.cfg.BaseURL, sessionID)
	return g.post(ctx, endpoint, payload)
}

func (g *httpSessionGateway) post(ctx context.Context, endpoint string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal gateway payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}
	g.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call gateway: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(body))
	}

	var out gatewaySendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if !out.Success {
		msg := "unknown gateway error"
		if out.Error != nil {
			msg = *out.Error
		}
		return fmt.Errorf("gateway rejected message: %s", msg)
	}
	return nil
}

func (g *httpSessionGateway) setHeaders(req *http.Request) {
	if g.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", g.cfg.APIKey)
	}
	req.Header.Set("Accept", "application/json")
}
