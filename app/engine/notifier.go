package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ProgressEvent is pushed after every recorded send attempt of a run
type ProgressEvent struct {
	Kind        string `json:"kind"` // "campaign" or "instant"
	Ref         string `json:"ref"`  // campaign or batch uuid
	OwnerUserID uint   `json:"owner_user_id"`
	BranchID    int64  `json:"branch_id"`
	LeadID      int64  `json:"lead_id"`
	Phone       string `json:"phone"`
	Index       int    `json:"index"`  // the entry's send order within the run
	Status      string `json:"status"` // "sent" or "failed"
	Succeeded   bool   `json:"succeeded"`
	SentCount   int    `json:"sent_count"`
	FailedCount int    `json:"failed_count"`
	TotalLeads  int    `json:"total_leads"`
}

// CompletionEvent is pushed once when a run reaches a terminal status
type CompletionEvent struct {
	Kind        string `json:"kind"`
	Ref         string `json:"ref"`
	OwnerUserID uint   `json:"owner_user_id"`
	Status      string `json:"status"`
	SentCount   int    `json:"sent_count"`
	FailedCount int    `json:"failed_count"`
	TotalLeads  int    `json:"total_leads"`
}

// ProgressNotifier fans run progress out to interested UI clients.
// Implementations must not block the send loop; failures are logged by the
// caller and never abort a run.
type ProgressNotifier interface {
	Progress(ctx context.Context, event ProgressEvent) error
	Completed(ctx context.Context, event CompletionEvent) error
}

// NoopNotifier discards all events
type NoopNotifier struct{}

func (NoopNotifier) Progress(ctx context.Context, event ProgressEvent) error    { return nil }
func (NoopNotifier) Completed(ctx context.Context, event CompletionEvent) error { return nil }

// RedisProgressNotifier publishes events as JSON on per-owner pub/sub
// channels so a socket layer can relay them to the owner's open clients.
type RedisProgressNotifier struct {
	client *redis.Client
	prefix string
}

// NewRedisProgressNotifier creates a redis-backed notifier
func NewRedisProgressNotifier(client *redis.Client, prefix string) *RedisProgressNotifier {
	if prefix == "" {
		prefix = "engine"
	}
	return &RedisProgressNotifier{client: client, prefix: prefix}
}

func (n *RedisProgressNotifier) channel(ownerUserID uint) string {
	return fmt.Sprintf("%s:progress:%d", n.prefix, ownerUserID)
}

func (n *RedisProgressNotifier) Progress(ctx context.Context, event ProgressEvent) error {
	return n.publish(ctx, n.channel(event.OwnerUserID), "progress", event)
}

func (n *RedisProgressNotifier) Completed(ctx context.Context, event CompletionEvent) error {
	return n.publish(ctx, n.channel(event.OwnerUserID), "completed", event)
}

func (n *RedisProgressNotifier) publish(ctx context.Context, channel, eventType string, payload any) error {
	envelope := struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{Type: eventType, Data: payload}

	raw, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}
	if err := n.client.Publish(ctx, channel, raw).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}
	return nil
}
