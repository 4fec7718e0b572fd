package monitor

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// RedisNotifier publishes new-publication events to a redis channel so
// downstream consumers (streaming tiers, unread badges) can react without
// polling the store.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *log.Logger
}

// NewRedisNotifier creates a notifier publishing on the given channel.
func NewRedisNotifier(client *redis.Client, channel string, logger *log.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel, logger: logger}
}

type publicationEvent struct {
	UserID   string `json:"userId"`
	CaseID   string `json:"caseId"`
	NewCount int    `json:"newCount"`
}

// NotifyNewPublications publishes one event per ingestion pass that stored
// new movements. Publish failures are logged and swallowed.
func (n *RedisNotifier) NotifyNewPublications(ctx context.Context, userID, caseID string, count int) {
	payload, err := json.Marshal(publicationEvent{UserID: userID, CaseID: caseID, NewCount: count})
	if err != nil {
		n.logger.WithError(err).Error("marshal publication event")
		return
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		n.logger.WithError(err).Errorf("unable to publish publication event for case %s", caseID)
	}
}
