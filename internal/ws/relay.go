package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/play2cash/backend/internal/events"
	"github.com/redis/go-redis/v9"
)

// RunRelay subscribes to the core's Redis channels and fans events out to
// connected clients. Runs until ctx is cancelled.
func RunRelay(ctx context.Context, rdb *redis.Client, hub *Hub) {
	sub := rdb.Subscribe(ctx, events.ChannelMatchEvents, events.ChannelBalanceEvents)
	defer sub.Close()

	log.Printf("[WS] relay subscribed to %s, %s", events.ChannelMatchEvents, events.ChannelBalanceEvents)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			relayMessage(hub, msg.Channel, []byte(msg.Payload))
		}
	}
}

func relayMessage(hub *Hub, channel string, payload []byte) {
	var envelope struct {
		MatchID string `json:"matchId"`
		UserID  string `json:"userId"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		log.Printf("[WS] dropping malformed event on %s: %v", channel, err)
		return
	}

	switch channel {
	case events.ChannelMatchEvents:
		if envelope.MatchID != "" {
			hub.BroadcastToMatch(envelope.MatchID, payload)
		}
	case events.ChannelBalanceEvents:
		if envelope.UserID != "" {
			hub.SendToUser(envelope.UserID, payload)
		}
	}
}
