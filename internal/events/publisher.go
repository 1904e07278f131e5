package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// Redis channels carrying state-change notifications. The core only
// publishes; the ws layer (and any other subscriber) relays them.
const (
	ChannelMatchEvents   = "match_events"
	ChannelBalanceEvents = "balance_events"
)

// Match event types
const (
	MatchCreated    = "match_created"
	JoinRequested   = "join_requested"
	JoinAccepted    = "join_accepted"
	MatchStarted    = "match_started"
	ResultSubmitted = "result_submitted"
	MatchCompleted  = "match_completed"
	MatchCancelled  = "match_cancelled"
	BalanceUpdated  = "balance_updated"
)

// Publisher pushes state-change events to Redis pub/sub. A nil Publisher is
// valid and drops everything, so services never need to nil-check.
type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

func (p *Publisher) publish(ctx context.Context, channel string, payload map[string]interface{}) {
	if p == nil || p.rdb == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[EVENTS] failed to marshal %s payload: %v", channel, err)
		return
	}
	if err := p.rdb.Publish(ctx, channel, data).Err(); err != nil {
		log.Printf("[EVENTS] failed to publish to %s: %v", channel, err)
	}
}

// MatchEvent publishes a lifecycle event for a match.
func (p *Publisher) MatchEvent(ctx context.Context, eventType, matchID string, extra map[string]interface{}) {
	payload := map[string]interface{}{
		"type":    eventType,
		"matchId": matchID,
	}
	for k, v := range extra {
		payload[k] = v
	}
	p.publish(ctx, ChannelMatchEvents, payload)
}

// BalanceEvent notifies a user's balance change after a ledger commit.
func (p *Publisher) BalanceEvent(ctx context.Context, userID, balance string) {
	p.publish(ctx, ChannelBalanceEvents, map[string]interface{}{
		"type":    BalanceUpdated,
		"userId":  userID,
		"balance": balance,
	})
}
