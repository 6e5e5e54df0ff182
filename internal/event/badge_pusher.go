package event

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
)

// BadgePush is the payload handed to the push gateway: one integer per user.
type BadgePush struct {
	UserID string `json:"userId"`
	Count  int    `json:"count"`
}

// NATSBadgePusher forwards computed badge values to the push gateway subject.
type NATSBadgePusher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSBadgePusher constructs the badge push publisher.
func NewNATSBadgePusher(conn *nats.Conn, subject string) *NATSBadgePusher {
	return &NATSBadgePusher{conn: conn, subject: subject}
}

// PushBadgeCount publishes the badge value for one user.
func (p *NATSBadgePusher) PushBadgeCount(ctx context.Context, userID string, count int) error {
	payload, err := json.Marshal(BadgePush{UserID: userID, Count: count})
	if err != nil {
		return err
	}
	return p.conn.Publish(p.subject, payload)
}
