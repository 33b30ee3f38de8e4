package utils

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// DonationRecordedSubject carries every newly persisted donation.
const DonationRecordedSubject = "donations.recorded"

// EventPublisher publishes donation events to NATS.
type EventPublisher struct {
	conn *nats.Conn
}

func ConnectNATS(url string) (*EventPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("inua-fund-server"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &EventPublisher{conn: conn}, nil
}

// Publish JSON-encodes v onto subject.
func (p *EventPublisher) Publish(subject string, v interface{}) error {
	if p == nil || p.conn == nil {
		return nats.ErrConnectionClosed
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.conn.Publish(subject, data)
}

func (p *EventPublisher) Close() {
	if p != nil && p.conn != nil {
		p.conn.Drain()
	}
}
