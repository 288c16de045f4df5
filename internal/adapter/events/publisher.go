// internal/adapter/events/publisher.go

package events

import (
	"encoding/json"
	"fmt"

	"github.com/apex/log"
	"github.com/nats-io/nats.go"

	roomsvc "roomscope/internal/service/room"
)

// Bus is the subset of *nats.Conn the publisher needs
type Bus interface {
	Publish(subject string, data []byte) error
}

var _ Bus = (*nats.Conn)(nil)

// StoreEvent is the payload published for every store change
type StoreEvent struct {
	Session string             `json:"session"`
	Kind    roomsvc.ChangeKind `json:"kind"`
	IDs     []string           `json:"ids"`
	Version uint64             `json:"version"`
}

// Publisher forwards store changes to the event bus
type Publisher struct {
	bus    Bus
	topic  string
	logger log.Interface
}

// NewPublisher creates a publisher writing to <topic>.<session>.<kind>
func NewPublisher(bus Bus, topic string, logger log.Interface) *Publisher {
	if logger == nil {
		logger = log.Log
	}
	return &Publisher{bus: bus, topic: topic, logger: logger}
}

// Listener returns a store listener publishing changes for session
func (p *Publisher) Listener(session string) roomsvc.Listener {
	return func(change roomsvc.Change) {
		if err := p.Publish(session, change); err != nil {
			// Log error but continue
			p.logger.WithError(err).WithField("session", session).Warn("Error publishing store event")
		}
	}
}

// Publish sends one store change
func (p *Publisher) Publish(session string, change roomsvc.Change) error {
	data, err := json.Marshal(StoreEvent{
		Session: session,
		Kind:    change.Kind,
		IDs:     change.IDs,
		Version: change.Version,
	})
	if err != nil {
		return fmt.Errorf("error marshaling store event: %w", err)
	}

	topic := fmt.Sprintf("%s.%s.%s", p.topic, session, change.Kind)
	return p.bus.Publish(topic, data)
}
