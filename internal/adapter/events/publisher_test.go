package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomscope/internal/domain/room"
	roomsvc "roomscope/internal/service/room"
)

type message struct {
	subject string
	data    []byte
}

type fakeBus struct {
	messages []message
	err      error
}

func (b *fakeBus) Publish(subject string, data []byte) error {
	if b.err != nil {
		return b.err
	}
	b.messages = append(b.messages, message{subject: subject, data: data})
	return nil
}

func TestPublisher_ForwardsStoreChanges(t *testing.T) {
	bus := &fakeBus{}
	publisher := NewPublisher(bus, "rooms.store", nil)

	store := roomsvc.NewStore()
	store.Subscribe(publisher.Listener("s1"))

	require.NoError(t, store.Upsert(room.Room{ID: "r1"}))
	store.Hide("r1")

	require.Len(t, bus.messages, 2)
	assert.Equal(t, "rooms.store.s1.upserted", bus.messages[0].subject)
	assert.Equal(t, "rooms.store.s1.sets", bus.messages[1].subject)

	var event StoreEvent
	require.NoError(t, json.Unmarshal(bus.messages[0].data, &event))
	assert.Equal(t, StoreEvent{Session: "s1", Kind: roomsvc.ChangeUpserted, IDs: []string{"r1"}, Version: 1}, event)
}

func TestPublisher_LogsFailures(t *testing.T) {
	handler := memory.New()
	logger := &log.Logger{Handler: handler, Level: log.InfoLevel}
	publisher := NewPublisher(&fakeBus{err: errors.New("nats: connection closed")}, "rooms.store", logger)

	publisher.Listener("s1")(roomsvc.Change{Kind: roomsvc.ChangeRemoved, IDs: []string{"r1"}, Version: 3})

	require.Len(t, handler.Entries, 1)
	assert.Equal(t, log.WarnLevel, handler.Entries[0].Level)
	assert.Equal(t, "s1", handler.Entries[0].Fields.Get("session"))
}
