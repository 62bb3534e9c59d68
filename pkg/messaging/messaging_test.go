package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventPublisherRoutesByType(t *testing.T) {
	broker := NewMemoryBroker()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub := NewEventPublisher(broker, "portal.", zerolog.Nop())
	ch, err := broker.Subscribe(ctx, pub.Channel(EventMedicineStockAdjusted))
	require.NoError(t, err)

	ev := NewEvent(EventMedicineStockAdjusted, "ph@example.com", "m1", map[string]int{"newStock": 25})
	require.NoError(t, pub.Publish(ctx, ev))
	require.NoError(t, pub.Publish(ctx, NewEvent(EventPrescriptionStatusChanged, "ph@example.com", "p1", nil)))

	select {
	case raw := <-ch:
		var got Event
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, ev.ID, got.ID)
		assert.Equal(t, "m1", got.EntityID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	select {
	case raw := <-ch:
		t.Fatalf("unexpected message %s", raw)
	default:
	}
}

func TestMemoryBrokerClose(t *testing.T) {
	broker := NewMemoryBroker()
	ch, err := broker.Subscribe(context.Background(), "x")
	require.NoError(t, err)

	require.NoError(t, broker.Close())
	_, open := <-ch
	assert.False(t, open)
	assert.ErrorIs(t, broker.Publish(context.Background(), "x", 1), ErrClosed)
}
