package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub Subscriber) *Event {
	t.Helper()
	select {
	case e := <-sub:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestBroker_PublishSubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	assert.Equal(t, 2, b.SubscriberCount())

	b.Publish(New(EventNodeAdded, "node signer1 added", map[string]string{"network": "testnet"}))

	for _, sub := range []Subscriber{sub1, sub2} {
		e := receive(t, sub)
		assert.Equal(t, EventNodeAdded, e.Type)
		assert.Equal(t, "testnet", e.Metadata["network"])
		assert.NotEmpty(t, e.ID)
	}
}

func TestBroker_FillsIDAndTimestamp(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Publish(&Event{Type: EventRosterDrift})

	e := receive(t, sub)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
}

func TestBroker_Unsubscribe(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe()

	b.Unsubscribe(sub)
	b.Unsubscribe(sub)

	_, open := <-sub
	assert.False(t, open)
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestBroker_NilPublish(t *testing.T) {
	var b *Broker
	require.NotPanics(t, func() { b.Publish(New(EventNetworkCreated, "", nil)) })
}

func TestBroker_StopTwice(t *testing.T) {
	b := NewBroker()
	b.Start()
	b.Stop()
	require.NotPanics(t, b.Stop)

	// Publishing after stop must not block
	done := make(chan struct{})
	go func() {
		b.Publish(New(EventNetworkRemoved, "", nil))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked after stop")
	}
}
