/*
Package events provides an in-memory event broker for poanet lifecycle events.

The manager publishes an event after every lifecycle operation, and the
reconciler publishes roster.drift when the roster and a manifest disagree.
poanet serve subscribes and writes each event to the log.

	Publisher → eventCh (buffer 100) → broadcast loop → Subscriber (buffer 50 each)

Publish blocks only while the broker's own buffer is full. Subscribers whose
buffer is full miss the event.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	go func() {
		for e := range sub {
			log.Logger.Info().Str("type", string(e.Type)).Msg(e.Message)
		}
	}()
*/
package events
