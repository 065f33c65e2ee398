package broadcast

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/model"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/telemetry"
)

func testHub() *Hub {
	return newHub(telemetry.New(&bytes.Buffer{}, zerolog.WarnLevel))
}

func TestBroadcastEncodesEnvelopeClientsCanDecode(t *testing.T) {
	h := testHub()
	client := &Client{hub: h, send: make(chan []byte, 4)}
	h.clients[client] = true

	h.broadcast(KindAnomaly, model.AnomalyEvent{Type: model.AnomalyFlashCrash, Severity: model.SeverityCritical})

	select {
	case msg := <-client.send:
		var env Envelope
		require.NoError(t, model.DecodeMsgPack(msg, &env))
		assert.Equal(t, KindAnomaly, env.Kind)

		var event model.AnomalyEvent
		require.NoError(t, model.DecodeMsgPack(env.Payload, &event))
		assert.Equal(t, model.AnomalyFlashCrash, event.Type)
	case <-time.After(time.Second):
		t.Fatal("client did not receive broadcast message")
	}
}

func TestBroadcastDropsOnFullClientQueue(t *testing.T) {
	h := testHub()
	client := &Client{hub: h, send: make(chan []byte, 1)}
	h.clients[client] = true

	h.broadcast(KindSnapshot, model.OrderBookSnapshot{Symbol: "BTCUSDT"})
	h.broadcast(KindSnapshot, model.OrderBookSnapshot{Symbol: "ETHUSDT"}) // must not block

	require.Len(t, client.send, 1)
}

func TestRunFansSnapshotsToRegisteredClients(t *testing.T) {
	h := testHub()
	snapshots := make(chan model.OrderBookSnapshot, 1)
	signals := make(chan model.ConfirmedSignal, 1)
	anomalies := make(chan model.AnomalyEvent, 1)

	go h.run(snapshots, signals, anomalies)

	client := &Client{hub: h, send: make(chan []byte, 4)}
	h.register <- client
	time.Sleep(10 * time.Millisecond)

	snapshots <- model.OrderBookSnapshot{Symbol: "BTCUSDT", BestBid: 100}

	select {
	case msg := <-client.send:
		var env Envelope
		require.NoError(t, model.DecodeMsgPack(msg, &env))
		assert.Equal(t, KindSnapshot, env.Kind)
	case <-time.After(time.Second):
		t.Fatal("registered client did not receive fanned-out snapshot")
	}
}
