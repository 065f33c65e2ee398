// Package broadcast fans out OrderBookSnapshot, ConfirmedSignal, and
// AnomalyEvent values to websocket UI/dashboard clients: a non-blocking
// per-client send channel and a register/unregister goroutine-owned
// client map, with three independent model types multiplexed through a
// tagged envelope and encoded with model.EncodeMsgPack.
package broadcast

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/model"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/telemetry"
)

// Kind tags which model type an Envelope carries.
type Kind string

const (
	KindSnapshot Kind = "snapshot"
	KindSignal   Kind = "signal"
	KindAnomaly  Kind = "anomaly"
)

// Envelope wraps one outbound message with a Kind so a client can decode
// Payload into the right Go/JS type without a second round trip.
type Envelope struct {
	Kind    Kind
	Payload []byte
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Broadcaster receives OrderBookSnapshot/ConfirmedSignal/AnomalyEvent
// values on three channels and fans encoded Envelopes out to every
// connected websocket client.
type Broadcaster struct {
	snapshots <-chan model.OrderBookSnapshot
	signals   <-chan model.ConfirmedSignal
	anomalies <-chan model.AnomalyEvent
	log       *telemetry.Logger
}

// NewBroadcaster constructs a Broadcaster over the three outbound channels.
func NewBroadcaster(
	snapshots <-chan model.OrderBookSnapshot,
	signals <-chan model.ConfirmedSignal,
	anomalies <-chan model.AnomalyEvent,
	log *telemetry.Logger,
) *Broadcaster {
	return &Broadcaster{
		snapshots: snapshots,
		signals:   signals,
		anomalies: anomalies,
		log:       log.With("component", "broadcast"),
	}
}

// Start launches the fan-out hub and serves the websocket endpoint at
// addr until process exit; the supervisor owns overall process
// lifetime, not this method.
func (b *Broadcaster) Start(addr string) error {
	hub := newHub(b.log)
	go hub.run(b.snapshots, b.signals, b.anomalies)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, w, r)
	})

	b.log.Info().Str("addr", addr).Msg("broadcaster listening")
	return http.ListenAndServe(addr, mux)
}

// Hub maintains the set of connected clients and fans encoded envelopes
// out to all of them.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	log        *telemetry.Logger
}

func newHub(log *telemetry.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		log:        log,
	}
}

func (h *Hub) run(
	snapshots <-chan model.OrderBookSnapshot,
	signals <-chan model.ConfirmedSignal,
	anomalies <-chan model.AnomalyEvent,
) {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.log.Info().Int("clients", len(h.clients)).Msg("client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.log.Info().Int("clients", len(h.clients)).Msg("client disconnected")
			}
		case snap := <-snapshots:
			h.broadcast(KindSnapshot, snap)
		case sig := <-signals:
			h.broadcast(KindSignal, sig)
		case anomaly := <-anomalies:
			h.broadcast(KindAnomaly, anomaly)
		}
	}
}

func (h *Hub) broadcast(kind Kind, v any) {
	payload, err := model.EncodeMsgPack(v)
	if err != nil {
		h.log.Error().Err(err).Str("kind", string(kind)).Msg("failed to encode outbound message")
		return
	}
	envelope, err := model.EncodeMsgPack(Envelope{Kind: kind, Payload: payload})
	if err != nil {
		h.log.Error().Err(err).Str("kind", string(kind)).Msg("failed to encode envelope")
		return
	}

	for client := range h.clients {
		select {
		case client.send <- envelope:
		default:
			// Slow client — drop this tick rather than block the hub.
			// Dead clients are reaped by readPump on the next read error.
		}
	}
}

// Client wraps one websocket connection and its outbound send queue.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func serveWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := &Client{hub: hub, conn: conn, send: make(chan []byte, 256)}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for {
		message, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		w, err := c.conn.NextWriter(websocket.BinaryMessage)
		if err != nil {
			return
		}
		w.Write(message)
		if err := w.Close(); err != nil {
			return
		}
	}
}
