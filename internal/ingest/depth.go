package ingest

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/bus"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/fixedmath"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/model"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/telemetry"
)

// depthEvent matches Binance's diff-depth stream JSON: a bounded
// sequence range [U, u] plus the changed bid/ask rows in that range.
type depthEvent struct {
	Symbol   string     `json:"s"`
	EventMs  int64      `json:"E"`
	FirstID  int64      `json:"U"`
	FinalID  int64      `json:"u"`
	Bids     [][]string `json:"b"`
	Asks     [][]string `json:"a"`
}

// DepthIngester connects to a diff-depth stream and publishes parsed
// DepthUpdate values onto its bus for the orderbook goroutine to apply.
type DepthIngester struct {
	url string
	bus *bus.Bus[model.DepthUpdate]
	log *telemetry.Logger
}

// NewDepthIngester constructs a DepthIngester for the given websocket URL.
func NewDepthIngester(url string, b *bus.Bus[model.DepthUpdate], log *telemetry.Logger) *DepthIngester {
	return &DepthIngester{url: url, bus: b, log: log.With("component", "ingest.depth")}
}

// Start launches the reconnect loop in its own goroutine.
func (d *DepthIngester) Start(ctx context.Context) {
	go d.loop(ctx)
}

func (d *DepthIngester) loop(ctx context.Context) {
	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := d.connectAndConsume(ctx); err != nil {
			d.log.Warn().Err(err).Dur("retry_in", delay).Msg("depth stream disconnected")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxReconnectDelay {
				delay = maxReconnectDelay
			}
		} else {
			delay = reconnectDelay
		}
	}
}

func (d *DepthIngester) connectAndConsume(ctx context.Context) error {
	c, _, err := websocket.DefaultDialer.Dial(d.url, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	d.log.Info().Msg("connected")

	var event depthEvent
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := c.ReadJSON(&event); err != nil {
			return err
		}

		update := model.DepthUpdate{
			Symbol:        event.Symbol,
			SequenceFirst: event.FirstID,
			SequenceLast:  event.FinalID,
			EventTimeMs:   event.EventMs,
			Bids:          parseRows(event.Bids, d.log),
			Asks:          parseRows(event.Asks, d.log),
		}

		d.bus.Publish(update)
	}
}

func parseRows(raw [][]string, log *telemetry.Logger) []model.DepthRow {
	rows := make([]model.DepthRow, 0, len(raw))
	for _, lvl := range raw {
		if len(lvl) < 2 {
			continue
		}
		price, err := fixedmath.FromDecimalString(lvl[0], fixedmath.PriceScale)
		if err != nil {
			log.Warn().Err(err).Str("raw", lvl[0]).Msg("dropping depth row with unparsable price")
			continue
		}
		qty, err := fixedmath.FromDecimalString(lvl[1], fixedmath.QuantityScale)
		if err != nil {
			log.Warn().Err(err).Str("raw", lvl[1]).Msg("dropping depth row with unparsable quantity")
			continue
		}
		rows = append(rows, model.DepthRow{Price: price, Qty: qty})
	}
	return rows
}
