// Package ingest adapts an exchange's raw websocket streams into the
// core's model types (model.AggTrade, model.DepthUpdate), publishing them
// onto a bus.Bus for the single-goroutine core loop to consume in arrival
// order. Reconnects with exponential backoff and parses prices/quantities
// as fixed-point decimals rather than lossy float64s.
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

const (
	reconnectDelay    = 1 * time.Second
	maxReconnectDelay = 30 * time.Second
)

// aggTradeEvent matches the Binance aggTrade stream JSON.
// https://developers.binance.com/docs/derivatives/usds-margined-futures/websocket-market-streams/Aggregate-Trade-Streams
type aggTradeEvent struct {
	Symbol  string `json:"s"`
	AggID   int64  `json:"a"`
	Price   string `json:"p"`
	Qty     string `json:"q"`
	TradeMs int64  `json:"T"`
	BuyerMk bool   `json:"m"`
}

// TradeIngester connects to an aggTrade stream and publishes parsed
// AggTrade values onto its bus.
type TradeIngester struct {
	url string
	bus *bus.Bus[model.AggTrade]
	log *telemetry.Logger
}

// NewTradeIngester constructs a TradeIngester for the given websocket URL.
func NewTradeIngester(url string, b *bus.Bus[model.AggTrade], log *telemetry.Logger) *TradeIngester {
	return &TradeIngester{url: url, bus: b, log: log.With("component", "ingest.trade")}
}

// Start launches the reconnect loop in its own goroutine.
func (i *TradeIngester) Start(ctx context.Context) {
	go i.loop(ctx)
}

func (i *TradeIngester) loop(ctx context.Context) {
	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := i.connectAndConsume(ctx); err != nil {
			i.log.Warn().Err(err).Dur("retry_in", delay).Msg("trade stream disconnected")
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

func (i *TradeIngester) connectAndConsume(ctx context.Context) error {
	c, _, err := websocket.DefaultDialer.Dial(i.url, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	i.log.Info().Msg("connected")

	var event aggTradeEvent
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := c.ReadJSON(&event); err != nil {
			return err
		}

		price, err := fixedmath.FromDecimalString(event.Price, fixedmath.PriceScale)
		if err != nil {
			i.log.Warn().Err(err).Str("raw", event.Price).Msg("dropping trade with unparsable price")
			continue
		}
		qty, err := fixedmath.FromDecimalString(event.Qty, fixedmath.QuantityScale)
		if err != nil {
			i.log.Warn().Err(err).Str("raw", event.Qty).Msg("dropping trade with unparsable quantity")
			continue
		}

		i.bus.Publish(model.AggTrade{
			Symbol:       event.Symbol,
			TradeID:      event.AggID,
			Price:        price,
			Qty:          qty,
			TsMs:         event.TradeMs,
			BuyerIsMaker: event.BuyerMk,
		})
	}
}
