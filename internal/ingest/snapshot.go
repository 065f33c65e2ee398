package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/model"
	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/telemetry"
)

const snapshotURLFmt = "https://fapi.binance.com/fapi/v1/depth?symbol=%s&limit=1000"

// snapshotResponse matches Binance's REST order-book snapshot response.
type snapshotResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// SnapshotFetcher fetches a full order-book snapshot over REST, used to
// recover book state after connecting to the diff-depth stream.
type SnapshotFetcher struct {
	symbol string
	url    string
	client *http.Client
	log    *telemetry.Logger
}

// NewSnapshotFetcher constructs a SnapshotFetcher for symbol (Binance's
// upper-case REST convention, e.g. "BTCUSDT").
func NewSnapshotFetcher(symbol string, log *telemetry.Logger) *SnapshotFetcher {
	return &SnapshotFetcher{
		symbol: symbol,
		url:    fmt.Sprintf(snapshotURLFmt, symbol),
		client: &http.Client{Timeout: 5 * time.Second},
		log:    log.With("component", "ingest.snapshot"),
	}
}

// Fetch retrieves the current order-book snapshot.
func (f *SnapshotFetcher) Fetch(ctx context.Context) (model.DepthSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return model.DepthSnapshot{}, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return model.DepthSnapshot{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return model.DepthSnapshot{}, fmt.Errorf("ingest: snapshot fetch HTTP %d: %s", resp.StatusCode, string(body))
	}

	var data snapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return model.DepthSnapshot{}, fmt.Errorf("ingest: snapshot decode: %w", err)
	}

	return model.DepthSnapshot{
		Symbol:       f.symbol,
		LastUpdateID: data.LastUpdateID,
		Bids:         parseRows(data.Bids, f.log),
		Asks:         parseRows(data.Asks, f.log),
	}, nil
}
