// Package model holds the data types shared across the order-flow core:
// inbound exchange events, the enriched trade the preprocessor produces,
// zone/candidate/signal types, and the outbound health/anomaly contracts.
package model

// Side is the aggressive side of a trade, or a signal's directional bias.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// DepthUpdate is an incremental order-book depth update, scoped to a
// sequence range [SequenceFirst, SequenceLast].
type DepthUpdate struct {
	Symbol        string
	SequenceFirst int64
	SequenceLast  int64
	EventTimeMs   int64
	Bids          []DepthRow
	Asks          []DepthRow
}

// DepthRow is a single (price, qty) row within a DepthUpdate or
// DepthSnapshot, both PriceScale/QuantityScale-scaled integers.
type DepthRow struct {
	Price int64
	Qty   int64
}

// DepthSnapshot is a solicited full order-book snapshot used to recover
// OrderBookState after a sequence gap.
type DepthSnapshot struct {
	Symbol        string
	LastUpdateID  int64
	Bids          []DepthRow
	Asks          []DepthRow
}

// AggTrade is a single aggregated trade print from the exchange.
type AggTrade struct {
	Symbol      string
	TradeID     int64
	Price       int64 // PriceScale-scaled
	Qty         int64 // QuantityScale-scaled
	TsMs        int64
	BuyerIsMaker bool
}

// AggressiveSide returns the side that removed liquidity: when the buyer
// is the maker, the trade was filled by an aggressive sell order.
func (t AggTrade) AggressiveSide() Side {
	if t.BuyerIsMaker {
		return SideSell
	}
	return SideBuy
}

// ZoneSnapshot is the aggregated state of one price bucket within one
// horizon's ZoneAggregator, at a point in time.
type ZoneSnapshot struct {
	ZoneID             int64 // normalized bucket price
	PriceLevel         int64
	TickSize           int64
	AggressiveVol      int64
	PassiveVol         int64
	AggrBuyVol         int64
	AggrSellVol        int64
	PassiveBidVol      int64
	PassiveAskVol      int64
	TradeCount         int64
	TimespanMs         int64
	BoundaryMin        int64
	BoundaryMax        int64
	LastUpdateMs       int64
	VolumeWeightedPrice int64
}

// StandardZoneData bundles the three standard horizons (5T/10T/20T)
// attached to every EnrichedTrade.
type StandardZoneData struct {
	Zones5T  []ZoneSnapshot
	Zones10T []ZoneSnapshot
	Zones20T []ZoneSnapshot
	Config   ZoneConfig
}

// ZoneConfig describes the tick horizons used to build StandardZoneData.
type ZoneConfig struct {
	BaseTicks    [3]int64 // {5, 10, 20}
	TickValue    int64
	TimeWindowMs int64
}

// EnrichedTrade is an AggTrade augmented with the passive-liquidity
// context sampled from the book state immediately preceding the trade.
type EnrichedTrade struct {
	AggTrade
	BestBid               int64
	BestAsk               int64
	PassiveBidVolAtPrice  int64
	PassiveAskVolAtPrice  int64
	ZonePassiveBidVol     int64
	ZonePassiveAskVol     int64
	ZoneData              StandardZoneData
}

// SignalType enumerates the candidate/confirmed signal pattern kinds.
type SignalType string

const (
	SignalAbsorption    SignalType = "absorption"
	SignalExhaustion    SignalType = "exhaustion"
	SignalAccumulation  SignalType = "accumulation"
	SignalDistribution  SignalType = "distribution"
	SignalIceberg       SignalType = "iceberg"
	SignalSpoofing      SignalType = "spoofing"
)

// SignalCandidateData carries the detector-specific evidence attached to a
// SignalCandidate.
type SignalCandidateData struct {
	Price      int64
	Aggressive int64
	Passive    int64
	Refilled   bool
	Meta       map[string]string
}

// SignalCandidate is a detector's raw emission, before SignalManager
// gating, deduplication, and TP/SL derivation.
type SignalCandidate struct {
	ID         string
	DetectorID string
	Type       SignalType
	Side       Side
	Confidence float64
	TsMs       int64
	Data       SignalCandidateData
}

// Correlation summarizes how a ConfirmedSignal relates to recent history.
type Correlation struct {
	Count    int
	Strength float64
}

// ConfirmedSignal is emitted after all SignalManager gates pass.
type ConfirmedSignal struct {
	ID              string
	Origin          []SignalCandidate
	FinalConfidence float64
	FinalPrice      int64
	TPPrice         int64
	SLPrice         int64
	Side            Side
	ConfirmedAtMs   int64
	Correlation     Correlation
	HealthContext   MarketHealth
}

// Recommendation is MarketHealth's aggregate trading recommendation.
type Recommendation string

const (
	RecommendContinue         Recommendation = "continue"
	RecommendReduceSize       Recommendation = "reduce_size"
	RecommendPause            Recommendation = "pause"
	RecommendClosePositions   Recommendation = "close_positions"
	RecommendInsufficientData Recommendation = "insufficient_data"
)

// HealthMetrics carries the raw numbers MarketHealth's recommendation is
// derived from.
type HealthMetrics struct {
	SpreadBps        float64
	FlowImbalance    float64
	Volatility       float64
	LastUpdateAgeMs  int64
}

// MarketHealth is the AnomalyDetector's aggregate health assessment,
// queried on every SignalCandidate.
type MarketHealth struct {
	IsHealthy          bool
	Recommendation     Recommendation
	CriticalIssues     []string
	RecentAnomalyTypes []string
	Metrics            HealthMetrics
}

// AnomalySeverity ranks an AnomalyEvent's urgency.
type AnomalySeverity string

const (
	SeverityCritical AnomalySeverity = "critical"
	SeverityHigh     AnomalySeverity = "high"
	SeverityMedium   AnomalySeverity = "medium"
	SeverityInfo     AnomalySeverity = "info"
)

// AnomalyType enumerates the kinds of anomaly AnomalyDetector can emit.
type AnomalyType string

const (
	AnomalyFlashCrash        AnomalyType = "flash_crash"
	AnomalyLiquidityVoid     AnomalyType = "liquidity_void"
	AnomalyFeedGap           AnomalyType = "feed_gap"
	AnomalyExtremeVolatility AnomalyType = "extreme_volatility"
	AnomalyWhaleActivity     AnomalyType = "whale_activity"
	AnomalyOBImbalance       AnomalyType = "orderbook_imbalance"
	AnomalyFlowImbalance     AnomalyType = "flow_imbalance"
)

// PriceRange describes the price band an anomaly was observed in.
type PriceRange struct {
	Min int64
	Max int64
}

// AnomalyEvent is the outbound contract published to the external
// alerter/dashboard when AnomalyDetector fires.
type AnomalyEvent struct {
	Type               AnomalyType
	Severity           AnomalySeverity
	DetectedAtMs       int64
	AffectedPriceRange PriceRange
	RecommendedAction  Recommendation
	Details            map[string]string
}

// OrderBookSnapshotLevel is one price level in an OrderBookSnapshot.
type OrderBookSnapshotLevel struct {
	Price  int64
	BidQty int64
	AskQty int64
}

// OrderBookSnapshot is the read-only view published to UI/dashboard
// consumers; the core loop publishes one about once per second.
type OrderBookSnapshot struct {
	Symbol       string
	Levels       []OrderBookSnapshotLevel
	BestBid      int64
	BestAsk      int64
	LastUpdateID int64
	TsMs         int64
}
