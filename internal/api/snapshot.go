package api

import (
	"time"

	"spotmatch/internal/matching"
	"spotmatch/internal/tradelog"
)

// buildMarketSnapshot aggregates book depth and recent trade history into
// one response, following the teacher's BuildSnapshot pattern of folding
// several components together instead of making the client round-trip per
// concern.
func buildMarketSnapshot(engine *matching.Engine, trades *tradelog.Log, symbol string) (marketSnapshotResponse, error) {
	depth, err := engine.Depth(symbol, 20)
	if err != nil {
		return marketSnapshotResponse{}, err
	}
	return marketSnapshotResponse{
		Symbol:       symbol,
		Timestamp:    time.Now(),
		Depth:        depth,
		RecentTrades: newTradeResponses(trades.Recent(symbol, 50)),
	}, nil
}
