// Package store persists the stats history: one sample per stats tick,
// trimmed to a fixed number of entries.
package store

import (
	"context"
	"time"
)

// Sample is a snapshot of the chain metrics taken by one stats tick. Zero
// values mean the metric was not available in that tick.
type Sample struct {
	Time        time.Time `json:"time"`
	DaaScore    uint64    `json:"daaScore,omitempty"`
	BlockReward uint64    `json:"blockReward,omitempty"`
	Circulating uint64    `json:"circulating,omitempty"`
	MaxSupply   uint64    `json:"maxSupply,omitempty"`
	Hashrate    uint64    `json:"hashrate,omitempty"`
	Difficulty  uint64    `json:"difficulty,omitempty"`
	Mempool     int       `json:"mempool,omitempty"`
	Peers       int       `json:"peers,omitempty"`
	TPS         float64   `json:"tps,omitempty"`
}

// History stores samples in time order.
type History interface {
	// Append stores s and drops the oldest samples beyond the limit.
	Append(ctx context.Context, s Sample) error
	// Last returns up to n most recent samples, oldest first.
	Last(ctx context.Context, n int) ([]Sample, error)
	Len(ctx context.Context) (int, error)
	Close() error
}

// DefaultLimit is the number of samples kept when no limit is configured:
// one day at one sample per second.
const DefaultLimit = 24 * 60 * 60
