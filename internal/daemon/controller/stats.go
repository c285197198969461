package controller

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/events"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/rpc"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/store"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/subsidy"
)

const (
	DefaultStatsInterval    = 1 * time.Second
	DefaultStatsCallTimeout = 5 * time.Second
)

// StatsServiceConfig configures the Stats Service.
type StatsServiceConfig struct {
	Interval    time.Duration
	CallTimeout time.Duration
	// Enabled reports whether polling is switched on. Defaults to always.
	Enabled  func() bool
	Schedule subsidy.Schedule
	// Now replaces time.Now for the subsidy lookup and samples.
	Now func() time.Time
	// History stores one sample per tick when set.
	History store.History
	// Bus receives the metric events. Required.
	Bus    events.Publisher
	Logger *slog.Logger
}

// StatsService polls chain metrics while an RPC client is attached.
type StatsService struct {
	*lifecycle

	cfg    StatsServiceConfig
	logger *slog.Logger

	mu     sync.Mutex
	client rpc.Client

	// Transaction counter baseline for the TPS delta. Launch goroutine only.
	lastTxCount    uint64
	lastServerTime uint64
}

// NewStatsService creates the Stats Service.
func NewStatsService(cfg StatsServiceConfig) *StatsService {
	if cfg.Interval == 0 {
		cfg.Interval = DefaultStatsInterval
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = DefaultStatsCallTimeout
	}
	if cfg.Enabled == nil {
		cfg.Enabled = func() bool { return true }
	}
	if cfg.Schedule.Monthly == nil {
		cfg.Schedule = subsidy.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &StatsService{
		lifecycle: newLifecycle(),
		cfg:       cfg,
		logger:    cfg.Logger.With("service", "stats"),
	}
}

func (s *StatsService) Name() string { return "stats" }

func (s *StatsService) RPCAttach(_ context.Context, client rpc.Client) error {
	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	return nil
}

func (s *StatsService) RPCDetach(_ context.Context) error {
	s.mu.Lock()
	s.client = nil
	s.mu.Unlock()
	return nil
}

func (s *StatsService) attached() rpc.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// Launch ticks until terminated.
func (s *StatsService) Launch(ctx context.Context) error {
	defer s.finish()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	var last rpc.Client
	for {
		select {
		case <-s.terminate:
			return nil
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			client := s.attached()
			if client != last {
				s.lastTxCount, s.lastServerTime = 0, 0
				last = client
			}
			if client == nil || !s.cfg.Enabled() {
				continue
			}
			tickCtx, cancel := s.abortable(ctx)
			s.tick(tickCtx, client)
			cancel()
		}
	}
}

// tick runs one polling round. Every call is independent: a failure is
// logged and the round continues. Each metric is published at most once.
func (s *StatsService) tick(ctx context.Context, client rpc.Client) {
	now := s.cfg.Now()
	sample := store.Sample{Time: now}

	reward := s.cfg.Schedule.Reward(now)
	s.cfg.Bus.Publish(events.BlockRewardUpdate{Sompi: reward})
	sample.BlockReward = reward

	s.call(ctx, "coin supply", func(ctx context.Context) error {
		supply, err := rpc.GetCoinSupply(ctx, client)
		if err != nil {
			return err
		}
		s.cfg.Bus.Publish(events.CoinSupplyUpdate{Circulating: supply.CirculatingSompi, Max: supply.MaxSompi})
		sample.Circulating, sample.MaxSupply = supply.CirculatingSompi, supply.MaxSompi
		return nil
	})

	s.call(ctx, "hashrate", func(ctx context.Context) error {
		rate, err := rpc.EstimateNetworkHashesPerSecond(ctx, client, rpc.HashrateWindow)
		if err != nil {
			return err
		}
		s.cfg.Bus.Publish(events.HashrateUpdate{HashesPerSecond: rate})
		sample.Hashrate = rate
		return nil
	})

	s.call(ctx, "block dag info", func(ctx context.Context) error {
		info, err := rpc.GetBlockDagInfo(ctx, client)
		if err != nil {
			return err
		}
		difficulty := clampDifficulty(info.Difficulty)
		s.cfg.Bus.Publish(events.DifficultyUpdate{Difficulty: difficulty})
		sample.Difficulty = difficulty
		sample.DaaScore = info.VirtualDaaScore
		return nil
	})

	s.call(ctx, "mempool", func(ctx context.Context) error {
		entries, err := rpc.GetMempoolEntries(ctx, client, false, false)
		if err != nil {
			return err
		}
		s.cfg.Bus.Publish(events.MempoolSize{Count: len(entries)})
		sample.Mempool = len(entries)
		return nil
	})

	s.call(ctx, "peers", func(ctx context.Context) error {
		peers, err := rpc.GetConnectedPeerInfo(ctx, client)
		if err != nil {
			return err
		}
		s.cfg.Bus.Publish(events.PeerCount{Count: len(peers)})
		sample.Peers = len(peers)
		return nil
	})

	s.call(ctx, "metrics", func(ctx context.Context) error {
		m, err := rpc.GetConsensusMetrics(ctx, client)
		if err != nil {
			return err
		}
		if m.ConsensusMetrics == nil {
			return nil
		}
		tps, ok := s.tps(m.ServerTime, m.ConsensusMetrics.NodeTransactionsProcessedCount)
		if ok {
			s.cfg.Bus.Publish(events.NetworkTPSUpdate{TPS: tps})
			sample.TPS = tps
		}
		return nil
	})

	if s.cfg.History != nil {
		if err := s.cfg.History.Append(ctx, sample); err != nil {
			s.logger.Warn("failed to store stats sample", "error", err)
		}
	}
}

// tps returns the processed transaction rate since the previous sample.
// serverTime is in milliseconds. The first sample only sets the baseline.
func (s *StatsService) tps(serverTime, txCount uint64) (float64, bool) {
	prevTime, prevCount := s.lastServerTime, s.lastTxCount
	s.lastServerTime, s.lastTxCount = serverTime, txCount

	if prevTime == 0 || serverTime <= prevTime || txCount < prevCount {
		return 0, false
	}
	elapsed := float64(serverTime-prevTime) / 1000
	return float64(txCount-prevCount) / elapsed, true
}

func (s *StatsService) call(ctx context.Context, what string, fn func(context.Context) error) {
	if ctx.Err() != nil {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	if err := fn(callCtx); err != nil {
		s.logger.Debug("stats call failed", "call", what, "error", err)
	}
}

// clampDifficulty maps the node's float difficulty onto uint64. NaN and
// non-positive values read as zero; values past the range saturate.
func clampDifficulty(d float64) uint64 {
	switch {
	case math.IsNaN(d) || d <= 0:
		return 0
	case d >= math.MaxUint64:
		return math.MaxUint64
	}
	return uint64(d)
}
