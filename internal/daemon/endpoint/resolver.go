// Package endpoint turns node settings into an RPC endpoint: the loopback
// listener of the integrated daemon, a user supplied URL, or a public node
// picked from the DNS seeders.
package endpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/config"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
)

var (
	// ErrInvalidWrpcURL is returned for a custom URL that does not parse.
	ErrInvalidWrpcURL = errors.New("invalid wRPC URL")
	// ErrNoOpenNode is returned when no public node answered within the budget.
	ErrNoOpenNode = errors.New("no open public node found")
)

// DefaultSeeders are the DNS seeders listing public nodes.
var DefaultSeeders = []string{
	"seeder1.waglayla.com",
	"seeder2.waglayla.com",
	"seeder3.waglayla.com",
}

const (
	DefaultProbeTimeout = 2 * time.Second
	DefaultBudget       = 30 * time.Second
	// roundPause separates probing rounds that failed without waiting.
	roundPause = 500 * time.Millisecond
)

// Endpoint is a resolved RPC target, valid for one connect attempt.
type Endpoint struct {
	URL      string
	Encoding types.Encoding
	// Resolvers lists the seeders consulted, if any.
	Resolvers []string
}

// LookupFunc resolves a host name to addresses.
type LookupFunc func(ctx context.Context, host string) ([]string, error)

// ProbeFunc reports whether addr accepts TCP connections within timeout.
type ProbeFunc func(ctx context.Context, addr string, timeout time.Duration) bool

// Config configures the Resolver.
type Config struct {
	Seeders      []string
	ProbeTimeout time.Duration
	// Budget bounds public node selection.
	Budget time.Duration
	Lookup LookupFunc
	Probe  ProbeFunc
	// Seed makes seeder shuffling deterministic when non-zero.
	Seed   uint64
	Logger *slog.Logger
}

// DefaultConfig returns the production resolver configuration.
func DefaultConfig() Config {
	return Config{
		Seeders:      DefaultSeeders,
		ProbeTimeout: DefaultProbeTimeout,
		Budget:       DefaultBudget,
	}
}

// Resolver derives endpoints from node settings.
type Resolver struct {
	seeders      []string
	probeTimeout time.Duration
	budget       time.Duration
	lookup       LookupFunc
	probe        ProbeFunc
	logger       *slog.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// NewResolver creates a resolver, filling unset fields from DefaultConfig.
func NewResolver(cfg Config) *Resolver {
	def := DefaultConfig()
	if len(cfg.Seeders) == 0 {
		cfg.Seeders = def.Seeders
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = def.ProbeTimeout
	}
	if cfg.Budget == 0 {
		cfg.Budget = def.Budget
	}
	if cfg.Lookup == nil {
		cfg.Lookup = net.DefaultResolver.LookupHost
	}
	if cfg.Probe == nil {
		cfg.Probe = tcpProbe
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var src rand.Source
	if cfg.Seed != 0 {
		src = rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	} else {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}

	return &Resolver{
		seeders:      append([]string(nil), cfg.Seeders...),
		probeTimeout: cfg.ProbeTimeout,
		budget:       cfg.Budget,
		lookup:       cfg.Lookup,
		probe:        cfg.Probe,
		logger:       logger,
		rnd:          rand.New(src),
	}
}

// Resolve returns the endpoint for the node settings, or nil for a
// disabled node.
func (r *Resolver) Resolve(ctx context.Context, ns config.NodeSettings) (*Endpoint, error) {
	switch ns.Kind {
	case types.NodeKindDisabled:
		return nil, nil
	case types.NodeKindIntegratedDaemon:
		ep := Loopback()
		return &ep, nil
	case types.NodeKindRemote:
		switch ns.ConnectionKind {
		case types.ConnectionPublicServerRandom:
			return r.PickPublicNode(ctx, ns.WrpcEncoding)
		default:
			// public-server-custom behaves as custom.
			u, err := ParseURL(ns.WrpcURL, ns.WrpcEncoding)
			if err != nil {
				return nil, err
			}
			return &Endpoint{URL: u, Encoding: ns.WrpcEncoding}, nil
		}
	}
	return nil, fmt.Errorf("unknown node kind %q", ns.Kind)
}

// Loopback returns the integrated daemon endpoint. The supervisor talks to
// its own daemon over the loopback JSON listener.
func Loopback() Endpoint {
	return Endpoint{
		URL:      "ws://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(types.DefaultWrpcJSONPort)),
		Encoding: types.EncodingJSON,
	}
}

// ParseURL validates a user supplied wRPC URL. A bare host or host:port is
// accepted and prefixed with ws://; a missing port defaults to the
// encoding's listen port. Failures wrap ErrInvalidWrpcURL.
func ParseURL(raw string, enc types.Encoding) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidWrpcURL)
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return "", fmt.Errorf("%w: %q contains whitespace", ErrInvalidWrpcURL, raw)
	}
	if !strings.Contains(s, "://") {
		s = "ws://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidWrpcURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidWrpcURL, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidWrpcURL, raw)
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return "", fmt.Errorf("%w: invalid port %q", ErrInvalidWrpcURL, p)
		}
	} else if u.Scheme == "ws" {
		u.Host = net.JoinHostPort(host, strconv.Itoa(enc.DefaultPort()))
	}
	return u.String(), nil
}

// PickPublicNode probes the addresses listed by the seeders in random order
// and returns the first one whose wRPC port is open. It gives up with
// ErrNoOpenNode once the budget is spent.
func (r *Resolver) PickPublicNode(ctx context.Context, enc types.Encoding) (*Endpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, r.budget)
	defer cancel()

	port := strconv.Itoa(enc.DefaultPort())
	start := time.Now()

	for round := 1; ; round++ {
		for _, seeder := range r.shuffled() {
			addrs, err := r.lookup(ctx, seeder)
			if err != nil {
				r.logger.Debug("seeder lookup failed", "seeder", seeder, "error", err)
			}
			for _, ip := range addrs {
				addr := net.JoinHostPort(ip, port)
				if r.probe(ctx, addr, r.probeTimeout) {
					r.logger.Info("selected public node",
						"addr", addr,
						"seeder", seeder,
						"round", round,
						"elapsed", time.Since(start).Round(time.Millisecond))
					return &Endpoint{
						URL:       "ws://" + addr,
						Encoding:  enc,
						Resolvers: []string{seeder},
					}, nil
				}
				if ctx.Err() != nil {
					break
				}
			}
			if ctx.Err() != nil {
				break
			}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w within %s", ErrNoOpenNode, r.budget)
			}
			return nil, ctx.Err()
		case <-time.After(roundPause):
		}
	}
}

// shuffled returns the seeders in a fresh random order.
func (r *Resolver) shuffled() []string {
	out := append([]string(nil), r.seeders...)
	r.rndMu.Lock()
	r.rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	r.rndMu.Unlock()
	return out
}

func tcpProbe(ctx context.Context, addr string, timeout time.Duration) bool {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
