package rpc

import "context"

// Method names of the node wRPC API.
const (
	MethodGetServerInfo                  = "getServerInfo"
	MethodGetSyncStatus                  = "getSyncStatus"
	MethodGetCoinSupply                  = "getCoinSupply"
	MethodEstimateNetworkHashesPerSecond = "estimateNetworkHashesPerSecond"
	MethodGetBlockDagInfo                = "getBlockDagInfo"
	MethodGetMempoolEntries              = "getMempoolEntries"
	MethodGetConnectedPeerInfo           = "getConnectedPeerInfo"
	MethodGetMetrics                     = "getMetrics"
	MethodGetUtxosByAddresses            = "getUtxosByAddresses"
	MethodPing                           = "ping"
)

// HashrateWindow is the block window used for hashrate estimates.
const HashrateWindow = 1000

type ServerInfo struct {
	RPCAPIVersion  uint16 `json:"rpcApiVersion"`
	RPCAPIRevision uint16 `json:"rpcApiRevision"`
	ServerVersion  string `json:"serverVersion"`
	NetworkID      string `json:"networkId"`
	HasUtxoIndex   bool   `json:"hasUtxoIndex"`
	IsSynced       bool   `json:"isSynced"`
	VirtualDaa     uint64 `json:"virtualDaaScore"`
}

type CoinSupply struct {
	MaxSompi         uint64 `json:"maxSompi"`
	CirculatingSompi uint64 `json:"circulatingSompi"`
}

type BlockDagInfo struct {
	Network         string   `json:"network"`
	BlockCount      uint64   `json:"blockCount"`
	HeaderCount     uint64   `json:"headerCount"`
	TipHashes       []string `json:"tipHashes"`
	Difficulty      float64  `json:"difficulty"`
	PastMedianTime  uint64   `json:"pastMedianTime"`
	VirtualDaaScore uint64   `json:"virtualDaaScore"`
	Sink            string   `json:"sink"`
}

type MempoolEntry struct {
	Fee         uint64             `json:"fee"`
	IsOrphan    bool               `json:"isOrphan"`
	Transaction MempoolTransaction `json:"transaction"`
}

type MempoolTransaction struct {
	ID string `json:"id,omitempty"`
}

type PeerInfo struct {
	ID         string `json:"id"`
	Address    string `json:"address"`
	IsOutbound bool   `json:"isOutbound"`
	UserAgent  string `json:"userAgent"`
}

type ConsensusMetrics struct {
	NodeBlocksSubmittedCount       uint64  `json:"nodeBlocksSubmittedCount"`
	NodeHeadersProcessedCount      uint64  `json:"nodeHeadersProcessedCount"`
	NodeTransactionsProcessedCount uint64  `json:"nodeTransactionsProcessedCount"`
	NodeDatabaseBlocksCount        uint64  `json:"nodeDatabaseBlocksCount"`
	NetworkMempoolSize             uint64  `json:"networkMempoolSize"`
	NetworkTipHashesCount          uint32  `json:"networkTipHashesCount"`
	NetworkDifficulty              float64 `json:"networkDifficulty"`
	NetworkVirtualDaaScore         uint64  `json:"networkVirtualDaaScore"`
}

type Metrics struct {
	ServerTime       uint64            `json:"serverTime"`
	ConsensusMetrics *ConsensusMetrics `json:"consensusMetrics,omitempty"`
}

type Outpoint struct {
	TransactionID string `json:"transactionId"`
	Index         uint32 `json:"index"`
}

type UtxoEntry struct {
	Amount        uint64 `json:"amount"`
	BlockDaaScore uint64 `json:"blockDaaScore"`
	IsCoinbase    bool   `json:"isCoinbase"`
}

type UtxoByAddress struct {
	Address   string    `json:"address"`
	Outpoint  Outpoint  `json:"outpoint"`
	UtxoEntry UtxoEntry `json:"utxoEntry"`
}

// Caller is the part of Client the typed calls need.
type Caller interface {
	Call(ctx context.Context, method string, params, result any) error
}

type empty struct{}

func GetServerInfo(ctx context.Context, c Caller) (*ServerInfo, error) {
	var resp ServerInfo
	if err := c.Call(ctx, MethodGetServerInfo, empty{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func GetSyncStatus(ctx context.Context, c Caller) (bool, error) {
	var resp struct {
		IsSynced bool `json:"isSynced"`
	}
	if err := c.Call(ctx, MethodGetSyncStatus, empty{}, &resp); err != nil {
		return false, err
	}
	return resp.IsSynced, nil
}

func GetCoinSupply(ctx context.Context, c Caller) (*CoinSupply, error) {
	var resp CoinSupply
	if err := c.Call(ctx, MethodGetCoinSupply, empty{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EstimateNetworkHashesPerSecond estimates the hashrate over window blocks
// ending at the sink.
func EstimateNetworkHashesPerSecond(ctx context.Context, c Caller, window uint32) (uint64, error) {
	params := struct {
		WindowSize uint32  `json:"windowSize"`
		StartHash  *string `json:"startHash"`
	}{WindowSize: window}
	var resp struct {
		NetworkHashesPerSecond uint64 `json:"networkHashesPerSecond"`
	}
	if err := c.Call(ctx, MethodEstimateNetworkHashesPerSecond, params, &resp); err != nil {
		return 0, err
	}
	return resp.NetworkHashesPerSecond, nil
}

func GetBlockDagInfo(ctx context.Context, c Caller) (*BlockDagInfo, error) {
	var resp BlockDagInfo
	if err := c.Call(ctx, MethodGetBlockDagInfo, empty{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func GetMempoolEntries(ctx context.Context, c Caller, includeOrphanPool, filterTransactionPool bool) ([]MempoolEntry, error) {
	params := struct {
		IncludeOrphanPool     bool `json:"includeOrphanPool"`
		FilterTransactionPool bool `json:"filterTransactionPool"`
	}{includeOrphanPool, filterTransactionPool}
	var resp struct {
		MempoolEntries []MempoolEntry `json:"mempoolEntries"`
	}
	if err := c.Call(ctx, MethodGetMempoolEntries, params, &resp); err != nil {
		return nil, err
	}
	return resp.MempoolEntries, nil
}

func GetConnectedPeerInfo(ctx context.Context, c Caller) ([]PeerInfo, error) {
	var resp struct {
		PeerInfo []PeerInfo `json:"peerInfo"`
	}
	if err := c.Call(ctx, MethodGetConnectedPeerInfo, empty{}, &resp); err != nil {
		return nil, err
	}
	return resp.PeerInfo, nil
}

// GetConsensusMetrics requests only the consensus metrics section.
func GetConsensusMetrics(ctx context.Context, c Caller) (*Metrics, error) {
	params := struct {
		ProcessMetrics    bool `json:"processMetrics"`
		ConnectionMetrics bool `json:"connectionMetrics"`
		BandwidthMetrics  bool `json:"bandwidthMetrics"`
		ConsensusMetrics  bool `json:"consensusMetrics"`
		StorageMetrics    bool `json:"storageMetrics"`
		CustomMetrics     bool `json:"customMetrics"`
	}{ConsensusMetrics: true}
	var resp Metrics
	if err := c.Call(ctx, MethodGetMetrics, params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func GetUtxosByAddresses(ctx context.Context, c Caller, addresses []string) ([]UtxoByAddress, error) {
	params := struct {
		Addresses []string `json:"addresses"`
	}{addresses}
	var resp struct {
		Entries []UtxoByAddress `json:"entries"`
	}
	if err := c.Call(ctx, MethodGetUtxosByAddresses, params, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func Ping(ctx context.Context, c Caller) error {
	return c.Call(ctx, MethodPing, empty{}, nil)
}
