//go:build !bridge_embed

package bridgebin

var payload []byte
