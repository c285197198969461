//go:build bridge_embed

package bridgebin

import _ "embed"

// The release build drops the bridge executable for the target platform at
// payload/waglayla-bridge before building with -tags bridge_embed.
//
//go:embed payload/waglayla-bridge
var payload []byte
