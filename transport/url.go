package transport

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/replistream/client-go/protocol"
)

// Subprotocol is the WebSocket subprotocol this client speaks.
const Subprotocol = "v1.bsatn.spacetimedb"

// BuildURL constructs the subscribe endpoint for a module, per
// ws(s)://<host>/v1/database/<moduleName>/subscribe?connection_id=<hex>
// &compression=<algo>[&light=true].
func BuildURL(baseURI, moduleName string, connectionID string, compression protocol.Compression, lightMode bool) (string, error) {
	u, err := url.Parse(baseURI)
	if err != nil {
		return "", fmt.Errorf("transport: invalid uri: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("transport: unsupported scheme %q", u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/v1/database/" + moduleName + "/subscribe"

	q := u.Query()
	q.Set("connection_id", connectionID)
	q.Set("compression", compression.String())
	if lightMode {
		q.Set("light", "true")
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
