package graph

import (
	"encoding/binary"

	"github.com/sbl8/attrgraph/debugserver"
)

// DebugHandler adapts a Graph to debugserver.Handler. The wire format is
// intentionally minimal — spec.md §6 specifies the connection framing, not
// a request schema, so this implements the one operation every debugger
// front-end needs first: querying the live graph_counter values. A 1-byte
// request selects a CounterQuery; the response is its value as a
// little-endian uint64.
func (g *Graph) DebugHandler() debugserver.Handler {
	return debugserver.HandlerFunc(func(request []byte) ([]byte, bool) {
		if len(request) != 1 {
			return nil, false
		}
		q := CounterQuery(request[0])
		if q < CounterNodeCount || q > CounterThreadUpdating {
			return nil, false
		}
		value := g.Counter(q)
		resp := make([]byte, 8)
		binary.LittleEndian.PutUint64(resp, value)
		return resp, true
	})
}
