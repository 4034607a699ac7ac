// Package packet implements the text frame format exchanged with clients:
// a verb, an optional scope, zero or more "key: value" header lines and an
// optional pretty-printed JSON body.
package packet

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/loqui-chat/loqui/pkg/json"
)

// Verbs sent to clients.
const (
	VerbConnected = "CONNECTED"
	VerbError     = "ERROR"
	VerbCreate    = "CREATE"
	VerbUpdate    = "UPDATE"
	VerbDelete    = "DELETE"
)

// Handshake is the only recognized inbound client message: the
// authentication token. Any other shape decodes to an absent token.
type Handshake struct {
	Token string `json:"token"`
}

// Encode formats an outbound packet. Headers are written in sorted key order
// so the output is deterministic. A nil body omits the body section.
func Encode(verb, scope string, headers map[string]string, body any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(verb)
	if scope != "" {
		buf.WriteByte(' ')
		buf.WriteString(scope)
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, "\n%s: %s", k, headers[k])
	}

	if body != nil {
		data, err := json.MarshalIndent(body, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode packet body: %w", err)
		}
		buf.WriteString("\n\n")
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

// Decode parses an inbound client frame. Invalid JSON, a non-object, or a
// missing token field all yield a Handshake with an empty token.
func Decode(raw []byte) Handshake {
	var h Handshake
	if err := json.Unmarshal(raw, &h); err != nil {
		return Handshake{}
	}
	return h
}
