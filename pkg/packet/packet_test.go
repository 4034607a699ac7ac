package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loqui-chat/loqui/pkg/json"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		verb    string
		scope   string
		headers map[string]string
		body    any
		want    string
	}{
		{
			name: "verb only",
			verb: VerbConnected,
			want: "CONNECTED",
		},
		{
			name:  "verb and scope",
			verb:  VerbCreate,
			scope: "contact",
			want:  "CREATE contact",
		},
		{
			name:    "headers in sorted key order",
			verb:    VerbUpdate,
			scope:   "contact/status",
			headers: map[string]string{"status": "away", "for": "alice"},
			want:    "UPDATE contact/status\nfor: alice\nstatus: away",
		},
		{
			name:  "body separated by blank line",
			verb:  VerbCreate,
			scope: "message",
			body:  map[string]string{"text": "hi"},
			want:  "CREATE message\n\n{\n  \"text\": \"hi\"\n}",
		},
		{
			name:    "headers and body",
			verb:    VerbConnected,
			headers: map[string]string{"for": "bob"},
			body:    map[string]int{"unread": 3},
			want:    "CONNECTED\nfor: bob\n\n{\n  \"unread\": 3\n}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.verb, tt.scope, tt.headers, tt.body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		token string
	}{
		{name: "valid handshake", raw: `{"token": "4f2c6a1e-9af1-4a7e-ae12-1c1b6f5a8d90"}`, token: "4f2c6a1e-9af1-4a7e-ae12-1c1b6f5a8d90"},
		{name: "empty object", raw: `{}`, token: ""},
		{name: "invalid json", raw: `not json at all`, token: ""},
		{name: "json array", raw: `["token"]`, token: ""},
		{name: "token wrong type", raw: `{"token": 42}`, token: ""},
		{name: "extra fields ignored", raw: `{"token": "t", "noise": true}`, token: "t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.token, Decode([]byte(tt.raw)).Token)
		})
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	raw, err := json.Marshal(Handshake{Token: "session-token"})
	require.NoError(t, err)
	assert.Equal(t, "session-token", Decode(raw).Token)
}
