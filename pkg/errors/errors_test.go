package errors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{name: "token missing", err: ErrTokenMissing, code: CodeTokenMissing},
		{name: "token malformed", err: ErrTokenMalformed, code: CodeTokenMalformed},
		{name: "token not found", err: ErrTokenNotFound, code: CodeTokenNotFound},
		{name: "token expired", err: ErrTokenExpired, code: CodeTokenExpired},
		{name: "malformed packet", err: ErrMalformedPacket, code: CodeMalformedPacket},
		{name: "wrapped taxonomy error", err: Wrap(ErrTokenExpired, "authorize"), code: CodeMalformedPacket},
		{name: "unknown error", err: New("boom"), code: CodeMalformedPacket},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, Code(tt.err))
		})
	}
}

func TestNewBody(t *testing.T) {
	body := NewBody(CodeTokenExpired, "token expired", "session ended 2m ago")
	assert.Equal(t, CodeTokenExpired, body.Error)
	assert.Equal(t, "token expired", body.Message)
	assert.Equal(t, "session ended 2m ago", body.Details)

	ts, err := time.Parse(time.RFC3339, body.Timestamp)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), ts, time.Minute)
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "context"))
	err := Wrap(New("inner"), "outer")
	require.Error(t, err)
	assert.Equal(t, "outer: inner", err.Error())
}
