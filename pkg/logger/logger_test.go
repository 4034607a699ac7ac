package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{
			name: "defaults applied",
			cfg:  Config{ServiceName: "relay"},
		},
		{
			name: "explicit level and environment",
			cfg: Config{
				Environment: "production",
				LogLevel:    "warn",
				ServiceName: "relay",
			},
		},
		{
			name: "unknown level falls back to info",
			cfg: Config{
				LogLevel:    "verbose",
				ServiceName: "relay",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			require.NoError(t, err)
			assert.NotNil(t, log)
		})
	}
}
