package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTunablesValidate(t *testing.T) {
	tests := []struct {
		name     string
		tunables Tunables
		wantErr  bool
	}{
		{
			name:     "valid",
			tunables: Tunables{MaxAge: 10 * time.Minute, FallbackIP: "10.81.50.100"},
		},
		{
			name:     "max age below one minute",
			tunables: Tunables{MaxAge: 30 * time.Second, FallbackIP: "10.81.50.100"},
			wantErr:  true,
		},
		{
			name:     "missing fallback ip",
			tunables: Tunables{MaxAge: 10 * time.Minute},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tunables.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRuntimeConfigCurrent(t *testing.T) {
	initial := Tunables{MaxAge: 5 * time.Minute, CaptureOnly: true, FallbackIP: "10.81.50.100"}
	runtime := NewRuntimeConfig(initial)

	current := runtime.Current()
	require.Equal(t, initial, current)

	// Readers get value copies; mutating one does not affect the source.
	current.CaptureOnly = false
	assert.True(t, runtime.Current().CaptureOnly)
}
