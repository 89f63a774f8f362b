package hwdemo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClampLimitsToUnitRange(t *testing.T) {
	require.Equal(t, float32(1.0), clamp(1.5))
	require.Equal(t, float32(-1.0), clamp(-1.5))
	require.Equal(t, float32(0.25), clamp(0.25))
}

func TestNewCapturerStartsNotRunning(t *testing.T) {
	c := NewCapturer(nil, 48000, 1)
	require.False(t, c.running)
}
