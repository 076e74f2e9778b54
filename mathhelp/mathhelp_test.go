package mathhelp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-3, 0, 255))
	assert.Equal(t, 255, Clamp(300, 0, 255))
	assert.Equal(t, 8369.5, Clamp(8369.5, -32768, 32767))
}

func TestRescale(t *testing.T) {
	tests := []struct {
		v, lo, hi float64
		want      float64
	}{
		{v: 5, lo: 0, hi: 10, want: 0.5},
		{v: -1, lo: 0, hi: 10, want: 0},
		{v: 11, lo: 0, hi: 10, want: 1},
		{v: 3, lo: 3, hi: 3, want: 0},
		{v: 3, lo: 4, hi: 2, want: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Rescale(tt.v, tt.lo, tt.hi), "Rescale(%v, %v, %v)", tt.v, tt.lo, tt.hi)
	}
}

func TestBool2int(t *testing.T) {
	assert.Equal(t, 1, Bool2int(true))
	assert.Equal(t, 0, Bool2int(false))
}
