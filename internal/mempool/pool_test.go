package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"small size gets minimum", 1, 1024},
		{"exactly 1024", 1024, 1024},
		{"just over 1024", 1025, 2048},
		{"exact multiple", 4096, 4096},
		{"odd number", 5000, 5120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sizeClass(tt.input))
		})
	}
}

func TestGetFloat32_LengthAndCapacity(t *testing.T) {
	buf := GetFloat32(3 * 256 * 256)
	require.Len(t, buf, 3*256*256)
	assert.Equal(t, sizeClass(3*256*256), cap(buf))
	PutFloat32(buf)
}

func TestGetBool_IsZeroedAfterReuse(t *testing.T) {
	for range 10 {
		buf := GetBool(2000)
		for i, v := range buf {
			require.False(t, v, "index %d not cleared", i)
		}
		for i := range buf {
			buf[i] = true
		}
		PutBool(buf)
	}
}

func TestGetInt32_IsZeroedAfterReuse(t *testing.T) {
	for range 10 {
		buf := GetInt32(3000)
		for _, v := range buf {
			require.Zero(t, v)
		}
		for i := range buf {
			buf[i] = 7
		}
		PutInt32(buf)
	}
}

func TestPut_IgnoresForeignAndNil(t *testing.T) {
	assert.NotPanics(t, func() {
		PutFloat32(nil)
		PutBool(nil)
		PutInt32(nil)
		PutFloat32(make([]float32, 10, 1000))
	})
}

func TestPool_ConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := range 50 {
				n := 512 + (seed*97+i*31)%4096
				buf := GetFloat32(n)
				if len(buf) != n {
					t.Errorf("got len %d, want %d", len(buf), n)
				}
				PutFloat32(buf)
			}
		}(g)
	}
	wg.Wait()
}
