// Package mempool recycles the large scratch buffers used by model
// preprocessing and mask post-processing.
package mempool

import (
	"sync"
)

var pools sync.Map // key: poolKey, value: *sync.Pool

type poolKey struct {
	kind string
	cls  int
}

// sizeClass rounds n up to the next multiple of 1024.
func sizeClass(n int) int {
	const step = 1024
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func poolFor[T any](kind string, cls int) *sync.Pool {
	pAny, _ := pools.LoadOrStore(poolKey{kind, cls}, &sync.Pool{New: func() any { return make([]T, cls) }})
	return pAny.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

func get[T any](kind string, n int) []T {
	cls := sizeClass(n)
	buf, ok := poolFor[T](kind, cls).Get().([]T)
	if !ok || cap(buf) < cls {
		buf = make([]T, cls)
	}
	return buf[:n]
}

func put[T any](kind string, buf []T) {
	if buf == nil {
		return
	}
	// Buffers that do not sit on a size class boundary came from elsewhere.
	cls := sizeClass(cap(buf))
	if cls != cap(buf) {
		return
	}
	poolFor[T](kind, cls).Put(buf[:cap(buf)]) //nolint:staticcheck
}

// GetFloat32 returns a buffer of length n. Contents are unspecified.
// The caller must return it via PutFloat32 when done.
func GetFloat32(n int) []float32 { return get[float32]("float32", n) }

// PutFloat32 returns a buffer to the pool. It is safe to pass a nil slice.
func PutFloat32(buf []float32) { put("float32", buf) }

// GetBool returns a zeroed buffer of length n.
func GetBool(n int) []bool {
	buf := get[bool]("bool", n)
	clear(buf)
	return buf
}

// PutBool returns a buffer to the pool. It is safe to pass a nil slice.
func PutBool(buf []bool) { put("bool", buf) }

// GetInt32 returns a zeroed buffer of length n, sized for label rasters.
func GetInt32(n int) []int32 {
	buf := get[int32]("int32", n)
	clear(buf)
	return buf
}

// PutInt32 returns a buffer to the pool. It is safe to pass a nil slice.
func PutInt32(buf []int32) { put("int32", buf) }
