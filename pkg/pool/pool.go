// Object pools for hot command and status paths
//
// Provides reusable pools for the allocations the command dispatcher
// and status reporting perform on every call:
// - String maps for command arguments
// - Float slices for shaper pulse trains
// - Status maps for GetStatus() results
// - Byte buffers for metrics rendering
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package pool

import "sync"

var argsMapPool = sync.Pool{
	New: func() any {
		return make(map[string]string, 8)
	},
}

// GetArgsMap gets a command argument map from the pool.
func GetArgsMap() map[string]string {
	return argsMapPool.Get().(map[string]string)
}

// PutArgsMap clears and returns an argument map to the pool.
func PutArgsMap(m map[string]string) {
	if m == nil {
		return
	}
	clear(m)
	argsMapPool.Put(m)
}

// Float64Slice pool - shaper pulse trains hold 2 to 5 entries
type float64SlicePool struct {
	pools [4]sync.Pool
}

var floatSlicePool = &float64SlicePool{}

func init() {
	for i := range floatSlicePool.pools {
		size := i + 2
		floatSlicePool.pools[i].New = func() any {
			return make([]float64, size)
		}
	}
}

func poolIndex(size int) int {
	if size >= 2 && size <= 5 {
		return size - 2
	}
	return -1
}

// GetFloat64Slice gets a zeroed float64 slice from the pool. Sizes
// without a pool are allocated directly.
func GetFloat64Slice(size int) []float64 {
	idx := poolIndex(size)
	if idx >= 0 {
		s := floatSlicePool.pools[idx].Get().([]float64)
		for i := range s {
			s[i] = 0
		}
		return s
	}
	return make([]float64, size)
}

// PutFloat64Slice returns a float64 slice to the pool.
func PutFloat64Slice(s []float64) {
	if s == nil {
		return
	}
	if idx := poolIndex(len(s)); idx >= 0 {
		floatSlicePool.pools[idx].Put(s)
	}
}

var statusMapPool = sync.Pool{
	New: func() any {
		return make(map[string]any, 16)
	},
}

// GetStatusMap gets a status map from the pool.
func GetStatusMap() map[string]any {
	return statusMapPool.Get().(map[string]any)
}

// PutStatusMap clears and returns a status map to the pool.
func PutStatusMap(m map[string]any) {
	if m == nil {
		return
	}
	clear(m)
	statusMapPool.Put(m)
}

// ByteBuffer is a pooled growable byte buffer.
type ByteBuffer struct {
	buf []byte
}

var byteBufferPool = sync.Pool{
	New: func() any {
		return &ByteBuffer{buf: make([]byte, 0, 256)}
	},
}

// GetByteBuffer gets an empty byte buffer from the pool.
func GetByteBuffer() *ByteBuffer {
	b := byteBufferPool.Get().(*ByteBuffer)
	b.buf = b.buf[:0]
	return b
}

// PutByteBuffer returns a byte buffer to the pool. Oversized buffers
// are discarded.
func PutByteBuffer(b *ByteBuffer) {
	if b == nil || cap(b.buf) > 4096 {
		return
	}
	byteBufferPool.Put(b)
}

// Bytes returns the buffer contents.
func (b *ByteBuffer) Bytes() []byte { return b.buf }

// Len returns the buffer length.
func (b *ByteBuffer) Len() int { return len(b.buf) }

// Write appends bytes to the buffer.
func (b *ByteBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// WriteString appends a string to the buffer.
func (b *ByteBuffer) WriteString(s string) (int, error) {
	b.buf = append(b.buf, s...)
	return len(s), nil
}

// WriteByte appends a single byte.
func (b *ByteBuffer) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}
