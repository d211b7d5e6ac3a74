// Package memedit resolves typed values from a foreign process's memory by
// walking chains of pointer offsets. Every read has exactly two outcomes,
// value or unavailable; a broken hop never raises an error and is never
// retried. Callers own the fallback policy.
package memedit

import (
	"encoding/binary"
	"math"
)

// Reader provides random-access reads of the target process's memory.
// Implementations return the number of bytes read and an error for any
// address that cannot be read; this package treats short reads as failures.
type Reader interface {
	ReadMemory(addr uint64, buf []byte) (int, error)
}

// Chain is an ordered pointer path through the target's address space.
// The walk starts at the first element (an absolute address), reads a
// 64-bit pointer at each intermediate hop and adds the following offset;
// the typed value of interest lives at the final address. Chains are
// immutable and safe to resolve repeatedly.
type Chain struct {
	r     Reader
	elems []uint64
}

// NewChain builds a chain from an absolute base address and its offsets.
// At least the base element is required.
func NewChain(r Reader, elems ...uint64) *Chain {
	cp := make([]uint64, len(elems))
	copy(cp, elems)
	return &Chain{r: r, elems: cp}
}

// Resolve walks the chain and returns the address holding the final value.
// A null pointer or failed read at any hop aborts immediately.
func (c *Chain) Resolve() (uint64, bool) {
	if len(c.elems) == 0 {
		return 0, false
	}
	addr := c.elems[0]
	for _, off := range c.elems[1:] {
		buf, ok := c.read(addr, 8)
		if !ok {
			return 0, false
		}
		ptr := binary.LittleEndian.Uint64(buf)
		if ptr == 0 {
			return 0, false
		}
		addr = ptr + off
	}
	return addr, true
}

// U8 resolves the chain and reads one unsigned byte.
func (c *Chain) U8() (uint8, bool) {
	buf, ok := c.readFinal(1)
	if !ok {
		return 0, false
	}
	return buf[0], true
}

// Bool resolves the chain and reads one byte as a flag (non-zero is true).
func (c *Chain) Bool() (bool, bool) {
	v, ok := c.U8()
	if !ok {
		return false, false
	}
	return v != 0, true
}

// U32 resolves the chain and reads a little-endian unsigned 32-bit value.
func (c *Chain) U32() (uint32, bool) {
	buf, ok := c.readFinal(4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(buf), true
}

// U64 resolves the chain and reads a little-endian unsigned 64-bit value.
func (c *Chain) U64() (uint64, bool) {
	buf, ok := c.readFinal(8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(buf), true
}

// F32 resolves the chain and reads a 32-bit IEEE 754 float.
func (c *Chain) F32() (float32, bool) {
	v, ok := c.U32()
	if !ok {
		return 0, false
	}
	return math.Float32frombits(v), true
}

// F32Vec3 resolves the chain and reads three consecutive 32-bit floats,
// the layout the engine uses for position vectors.
func (c *Chain) F32Vec3() ([3]float32, bool) {
	buf, ok := c.readFinal(12)
	if !ok {
		return [3]float32{}, false
	}
	var v [3]float32
	for i := 0; i < 3; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, true
}

func (c *Chain) readFinal(n int) ([]byte, bool) {
	addr, ok := c.Resolve()
	if !ok {
		return nil, false
	}
	return c.read(addr, n)
}

func (c *Chain) read(addr uint64, n int) ([]byte, bool) {
	buf := make([]byte, n)
	read, err := c.r.ReadMemory(addr, buf)
	if err != nil || read != n {
		return nil, false
	}
	return buf, true
}
