// Package ring provides the bounded circular byte buffer shared between a
// channel's I/O pump and its API-facing side.
package ring

import (
	"errors"
	"fmt"
)

const (
	// MinCapacity is the smallest capacity a Ring is created with
	MinCapacity = 16

	// MaxCapacity is the largest capacity a Ring can be created with
	MaxCapacity = 1 << 30
)

var ErrInvalidCapacity = errors.New("ring: capacity out of range")

// roundUpPowerOfTwo returns the next power of two >= n, with minimum value of MinCapacity.
func roundUpPowerOfTwo(n int) uint64 {
	if n < MinCapacity {
		return MinCapacity
	}

	x := uint64(n)
	if x&(x-1) == 0 {
		return x
	}

	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	x++

	return x
}

// Ring is a fixed-capacity circular byte store with independent read (head)
// and write (tail) cursors. The cursors are monotonic byte counts; the
// position in buf is the cursor masked by capacity-1.
//
// Ring is not synchronized. Callers sharing a Ring between goroutines must
// hold a common lock around every call.
type Ring struct {
	buf  []byte
	mask uint64
	head uint64 // next byte to read
	tail uint64 // next byte to write
}

// New returns a Ring with at least minCap bytes of capacity. The actual
// capacity is rounded up to a power of two.
func New(minCap int) (*Ring, error) {
	if minCap <= 0 || minCap > MaxCapacity {
		return nil, ErrInvalidCapacity
	}

	capacity := roundUpPowerOfTwo(minCap)
	return &Ring{
		buf:  make([]byte, capacity),
		mask: capacity - 1,
	}, nil
}

// Capacity returns the byte capacity of the ring
func (r *Ring) Capacity() int {
	return len(r.buf)
}

// Filled returns the number of bytes waiting to be read
func (r *Ring) Filled() int {
	return int(r.tail - r.head)
}

// Available returns the number of bytes that can be written
func (r *Ring) Available() int {
	return len(r.buf) - r.Filled()
}

// Head returns the contiguous readable region starting at the read cursor.
// Its length may be less than Filled when the data wraps.
func (r *Ring) Head() []byte {
	filled := r.Filled()
	if filled == 0 {
		return nil
	}
	start := int(r.head & r.mask)
	end := start + filled
	if end > len(r.buf) {
		end = len(r.buf)
	}
	return r.buf[start:end]
}

// Tail returns the contiguous writable region starting at the write cursor.
// Its length may be less than Available when the free space wraps.
func (r *Ring) Tail() []byte {
	avail := r.Available()
	if avail == 0 {
		return nil
	}
	start := int(r.tail & r.mask)
	end := start + avail
	if end > len(r.buf) {
		end = len(r.buf)
	}
	return r.buf[start:end]
}

// AdvanceHead consumes n bytes from the head of the ring
func (r *Ring) AdvanceHead(n int) {
	if n < 0 || n > r.Filled() {
		panic(fmt.Sprintf("ring: advance head by %d with %d filled", n, r.Filled()))
	}
	r.head += uint64(n)
}

// AdvanceTail commits n bytes written into the region returned by Tail
func (r *Ring) AdvanceTail(n int) {
	if n < 0 || n > r.Available() {
		panic(fmt.Sprintf("ring: advance tail by %d with %d available", n, r.Available()))
	}
	r.tail += uint64(n)
}

// Write copies as much of p as fits into the ring and returns the count
func (r *Ring) Write(p []byte) int {
	total := 0
	for len(p) > 0 {
		n := copy(r.Tail(), p)
		if n == 0 {
			break
		}
		r.AdvanceTail(n)
		p = p[n:]
		total += n
	}
	return total
}

// Read copies up to len(p) buffered bytes into p and returns the count
func (r *Ring) Read(p []byte) int {
	total := 0
	for len(p) > 0 {
		n := copy(p, r.Head())
		if n == 0 {
			break
		}
		r.AdvanceHead(n)
		p = p[n:]
		total += n
	}
	return total
}

// String returns a short description of the ring's occupancy
func (r *Ring) String() string {
	return fmt.Sprintf("Ring{Filled=%d, Capacity=%d}", r.Filled(), r.Capacity())
}
