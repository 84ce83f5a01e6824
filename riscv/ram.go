package riscv

import "encoding/binary"

// RAM is a contiguous little-endian byte store with a fixed base address.
// The region is resizable, so it is backed by a slice rather than an array.
type RAM struct {
	start uint64
	m     []byte
}

// NewRAM allocates a RAM region of size bytes starting at start.
func NewRAM(start uint64, size uint64) *RAM {
	return &RAM{start: start, m: make([]byte, size)}
}

// Start returns the region's base address.
func (r *RAM) Start() uint64 { return r.start }

// End returns the address one past the region's last valid byte.
func (r *RAM) End() uint64 { return r.start + uint64(len(r.m)) }

// Size returns the region's size in bytes.
func (r *RAM) Size() uint64 { return uint64(len(r.m)) }

// localOffset converts a bus address into an index into m. Out-of-range
// access is a programming error in this layer: the bus is responsible for
// routing only addresses that fall within [start, end) here, so this
// panics rather than returning an error.
func (r *RAM) localOffset(addr uint64, width uint64) int {
	off := addr - r.start
	if addr < r.start || off+width > uint64(len(r.m)) {
		panic("riscv: RAM access out of bounds")
	}
	return int(off)
}

func (r *RAM) Read8(addr uint64) uint8 {
	return r.m[r.localOffset(addr, 1)]
}

func (r *RAM) Write8(addr uint64, v uint8) {
	r.m[r.localOffset(addr, 1)] = v
}

func (r *RAM) Read32(addr uint64) uint32 {
	off := r.localOffset(addr, 4)
	return binary.LittleEndian.Uint32(r.m[off:])
}

func (r *RAM) Write32(addr uint64, v uint32) {
	off := r.localOffset(addr, 4)
	binary.LittleEndian.PutUint32(r.m[off:], v)
}

func (r *RAM) Read64(addr uint64) uint64 {
	off := r.localOffset(addr, 8)
	return binary.LittleEndian.Uint64(r.m[off:])
}

func (r *RAM) Write64(addr uint64, v uint64) {
	off := r.localOffset(addr, 8)
	binary.LittleEndian.PutUint64(r.m[off:], v)
}

// LoadImage copies bytes into the region at addr. Returns ErrRamOverflow
// if the image does not fit.
func (r *RAM) LoadImage(addr uint64, image []byte) error {
	off := addr - r.start
	if addr < r.start || off > uint64(len(r.m)) || uint64(len(image)) > uint64(len(r.m))-off {
		return ramOverflow(off)
	}
	copy(r.m[off:], image)
	return nil
}

// Resize grows or shrinks the region. New bytes (on growth) read as zero.
func (r *RAM) Resize(newSize uint64) {
	if newSize == uint64(len(r.m)) {
		return
	}
	grown := make([]byte, newSize)
	copy(grown, r.m)
	r.m = grown
}

// Slice returns a read-only view of size bytes at addr, or false if the
// range falls outside the region.
func (r *RAM) Slice(addr uint64, size uint64) ([]byte, bool) {
	off := addr - r.start
	if addr < r.start || off > uint64(len(r.m)) || size > uint64(len(r.m))-off {
		return nil, false
	}
	return r.m[off : off+size], true
}
