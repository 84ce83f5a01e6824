package riscv

import (
	"io"

	"github.com/go-logr/logr"
)

// busAgent is satisfied by both *RAM and *Device: both accept bus-absolute
// addresses and translate internally, so dispatch does not care which kind
// of region it routes to.
type busAgent interface {
	Read8(addr uint64) uint8
	Write8(addr uint64, v uint8)
	Read32(addr uint64) uint32
	Write32(addr uint64, v uint32)
	Read64(addr uint64) uint64
	Write64(addr uint64, v uint64)
}

type addrRegion struct {
	start uint64
	end   uint64
	agent busAgent
	isRAM bool
}

// covers reports whether [addr, addr+width) fits inside the region.
// addr+width may not wrap past the top of the address space.
func (r *addrRegion) covers(addr, width uint64) bool {
	return addr >= r.start && addr <= r.end && width <= r.end-addr
}

// Bus is the address-region registry dispatching reads and writes to
// whichever region's interval contains them. It is not safe for concurrent
// use: only the goroutine driving the core may touch it.
type Bus struct {
	regions []*addrRegion
	ram     *RAM
	log     logr.Logger
}

// NewBus constructs an empty bus. log may be the zero value
// (logr.Discard()) when the caller doesn't want diagnostics.
func NewBus(log logr.Logger) *Bus {
	return &Bus{log: log}
}

func (b *Bus) overlaps(start, end uint64) bool {
	for _, r := range b.regions {
		if start < r.end && end > r.start {
			return true
		}
	}
	return false
}

// AttachRAM registers ram as the bus's RAM region. Only one RAM region is
// permitted; attaching a second fails with ErrRegionOccupied.
func (b *Bus) AttachRAM(ram *RAM) error {
	if b.ram != nil {
		return regionOccupied(ram.Start())
	}
	if b.overlaps(ram.Start(), ram.End()) {
		return regionOccupied(ram.Start())
	}
	b.ram = ram
	b.regions = append(b.regions, &addrRegion{start: ram.Start(), end: ram.End(), agent: ram, isRAM: true})
	b.log.V(1).Info("attached RAM region", "start", ram.Start(), "size", ram.Size())
	return nil
}

// AttachDevice registers dev. Fails with ErrRegionOccupied if dev's
// interval intersects any existing region.
func (b *Bus) AttachDevice(dev *Device) error {
	if b.overlaps(dev.Start(), dev.End()) {
		return regionOccupied(dev.Start())
	}
	b.regions = append(b.regions, &addrRegion{start: dev.Start(), end: dev.End(), agent: dev})
	b.log.V(1).Info("attached device region", "start", dev.Start(), "end", dev.End())
	return nil
}

func (b *Bus) find(addr, width uint64) (*addrRegion, bool) {
	for _, r := range b.regions {
		if r.covers(addr, width) {
			return r, true
		}
	}
	return nil, false
}

func (b *Bus) Read8(addr uint64) (uint8, error) {
	r, ok := b.find(addr, 1)
	if !ok {
		return 0, busFault(addr)
	}
	return r.agent.Read8(addr), nil
}

func (b *Bus) Write8(addr uint64, v uint8) error {
	r, ok := b.find(addr, 1)
	if !ok {
		return busFault(addr)
	}
	r.agent.Write8(addr, v)
	return nil
}

func (b *Bus) Read32(addr uint64) (uint32, error) {
	r, ok := b.find(addr, 4)
	if !ok {
		return 0, busFault(addr)
	}
	return r.agent.Read32(addr), nil
}

func (b *Bus) Write32(addr uint64, v uint32) error {
	r, ok := b.find(addr, 4)
	if !ok {
		return busFault(addr)
	}
	r.agent.Write32(addr, v)
	return nil
}

func (b *Bus) Read64(addr uint64) (uint64, error) {
	r, ok := b.find(addr, 8)
	if !ok {
		return 0, busFault(addr)
	}
	return r.agent.Read64(addr), nil
}

func (b *Bus) Write64(addr uint64, v uint64) error {
	r, ok := b.find(addr, 8)
	if !ok {
		return busFault(addr)
	}
	r.agent.Write64(addr, v)
	return nil
}

// RAMSlice returns a read-only view of size bytes of RAM at addr.
func (b *Bus) RAMSlice(addr, size uint64) ([]byte, bool) {
	if b.ram == nil {
		return nil, false
	}
	return b.ram.Slice(addr, size)
}

// LoadImage copies image into the RAM region at addr.
func (b *Bus) LoadImage(addr uint64, image []byte) error {
	if b.ram == nil {
		return busFault(addr)
	}
	return b.ram.LoadImage(addr, image)
}

// LoadImageReader bulk-loads image bytes from r into RAM at addr, for
// embedders that hold an open stream rather than a byte slice.
func (b *Bus) LoadImageReader(addr uint64, r io.Reader) error {
	image, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return b.LoadImage(addr, image)
}

// SetRAMSize resizes the bus's RAM region.
func (b *Bus) SetRAMSize(n uint64) error {
	if b.ram == nil {
		return busFault(0)
	}
	oldEnd := b.ram.End()
	b.ram.Resize(n)
	for _, r := range b.regions {
		if r.isRAM {
			r.end = r.start + n
		}
	}
	b.log.V(1).Info("resized RAM region", "old_end", oldEnd, "new_end", b.ram.End())
	return nil
}
