package riscv

// Dev is the capability set a memory-mapped device must expose. Addresses
// passed to a Dev are device-local (bus address minus the region's base),
// never bus-absolute.
type Dev interface {
	Read8(addr uint64) uint8
	Write8(addr uint64, v uint8)
	Read32(addr uint64) uint32
	Write32(addr uint64, v uint32)
	Read64(addr uint64) uint64
	Write64(addr uint64, v uint64)
}

// Device wraps a Dev with its region's base address, translating
// bus-absolute addresses to device-local ones before delegating.
type Device struct {
	start uint64
	end   uint64
	dev   Dev
}

// NewDevice attaches dev to cover [start, start+size).
func NewDevice(start, size uint64, dev Dev) *Device {
	return &Device{start: start, end: start + size, dev: dev}
}

func (d *Device) Start() uint64 { return d.start }

func (d *Device) End() uint64 { return d.end }

func (d *Device) Read8(addr uint64) uint8 { return d.dev.Read8(addr - d.start) }

func (d *Device) Write8(addr uint64, v uint8) { d.dev.Write8(addr-d.start, v) }

func (d *Device) Read32(addr uint64) uint32 { return d.dev.Read32(addr - d.start) }

func (d *Device) Write32(addr uint64, v uint32) { d.dev.Write32(addr-d.start, v) }

func (d *Device) Read64(addr uint64) uint64 { return d.dev.Read64(addr - d.start) }

func (d *Device) Write64(addr uint64, v uint64) { d.dev.Write64(addr-d.start, v) }

// UARTTXData is the device-local offset of the UART's transmit register.
const UARTTXData = 0x00

// UART is a minimal memory-mapped output-only serial port: the low byte of
// a 32-bit write to UARTTXData is handed to every registered callback
// synchronously. All other accesses, including 8- and 64-bit writes to
// UARTTXData, are inert (reads return zero, writes are discarded).
type UART struct {
	callbacks []func(byte)
}

// NewUART constructs an empty UART with no registered callbacks.
func NewUART() *UART {
	return &UART{}
}

// RegisterOutCallback adds a sink invoked for every 32-bit write to
// TXDATA, with the written value's low byte. Call sites typically register a closure that forwards to an
// output channel (see worker.go) so the core's write never blocks on a
// slow reader.
func (u *UART) RegisterOutCallback(cb func(byte)) {
	u.callbacks = append(u.callbacks, cb)
}

func (u *UART) Read8(uint64) uint8 { return 0 }

func (u *UART) Write8(uint64, uint8) {}

func (u *UART) Read32(uint64) uint32 { return 0 }

func (u *UART) Read64(uint64) uint64 { return 0 }

func (u *UART) Write64(uint64, uint64) {}

func (u *UART) Write32(addr uint64, v uint32) {
	if addr != UARTTXData {
		return
	}
	b := byte(v & 0xff)
	for _, cb := range u.callbacks {
		cb(b)
	}
}
