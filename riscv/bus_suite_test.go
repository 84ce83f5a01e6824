package riscv_test

import (
	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rvsim/riscv"
)

var _ = Describe("Bus", func() {
	var bus *riscv.Bus

	BeforeEach(func() {
		bus = riscv.NewBus(logr.Discard())
	})

	Describe("attaching regions", func() {
		It("accepts a single RAM region", func() {
			ram := riscv.NewRAM(0x8000_0000, 4096)
			Expect(bus.AttachRAM(ram)).To(Succeed())
		})

		It("rejects a second RAM region", func() {
			Expect(bus.AttachRAM(riscv.NewRAM(0, 16))).To(Succeed())
			err := bus.AttachRAM(riscv.NewRAM(0x1000, 16))
			Expect(err).To(HaveOccurred())
			Expect(err).To(MatchError(riscv.ErrRegionOccupied))
		})

		It("rejects an overlapping device region", func() {
			Expect(bus.AttachRAM(riscv.NewRAM(0, 0x20))).To(Succeed())
			dev := riscv.NewDevice(0x10, 0x10, riscv.NewUART())
			err := bus.AttachDevice(dev)
			Expect(err).To(MatchError(riscv.ErrRegionOccupied))
		})
	})

	Describe("dispatching accesses", func() {
		BeforeEach(func() {
			Expect(bus.AttachRAM(riscv.NewRAM(0x8000_0000, 4096))).To(Succeed())
		})

		It("round-trips an 8/32/64-bit write+read", func() {
			Expect(bus.Write8(0x8000_0000, 0xAB)).To(Succeed())
			v8, err := bus.Read8(0x8000_0000)
			Expect(err).NotTo(HaveOccurred())
			Expect(v8).To(Equal(uint8(0xAB)))

			Expect(bus.Write32(0x8000_0004, 0xDEADBEEF)).To(Succeed())
			v32, err := bus.Read32(0x8000_0004)
			Expect(err).NotTo(HaveOccurred())
			Expect(v32).To(Equal(uint32(0xDEADBEEF)))

			Expect(bus.Write64(0x8000_0008, 0x0123_4567_89AB_CDEF)).To(Succeed())
			v64, err := bus.Read64(0x8000_0008)
			Expect(err).NotTo(HaveOccurred())
			Expect(v64).To(Equal(uint64(0x0123_4567_89AB_CDEF)))
		})

		It("faults on an address outside every region", func() {
			_, err := bus.Read32(0xFFFF_FFFF)
			Expect(err).To(MatchError(riscv.ErrBusFault))
		})

		It("loads an image and exposes it through RAMSlice", func() {
			Expect(bus.LoadImage(0x8000_0000, []byte{1, 2, 3, 4})).To(Succeed())
			slice, ok := bus.RAMSlice(0x8000_0000, 4)
			Expect(ok).To(BeTrue())
			Expect(slice).To(Equal([]byte{1, 2, 3, 4}))
		})
	})

	Describe("UART output", func() {
		It("emits exactly one byte per TXDATA write", func() {
			Expect(bus.AttachRAM(riscv.NewRAM(0x8000_0000, 4096))).To(Succeed())
			uart := riscv.NewUART()
			Expect(bus.AttachDevice(riscv.NewDevice(0x1001_0000, 0x20, uart))).To(Succeed())

			var received []byte
			uart.RegisterOutCallback(func(b byte) { received = append(received, b) })

			Expect(bus.Write32(0x1001_0000, 0x48)).To(Succeed())
			Expect(received).To(Equal([]byte{0x48}))
		})

		It("reads of TXDATA return 0 and other registers are inert", func() {
			Expect(bus.AttachRAM(riscv.NewRAM(0x8000_0000, 4096))).To(Succeed())
			uart := riscv.NewUART()
			Expect(bus.AttachDevice(riscv.NewDevice(0x1001_0000, 0x20, uart))).To(Succeed())

			v, err := bus.Read32(0x1001_0000)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint32(0)))

			Expect(bus.Write32(0x1001_0010, 0xFF)).To(Succeed())
			v, err = bus.Read32(0x1001_0010)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint32(0)))
		})
	})
})
