package riscv_test

import (
	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rvsim/riscv"
)

var _ = Describe("CSRFile", func() {
	var csrs *riscv.CSRFile

	BeforeEach(func() {
		csrs = riscv.NewCSRFile(logr.Discard())
	})

	DescribeTable("read/write round trip",
		func(csr uint16, value uint64) {
			Expect(csrs.Write64(csr, value)).To(Succeed())
			got, err := csrs.Read64(csr)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(value))
		},
		Entry("mtvec", riscv.CSRMtvec, uint64(0x8000_0000)),
		Entry("mscratch", riscv.CSRMscratch, uint64(0x1234_5678_9ABC_DEF0)),
	)

	It("always reads mhartid as zero and ignores writes", func() {
		Expect(csrs.Write64(riscv.CSRMhartid, 7)).To(Succeed())
		got, err := csrs.Read64(riscv.CSRMhartid)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeZero())
	})

	It("faults on an unsupported index instead of aborting", func() {
		_, err := csrs.Read64(0x7C0)
		Expect(err).To(MatchError(riscv.ErrUnsupportedCSR))
	})
})
