package riscv

import "github.com/go-logr/logr"

// The three machine CSRs this subset supports, addressed by their
// 12-bit index.
const (
	CSRMtvec    uint16 = 0x305
	CSRMscratch uint16 = 0x340
	CSRMhartid  uint16 = 0xF14
)

// CSRFile holds the machine-mode control and status registers. mhartid is
// always zero and never stored.
type CSRFile struct {
	mtvec    uint64
	mscratch uint64
	log      logr.Logger
}

// NewCSRFile constructs a CSR file with all registers zeroed.
func NewCSRFile(log logr.Logger) *CSRFile {
	return &CSRFile{log: log}
}

// Read64 reads the CSR at index csr. mhartid always reads zero. An
// unsupported index faults with ErrUnsupportedCSR rather than aborting,
// so embedders can recover.
func (c *CSRFile) Read64(csr uint16) (uint64, error) {
	switch csr {
	case CSRMtvec:
		return c.mtvec, nil
	case CSRMscratch:
		return c.mscratch, nil
	case CSRMhartid:
		return 0, nil
	default:
		c.log.V(1).Info("read of unsupported CSR", "csr", csr)
		return 0, unsupportedCSR(csr)
	}
}

// Write64 writes v to the CSR at index csr. Writes to mhartid are
// silently ignored, not faulted. An unsupported index faults.
func (c *CSRFile) Write64(csr uint16, v uint64) error {
	switch csr {
	case CSRMtvec:
		c.mtvec = v
	case CSRMscratch:
		c.mscratch = v
	case CSRMhartid:
		// read-only, writes ignored
	default:
		c.log.V(1).Info("write of unsupported CSR", "csr", csr)
		return unsupportedCSR(csr)
	}
	return nil
}
