package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/spf13/cobra"

	"rvsim/riscv"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rvsim",
		Short: "rvsim — an educational RV64I/RVC/Zicsr simulator core",
	}

	var loadAddr string
	var binPath string
	var ramSize string
	var breakpoint string
	var maxInstr uint64
	var interactive bool
	var verbose bool

	execCmd := &cobra.Command{
		Use:   "exec",
		Short: "Load a binary image and execute it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(execOpts{
				loadAddr:    loadAddr,
				binPath:     binPath,
				ramSize:     ramSize,
				breakpoint:  breakpoint,
				maxInstr:    maxInstr,
				interactive: interactive,
				verbose:     verbose,
			})
		},
	}
	execCmd.Flags().StringVarP(&loadAddr, "load-addr", "l", "0x80000000", "Address in hex where to load the binary")
	execCmd.Flags().StringVar(&binPath, "bin", "", "Path to the binary file")
	execCmd.MarkFlagRequired("bin")
	execCmd.Flags().StringVarP(&ramSize, "ram", "r", "4k", "RAM size, e.g. 4k, 16kib, 1m")
	execCmd.Flags().StringVarP(&breakpoint, "breakpoint", "b", "", `Breakpoint - "auto" or an address in hex`)
	execCmd.Flags().Uint64Var(&maxInstr, "max-instr", ^uint64(0), "Maximum number of instructions before stop")
	execCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run a step/continue/break REPL instead of executing to completion")
	execCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging of bus/CSR faults")

	rootCmd.AddCommand(execCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type execOpts struct {
	loadAddr    string
	binPath     string
	ramSize     string
	breakpoint  string
	maxInstr    uint64
	interactive bool
	verbose     bool
}

func runExec(o execOpts) error {
	addr, err := hexToU64(o.loadAddr)
	if err != nil {
		return fmt.Errorf("wrong hex in --load-addr: %w", err)
	}

	ramSz, err := parseSize(o.ramSize)
	if err != nil {
		return fmt.Errorf("wrong --ram size: %w", err)
	}

	image, err := os.ReadFile(o.binPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", o.binPath, err)
	}

	log := logr.Discard()
	if o.verbose {
		log = funcr.New(func(prefix, args string) {
			fmt.Fprintln(os.Stderr, prefix, args)
		}, funcr.Options{})
	}

	bus := riscv.NewBus(log)
	ram := riscv.NewRAM(addr, ramSz)
	if err := bus.AttachRAM(ram); err != nil {
		return fmt.Errorf("attach ram: %w", err)
	}
	uart := riscv.NewUART()
	uart.RegisterOutCallback(func(b byte) { fmt.Printf("%c", b) })
	if err := bus.AttachDevice(riscv.NewDevice(0x1001_0000, 0x20, uart)); err != nil {
		return fmt.Errorf("attach uart: %w", err)
	}

	csr := riscv.NewCSRFile(log)
	cpu := riscv.NewCPU(bus, csr, log)
	core := riscv.NewCore(cpu, bus, log)

	if err := core.LoadImage(addr, image); err != nil {
		return fmt.Errorf("load image: %w", err)
	}
	fmt.Printf("Loaded %s at 0x%x\n", o.binPath, addr)

	if o.breakpoint != "" && o.breakpoint != "auto" {
		bp, err := hexToU64(o.breakpoint)
		if err != nil {
			return fmt.Errorf("wrong hex in --breakpoint: %w", err)
		}
		core.AddBreakpoint(bp)
	}
	if o.breakpoint == "auto" {
		// Heuristic: break at the first instruction after the image.
		core.AddBreakpoint(addr + uint64(len(image)))
	}

	if o.interactive {
		return runInteractive(core, o.maxInstr)
	}
	return runToCompletion(core, o.maxInstr)
}

func runToCompletion(core *riscv.Core, maxInstr uint64) error {
	ev := core.ContinueFor(maxInstr)
	switch ev.Kind {
	case riscv.EventMaxInstructions:
		fmt.Printf("stopped: instruction budget exhausted at pc=0x%x\n", ev.PC)
		return nil
	case riscv.EventBreakpoint:
		fmt.Printf("stopped: breakpoint hit at pc=0x%x\n", ev.PC)
		return nil
	case riscv.EventFault:
		fmt.Fprintf(os.Stderr, "fault: %v\n", ev.Fault)
		return ev.Fault
	default:
		return nil
	}
}

func runInteractive(core *riscv.Core, maxInstr uint64) error {
	fmt.Printf("Commands:\n\tn or next [count]: execute next instruction(s)\n\tc or continue: run to completion or breakpoint\n\tb or break <hex>: set breakpoint\n\tregs: print registers\n\tq or quit: exit\n\n")

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("\n-> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}
		fields := strings.Fields(strings.ToLower(strings.TrimSpace(line)))
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "q", "quit":
			return nil
		case "n", "next":
			n := uint64(1)
			if len(fields) > 1 {
				if v, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
					n = v
				}
			}
			ev := core.ContinueFor(n)
			printEvent(ev)
		case "c", "continue":
			ev := core.ContinueFor(maxInstr)
			printEvent(ev)
		case "b", "break":
			if len(fields) < 2 {
				fmt.Println("usage: break <hex>")
				continue
			}
			addr, err := hexToU64(fields[1])
			if err != nil {
				fmt.Println("bad address:", err)
				continue
			}
			core.AddBreakpoint(addr)
			fmt.Printf("breakpoint set at 0x%x\n", addr)
		case "regs":
			printRegs(core.GetRegs(), core.GetPC())
		default:
			fmt.Println("unknown command")
		}
	}
}

func printEvent(ev riscv.ExecEvent) {
	switch ev.Kind {
	case riscv.EventMaxInstructions:
		fmt.Printf("pc=0x%x (budget reached)\n", ev.PC)
	case riscv.EventBreakpoint:
		fmt.Printf("pc=0x%x (breakpoint)\n", ev.PC)
	case riscv.EventFault:
		fmt.Printf("pc=0x%x fault=%v\n", ev.PC, ev.Fault)
	}
}

func printRegs(regs [32]uint64, pc uint64) {
	fmt.Printf("pc = 0x%016x\n", pc)
	for i, v := range regs {
		fmt.Printf("x%-2d = 0x%016x\n", i, v)
	}
}

func hexToU64(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	return strconv.ParseUint(s, 16, 64)
}
