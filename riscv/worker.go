package riscv

import (
	"context"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"
)

// batchSize is the number of instructions a running worker executes
// between polls of the command channel. Cancellation is cooperative:
// a queued Stop takes effect at the next batch boundary.
const batchSize = 1024

// CommandKind identifies which of the three control actions a Command
// carries.
type CommandKind int

const (
	CmdLoadImage CommandKind = iota
	CmdContinue
	CmdStop
)

// Command is one message sent down the command channel. ID is stamped
// with a correlation identifier (xid, monotonic and sortable) so an
// embedder that queued several commands can match an asynchronous Event
// back to the Command that caused it.
type Command struct {
	ID       xid.ID
	Kind     CommandKind
	Addr     uint64
	Image    []byte
	MaxInstr uint64
}

// NewLoadImageCommand builds a LoadImage command.
func NewLoadImageCommand(addr uint64, image []byte) Command {
	return Command{ID: xid.New(), Kind: CmdLoadImage, Addr: addr, Image: image}
}

// NewContinueCommand builds a Continue command with an instruction budget.
func NewContinueCommand(maxInstr uint64) Command {
	return Command{ID: xid.New(), Kind: CmdContinue, MaxInstr: maxInstr}
}

// NewStopCommand builds a Stop command.
func NewStopCommand() Command {
	return Command{ID: xid.New(), Kind: CmdStop}
}

// Event reports the outcome of processing one Command, correlated back by
// ID.
type Event struct {
	CommandID xid.ID
	ExecEvent ExecEvent
}

// Worker runs a Core in a dedicated goroutine behind two unidirectional
// channels: a command channel (controller to core, FIFO) and an output
// channel (core to controller, the UART's byte stream). The command
// channel is drained blocking while stopped and non-blocking between
// instruction batches while running, so a long Continue never has to be
// preempted.
type Worker struct {
	core   *Core
	uart   *UART
	log    logr.Logger
	cmds   chan Command
	events chan Event
	output chan byte

	droppedOutput atomic.Uint64
}

// outputBacklog bounds the output channel. The UART callback must never
// block the simulator, so when the controller falls this far behind,
// bytes are dropped and counted rather than queued without bound.
const outputBacklog = 1 << 16

// NewWorker constructs a Worker around core, forwarding UART output to an
// internal channel. uart must be the same UART instance attached to
// core's bus.
func NewWorker(core *Core, uart *UART, log logr.Logger) *Worker {
	w := &Worker{
		core:   core,
		uart:   uart,
		log:    log,
		cmds:   make(chan Command, 64),
		events: make(chan Event, 64),
		output: make(chan byte, outputBacklog),
	}
	uart.RegisterOutCallback(w.onUARTByte)
	return w
}

func (w *Worker) onUARTByte(b byte) {
	select {
	case w.output <- b:
	default:
		w.droppedOutput.Add(1)
		w.log.V(1).Info("output channel full, dropping byte")
	}
}

// DroppedOutputBytes returns how many UART bytes were dropped because the
// output channel was full.
func (w *Worker) DroppedOutputBytes() uint64 { return w.droppedOutput.Load() }

// Send enqueues a command. Delivery is FIFO.
func (w *Worker) Send(cmd Command) { w.cmds <- cmd }

// Output returns the channel of emitted UART bytes. The controller reads
// from it without blocking the core.
func (w *Worker) Output() <-chan byte { return w.output }

// Events returns the channel of per-command outcomes.
func (w *Worker) Events() <-chan Event { return w.events }

// Run drives the command loop until ctx is canceled or a Stop command is
// processed, then closes the output and event channels. It is meant to be
// run via an errgroup so its lifetime is coordinated with the goroutine
// that eventually stops feeding the command channel.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.output)
	defer close(w.events)

	for {
		var cmd Command
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd = <-w.cmds:
		}

		stop, err := w.handle(ctx, cmd)
		if stop || err != nil {
			return err
		}
	}
}

// handle processes one command. It reports stop=true when cmd (or a
// command drained mid-Continue) was a Stop.
func (w *Worker) handle(ctx context.Context, cmd Command) (stop bool, err error) {
	switch cmd.Kind {
	case CmdLoadImage:
		ev := ExecEvent{Kind: EventMaxInstructions, PC: w.core.GetPC()}
		if err := w.core.LoadImage(cmd.Addr, cmd.Image); err != nil {
			fault, _ := err.(*Fault)
			ev = ExecEvent{Kind: EventFault, PC: w.core.GetPC(), Fault: fault}
		}
		w.publish(cmd.ID, ev)
	case CmdContinue:
		return w.runContinue(ctx, cmd)
	case CmdStop:
		w.core.Stop()
		w.log.V(1).Info("worker stopping", "cmd", cmd.ID.String())
		w.publish(cmd.ID, ExecEvent{Kind: EventMaxInstructions, PC: w.core.GetPC()})
		return true, nil
	}
	return false, nil
}

// runContinue spends cmd's instruction budget in batches of batchSize,
// draining at most one pending command between batches. A drained command
// supersedes the in-flight Continue, which first yields the progress it
// made.
func (w *Worker) runContinue(ctx context.Context, cmd Command) (bool, error) {
	remaining := cmd.MaxInstr
	for remaining > 0 {
		batch := remaining
		if batch > batchSize {
			batch = batchSize
		}
		ev := w.core.ContinueFor(batch)
		if ev.Kind != EventMaxInstructions {
			w.publish(cmd.ID, ev)
			return false, nil
		}
		remaining -= batch

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case next := <-w.cmds:
			w.publish(cmd.ID, ExecEvent{Kind: EventMaxInstructions, PC: w.core.GetPC()})
			return w.handle(ctx, next)
		default:
		}
	}
	w.publish(cmd.ID, ExecEvent{Kind: EventMaxInstructions, PC: w.core.GetPC()})
	return false, nil
}

func (w *Worker) publish(id xid.ID, ev ExecEvent) {
	select {
	case w.events <- Event{CommandID: id, ExecEvent: ev}:
	default:
		w.log.V(1).Info("event channel full, dropping event", "cmd", id.String())
	}
}

// RunInGroup starts Run under an errgroup.Group so its exit is coordinated
// with sibling goroutines (e.g. a caller-owned output drainer) rather than
// leaked.
func RunInGroup(ctx context.Context, g *errgroup.Group, w *Worker) {
	g.Go(func() error {
		return w.Run(ctx)
	})
}
