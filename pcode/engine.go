package pcode

import (
	"log"

	"github.com/hveit/duosim/irq"
	"github.com/hveit/duosim/memory"
)

// SSR bits, per original_source/PDQ-3/pdq3_defs.h.
const (
	ssrBERR  = 0x01
	ssrTICK  = 0x02
	ssrINTVL = 0x04
	ssrPWRF  = 0x10
	ssrPRNT  = 0x20
	ssrINTEN = 0x40
	ssrINIT  = 0x80
)

// Fixed interrupt levels 0-7; levels 8-31 are QBUS-assignable.
const (
	IntBERR  = 0
	IntPWRF  = 1
	IntDMAFD = 2
	IntCONR  = 3
	IntCONT  = 4
	IntPRNT  = 5
	IntTICK  = 6
	IntINTVL = 7
)

// Engine is the PDQ-3 P-code interpreter. The TIB/MSCW/SIB graph lives in
// guest memory addressed by bus; Engine only owns the live execution
// registers of whichever TIB is currently running, mirroring how
// pia6532.Chip addresses its RAM through memory.Bank rather than a host
// object graph.
type Engine struct {
	SP, MP, BP, IPC, SEGB uint16
	SSR                   uint8

	CurrentTIB uint16
	ReadyQ     uint16

	VectorTable uint16 // base address of the 32-entry semaphore-pointer vector table

	HaltOnException bool

	bus *memory.Fabric
	irq *irq.LevelController

	trapping bool // guards against a trap entry that itself overflows re-raising forever
}

// NewEngine constructs a P-code engine bound to the shared memory fabric
// and the P-code side's 32-level interrupt controller.
func NewEngine(bus *memory.Fabric, ctl *irq.LevelController) *Engine {
	return &Engine{bus: bus, irq: ctl, CurrentTIB: NIL, ReadyQ: NIL}
}

func (e *Engine) fetchByte() uint8 {
	v := e.bus.ReadByte(e.SEGB + e.IPC)
	e.IPC++
	return v
}

func (e *Engine) fetchSByte() int8 { return int8(e.fetchByte()) }

func (e *Engine) fetchWord() uint16 {
	lo := e.fetchByte()
	hi := e.fetchByte()
	return uint16(hi)<<8 | uint16(lo)
}

// fetchB decodes the "B form": if the next byte's high bit is clear, it is
// the whole (7-bit) value; otherwise it and the following byte combine into
// a 15-bit value with the leading bit stripped, per spec.md §4.4's
// "short-vs-long B-form selection" rule.
func (e *Engine) fetchB() uint16 {
	b0 := e.fetchByte()
	if b0&0x80 == 0 {
		return uint16(b0)
	}
	b1 := e.fetchByte()
	return (uint16(b0&0x7f) << 8) | uint16(b1)
}

func (e *Engine) push(v uint16) error {
	if e.SP-2 < e.SPLow() {
		return e.raise(4)
	}
	e.SP -= 2
	e.bus.WriteWord(e.SP, v)
	return nil
}

func (e *Engine) pop() uint16 {
	v := e.bus.ReadWord(e.SP)
	e.SP += 2
	return v
}

// SPLow/SPUpr read the current task's stack bounds out of its TIB.
func (e *Engine) SPLow() uint16 {
	if e.CurrentTIB == NIL {
		return 0
	}
	return e.tibField(e.CurrentTIB, offSPLow)
}

func (e *Engine) SPUpr() uint16 {
	if e.CurrentTIB == NIL {
		return 0xFFFF
	}
	return e.tibField(e.CurrentTIB, offSPUpr)
}

// raise pushes the exception code (or, for stack overflow, writes it
// directly to *SP to avoid double-faulting) and transfers control to the
// OS trap handler (segment 2, procedure 2), per spec.md §4.4.
func (e *Engine) raise(code int) error {
	if e.HaltOnException {
		return &GuestException{Code: code, IPC: e.IPC}
	}
	if e.trapping {
		// The trap handler's own entry overflowed the same exhausted stack
		// that triggered this exception; there is no separate system stack
		// to fall back to in this model, so surface it as a Go error rather
		// than recursing into raise(4) forever.
		return &GuestException{Code: code, IPC: e.IPC}
	}
	if code == 4 {
		e.bus.WriteWord(e.SP, uint16(code))
	} else if err := e.push(uint16(code)); err != nil {
		e.bus.WriteWord(e.SP, uint16(code))
	}
	log.Printf("[pcode] exception %d at ipc=0x%04x, trapping to seg2/proc2", code, e.IPC)
	e.trapping = true
	defer func() { e.trapping = false }()
	return e.callSegProc(2, 2)
}

// callSegProc performs the cross-segment call mechanics CXG uses, without
// the reference-count bump (the OS trap handler segment is permanently
// resident), used both by CXG itself and by raise's trap dispatch.
func (e *Engine) callSegProc(seg, proc uint16) error {
	// A minimal resident segment table lives at a fixed guest address so
	// tests can exercise this without a full loader: segment table entries
	// are SIBs of sibWords words starting at address 0, indexed by segment
	// number.
	sibAddr := seg * sibWords * 2
	segBase := e.word(sibAddr + offSegBase*2)
	procTable := segBase // the procedure table sits at the foot of the segment, addressed by convention at its base
	return e.enterProc(procTable, proc, 0, uint16(seg), segBase)
}

// enterProc implements create_mscw: looks up the callee's procstart word in
// its procedure table, verifies stack headroom, and links a new MSCW.
func (e *Engine) enterProc(procTable uint16, procNo uint16, staticLink uint16, callerSeg uint16, callerSegB uint16) error {
	procstart := e.word(procTable - procNo*2)
	dataSize := e.word(callerSegB + procstart*2)
	if int(dataSize)+mscwSize > int(e.SP-e.SPLow()) {
		return e.raise(4)
	}
	newSP := e.SP - dataSize*2 - mscwSize*2
	e.setWord(newSP+offMSDynl*2, e.MP)
	e.setWord(newSP+offMSIPC*2, e.IPC)
	e.setWord(newSP+offMSStat*2, staticLink)
	e.setWord(newSP+offMSSeg*2, callerSeg)
	e.SP = newSP
	e.MP = newSP
	e.SEGB = callerSegB
	e.IPC = (procstart + 1) * 2
	return nil
}

// Step decodes and executes one opcode, after sampling for a pending
// interrupt at the instruction boundary.
func (e *Engine) Step() error {
	if e.checkInterrupt() {
		return nil
	}
	if e.CurrentTIB == NIL {
		return e.idle()
	}
	op := e.fetchByte()
	return e.execute(op)
}

// idle runs while the ready queue is empty and no task is current,
// consuming wall time but no guest cycles per spec.md §4.5.
func (e *Engine) idle() error {
	if e.ReadyQ != NIL {
		e.CurrentTIB = e.dequeueReady()
		e.restoreRegs(e.CurrentTIB)
	}
	return nil
}

// checkInterrupt implements §4.5's latch/pending/priority/SIGNAL sequence.
func (e *Engine) checkInterrupt() bool {
	if e.irq == nil {
		return false
	}
	enabled := e.SSR&ssrINTEN != 0
	level, ok := e.irq.Sample(enabled)
	if !ok {
		return false
	}
	e.irq.Ack(level)
	if e.CurrentTIB != NIL {
		e.saveRegs(e.CurrentTIB)
		e.enqueueReady(e.CurrentTIB)
	}
	e.CurrentTIB = NIL
	sema := e.vectorSlot(level)
	e.signal(sema)
	if e.CurrentTIB == NIL && e.ReadyQ != NIL {
		e.CurrentTIB = e.dequeueReady()
		e.restoreRegs(e.CurrentTIB)
	}
	return true
}

func (e *Engine) vectorSlot(level int) uint16 {
	return e.word(e.VectorTable + uint16(level)*2)
}

// signal implements SIGNAL(sema): increments the count if no one is
// waiting, otherwise dequeues the highest-priority waiter onto ready and
// (if it outranks whatever is current) switches to it immediately.
func (e *Engine) signal(sema uint16) {
	waiter := e.dequeueWait(sema)
	if waiter == NIL {
		e.setWord(sema+offSemCount*2, e.word(sema+offSemCount*2)+1)
		return
	}
	e.enqueueReady(waiter)
	if e.CurrentTIB == NIL {
		return
	}
	if e.tibField(waiter, offPrior) > e.tibField(e.CurrentTIB, offPrior) {
		e.saveRegs(e.CurrentTIB)
		e.enqueueReady(e.CurrentTIB)
		e.CurrentTIB = e.dequeueReady()
		e.restoreRegs(e.CurrentTIB)
	}
}

// wait implements WAIT(sema): decrements/blocks per the semaphore protocol.
func (e *Engine) wait(sema uint16) error {
	count := e.word(sema + offSemCount*2)
	if count > 0 {
		e.setWord(sema+offSemCount*2, count-1)
		return nil
	}
	e.saveRegs(e.CurrentTIB)
	e.enqueueWait(sema, e.CurrentTIB)
	e.CurrentTIB = NIL
	if e.ReadyQ != NIL {
		e.CurrentTIB = e.dequeueReady()
		e.restoreRegs(e.CurrentTIB)
	}
	return nil
}

// Run executes up to n instructions (fewer if the engine idles or a
// non-nil error occurs).
func (e *Engine) Run(n int) error {
	for i := 0; i < n; i++ {
		if err := e.Step(); err != nil {
			return err
		}
	}
	return nil
}
