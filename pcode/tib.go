// Package pcode implements the PDQ-3 P-code interpreter: a byte-addressed
// code segment, a word-addressed expression stack, and a TIB/MSCW/SIB task
// graph that (per the teacher's memory.Bank-through-an-interface
// philosophy, applied here to a bus instead of a host struct graph) lives
// entirely in guest memory rather than a parallel host object graph.
package pcode

// Field offsets transcribed from original_source/PDQ-3/pdq3_defs.h. All are
// word offsets from a TIB/MSCW/SIB/semaphore base address unless noted.
const (
	// TIB (Task Information Block) word offsets.
	offWaitQ  = 0 // also OFF_QLINK: ready-queue link, or semaphore wait-queue link
	offPrior  = 1 // byte: task priority (low byte of word at offWaitQ+1 in the original; kept word-granular here)
	offSPLow  = 2
	offSPUpr  = 3
	offSP     = 4
	offMP     = 5
	offBP     = 6
	offIPC    = 7
	offSegB   = 8
	offHangP  = 9
	offIORslt = 10
	offSIBs   = 11
	tibWords  = 12

	// MSCW (Mark Stack Control Word) word offsets, relative to MP.
	offMSStat = 0
	offMSDynl = 1
	offMSIPC  = 2
	offMSSeg  = 3 // byte: static link segment number in low byte, flags in high byte
	mscwWords = 4

	// SIB (Segment Information Block) word offsets.
	offSegBase   = 0
	offSegLeng   = 1
	offSegRefs   = 2
	offSegAddr   = 3
	offSegUnit   = 4
	offPrevSP    = 5
	offSegName   = 6 // 4 words
	offSegLink   = 10
	offSegGlobal = 11
	offSegInit   = 12
	offSeg13     = 13
	offSegBack   = 14
	sibWords     = 15

	// Semaphore word offsets.
	offSemCount  = 0
	offSemWaitQ  = 1
	semWords     = 2

	// NIL is the end-of-list / no-current-task sentinel.
	NIL = 0xFC00

	mscwSize = 4 // MSCW_SZ
)

// word reads a little-endian word at a guest byte address.
func (e *Engine) word(addr uint16) uint16 { return e.bus.ReadWord(addr) }
func (e *Engine) setWord(addr uint16, v uint16) { e.bus.WriteWord(addr, v) }

func (e *Engine) tibField(tib uint16, off int) uint16 {
	return e.word(tib + uint16(off)*2)
}
func (e *Engine) setTIBField(tib uint16, off int, v uint16) {
	e.setWord(tib+uint16(off)*2, v)
}

// saveRegs copies the engine's live execution registers into the TIB named
// by tib (used on interrupt and on WAIT/task-switch).
func (e *Engine) saveRegs(tib uint16) {
	e.setTIBField(tib, offSP, e.SP)
	e.setTIBField(tib, offMP, e.MP)
	e.setTIBField(tib, offBP, e.BP)
	e.setTIBField(tib, offIPC, e.IPC)
	e.setTIBField(tib, offSegB, e.SEGB)
}

// restoreRegs loads the engine's live execution registers from the TIB
// named by tib (used on task switch-in).
func (e *Engine) restoreRegs(tib uint16) {
	e.SP = e.tibField(tib, offSP)
	e.MP = e.tibField(tib, offMP)
	e.BP = e.tibField(tib, offBP)
	e.IPC = e.tibField(tib, offIPC)
	e.SEGB = e.tibField(tib, offSegB)
}

// enqueueReady inserts tib into the ready queue in strictly descending
// priority order (spec.md §3 invariant), using offWaitQ as the link word of
// both the queue head (e.ReadyQ) and each queued TIB.
func (e *Engine) enqueueReady(tib uint16) {
	prio := e.tibField(tib, offPrior)
	if e.ReadyQ == NIL || e.tibField(e.ReadyQ, offPrior) < prio {
		e.setTIBField(tib, offWaitQ, e.ReadyQ)
		e.ReadyQ = tib
		return
	}
	prev := e.ReadyQ
	for {
		next := e.tibField(prev, offWaitQ)
		if next == NIL || e.tibField(next, offPrior) < prio {
			e.setTIBField(tib, offWaitQ, next)
			e.setTIBField(prev, offWaitQ, tib)
			return
		}
		prev = next
	}
}

// dequeueReady removes and returns the highest-priority ready TIB, or NIL.
func (e *Engine) dequeueReady() uint16 {
	if e.ReadyQ == NIL {
		return NIL
	}
	tib := e.ReadyQ
	e.ReadyQ = e.tibField(tib, offWaitQ)
	return tib
}

// enqueueWait inserts tib onto a semaphore's wait queue in priority order,
// mirroring enqueueReady but keyed off the semaphore's own head word.
func (e *Engine) enqueueWait(sem uint16, tib uint16) {
	prio := e.tibField(tib, offPrior)
	head := e.word(sem + offSemWaitQ*2)
	if head == NIL || e.tibField(head, offPrior) < prio {
		e.setTIBField(tib, offWaitQ, head)
		e.setWord(sem+offSemWaitQ*2, tib)
		return
	}
	prev := head
	for {
		next := e.tibField(prev, offWaitQ)
		if next == NIL || e.tibField(next, offPrior) < prio {
			e.setTIBField(tib, offWaitQ, next)
			e.setTIBField(prev, offWaitQ, tib)
			return
		}
		prev = next
	}
}

func (e *Engine) dequeueWait(sem uint16) uint16 {
	head := e.word(sem + offSemWaitQ*2)
	if head == NIL {
		return NIL
	}
	e.setWord(sem+offSemWaitQ*2, e.tibField(head, offWaitQ))
	return head
}
