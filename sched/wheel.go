// Package sched implements the guest-cycle event wheel used by device
// service routines (floppy step/read/write delays, DMA completion,
// timers). Per the concurrency/resource model, device services are not
// separate OS threads: they are callbacks registered against a simulated
// event wheel keyed on guest cycles, and they all run on the same
// interpreter thread that calls Advance.
package sched

import "container/heap"

// Func is a scheduled callback. It receives no arguments; closures over
// device state carry whatever context is needed, matching how the floppy
// controller schedules its own service routine per command.
type Func func()

type event struct {
	due      int64
	seq      int64
	priority int
	fn       Func
}

// eventHeap orders by due time, then by priority (lower fires first at the
// same due time), then by insertion order (seq) so same-priority,
// same-deadline events fire FIFO, matching the concurrency model's
// "events due at or before the current virtual time fire in FIFO order
// within the same priority" rule.
type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)        { *h = append(*h, x.(*event)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Wheel is a min-heap of pending events keyed on guest virtual cycle time.
type Wheel struct {
	now   int64
	seq   int64
	heap  eventHeap
}

// NewWheel returns an empty wheel with virtual time at 0.
func NewWheel() *Wheel {
	w := &Wheel{}
	heap.Init(&w.heap)
	return w
}

// Now returns the wheel's current virtual cycle time.
func (w *Wheel) Now() int64 { return w.now }

// Schedule arranges for fn to run after delay guest cycles, at the given
// priority (lower runs first among events due simultaneously).
func (w *Wheel) Schedule(delay int64, priority int, fn Func) {
	if delay < 0 {
		delay = 0
	}
	w.seq++
	heap.Push(&w.heap, &event{due: w.now + delay, seq: w.seq, priority: priority, fn: fn})
}

// Advance moves virtual time forward by cycles and fires every event now
// due, in FIFO order within a priority tier. A callback that schedules a
// new event (e.g. a multi-sector floppy transfer rescheduling itself) is
// eligible to fire again within the same Advance call if its new due time
// has already been passed.
func (w *Wheel) Advance(cycles int64) {
	target := w.now + cycles
	for w.heap.Len() > 0 && w.heap[0].due <= target {
		e := heap.Pop(&w.heap).(*event)
		if e.due > w.now {
			w.now = e.due
		}
		e.fn()
	}
	w.now = target
}

// Pending reports how many events are still queued.
func (w *Wheel) Pending() int { return w.heap.Len() }
