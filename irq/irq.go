// Package irq defines the basic interfaces for working with an interrupt
// source shared by the 8080/Z80 core and the PDQ-3 P-code core. A receiver
// of interrupts (IRQ/NMI on the Z80 side, a QBUS-style level on the P-code
// side) implements Sender so that devices which raise interrupts (floppy,
// DMA, timer, UART) don't need to know who is listening.
// NOTE: Even though chips make a distinction between level and edge type interrupts
//       the interfaces here don't matter and assume implementors simply account for
//       this in clock cycle management.
package irq

import "math/bits"

// Sender defines the interface for an IRQ source.
type Sender interface {
	// Raised indicates whether the interrupt is currently held high.
	Raised() bool
}

// MaxLevels is the number of interrupt levels the PDQ-3's vector table
// supports (spec'd 0..31, level 0 highest priority).
const MaxLevels = 32

// LevelController models the PDQ-3 interrupt controller: a continuously
// latched request bitmask, sampled into a pending bitmask only at
// instruction boundaries and only while interrupts are globally enabled.
//
// Deliberately preserves the quirk from Design Notes: Sample must be called
// with the enable state observed at the *start* of the boundary, before the
// about-to-run instruction executes. An instruction that disables
// interrupts still lets a request already latched commit to pending for
// this boundary, because Sample ran before that instruction's side effects.
type LevelController struct {
	latch   uint32
	pending uint32
}

// NewLevelController returns a controller with no requests latched.
func NewLevelController() *LevelController {
	return &LevelController{}
}

// Assert latches a request on the given level. Latching is continuous:
// it is not undone by a later disable of the global enable bit.
func (c *LevelController) Assert(level int) {
	c.latch |= 1 << uint(level)
}

// Sample commits the latch into pending (only if enabled) and reports the
// highest-priority (lowest numeric level) currently pending request, if any.
// It does not clear anything; call Ack once the request is actually serviced.
func (c *LevelController) Sample(enabled bool) (level int, ok bool) {
	if enabled {
		c.pending |= c.latch
	}
	if c.pending == 0 {
		return 0, false
	}
	return bits.TrailingZeros32(c.pending), true
}

// Ack clears the latch and pending bit for level, acknowledging it.
func (c *LevelController) Ack(level int) {
	mask := ^(uint32(1) << uint(level))
	c.latch &= mask
	c.pending &= mask
}

// Pending returns the raw pending bitmask, for inspection/tests.
func (c *LevelController) Pending() uint32 { return c.pending }

// Latch returns the raw latch bitmask, for inspection/tests.
func (c *LevelController) Latch() uint32 { return c.latch }
