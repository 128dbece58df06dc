package irq

import "testing"

func TestSampleRequiresGlobalEnable(t *testing.T) {
	c := NewLevelController()
	c.Assert(3)
	if _, ok := c.Sample(false); ok {
		t.Fatal("Sample with enable=false should not commit a pending request")
	}
	if _, ok := c.Sample(true); !ok {
		t.Fatal("Sample with enable=true should commit the latched request")
	}
}

func TestSampleSelectsHighestPriority(t *testing.T) {
	c := NewLevelController()
	c.Assert(7)
	c.Assert(2)
	c.Assert(5)
	level, ok := c.Sample(true)
	if !ok || level != 2 {
		t.Fatalf("Sample() = (%d, %v), want (2, true)", level, ok)
	}
}

func TestAckClearsOnlyThatLevel(t *testing.T) {
	c := NewLevelController()
	c.Assert(2)
	c.Assert(5)
	c.Sample(true)
	c.Ack(2)
	level, ok := c.Sample(true)
	if !ok || level != 5 {
		t.Fatalf("after Ack(2), Sample() = (%d, %v), want (5, true)", level, ok)
	}
}

func TestLatchedBeforeDisableStillCommits(t *testing.T) {
	// Known quirk: a request that arrived during the preceding boundary is
	// already committed to pending even if this instruction now disables
	// interrupts. The caller samples with the enable state from the start
	// of the boundary, so this is exercised simply by calling Sample once
	// more with enabled=false after the first commit: the already-pending
	// bit must still be reported.
	c := NewLevelController()
	c.Assert(4)
	c.Sample(true)
	level, ok := c.Sample(false)
	if !ok || level != 4 {
		t.Fatalf("previously committed request lost after disable: Sample() = (%d, %v)", level, ok)
	}
}
