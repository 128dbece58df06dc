package pcode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hveit/duosim/irq"
	"github.com/hveit/duosim/memory"
)

func newTestEngine(t *testing.T) (*Engine, *memory.Fabric) {
	t.Helper()
	bus, err := memory.NewFabric(memory.FabricConfig{Banks: 1, Size: 0x10000})
	require.NoError(t, err)
	ctl := irq.NewLevelController()
	e := NewEngine(bus, ctl)
	return e, bus
}

func TestSLDCThenADI(t *testing.T) {
	e, bus := newTestEngine(t)
	e.CurrentTIB = 0x1000
	e.setTIBField(0x1000, offSPLow, 0x0100)
	e.setTIBField(0x1000, offSPUpr, 0x0200)
	e.SP = 0x0200
	e.SEGB = 0x0000

	// SLDC 5; SLDC 3; ADI
	code := []byte{opSLDCLo + 5, opSLDCLo + 3, opADI}
	for i, b := range code {
		bus.WriteByte(uint16(i), b)
	}
	require.NoError(t, e.execute(e.fetchByte()))
	require.NoError(t, e.execute(e.fetchByte()))
	require.NoError(t, e.execute(e.fetchByte()))
	require.Equal(t, uint16(8), e.pop())
}

func TestStackOverflowRaisesException(t *testing.T) {
	e, _ := newTestEngine(t)
	e.CurrentTIB = 0x1000
	e.setTIBField(0x1000, offSPLow, 0x0200)
	e.setTIBField(0x1000, offSPUpr, 0x0200)
	e.SP = 0x0200 // zero headroom: any push overflows

	err := e.push(0x1234)
	require.Error(t, err)
	var guestErr *GuestException
	e.HaltOnException = true
	err = e.push(0x1234)
	require.ErrorAs(t, err, &guestErr)
	require.Equal(t, 4, guestErr.Code)
}

func TestReadyQueuePriorityOrdering(t *testing.T) {
	e, _ := newTestEngine(t)
	e.setTIBField(0x100, offPrior, 5)
	e.setTIBField(0x200, offPrior, 9)
	e.setTIBField(0x300, offPrior, 7)

	e.enqueueReady(0x100)
	e.enqueueReady(0x200)
	e.enqueueReady(0x300)

	require.Equal(t, uint16(0x200), e.dequeueReady())
	require.Equal(t, uint16(0x300), e.dequeueReady())
	require.Equal(t, uint16(0x100), e.dequeueReady())
	require.Equal(t, uint16(NIL), e.dequeueReady())
}

func TestWaitBlocksThenSignalWakes(t *testing.T) {
	e, _ := newTestEngine(t)
	const sema = 0x0900
	const taskA uint16 = 0x1000
	const taskB uint16 = 0x1100

	e.setTIBField(sema, offSemCount, 0)
	e.setWord(sema+offSemWaitQ*2, NIL)

	e.setTIBField(taskA, offPrior, 3)
	e.setTIBField(taskA, offSPLow, 0x2000)
	e.setTIBField(taskA, offSPUpr, 0x3000)
	e.CurrentTIB = taskA
	e.SP = 0x3000

	require.NoError(t, e.wait(sema))
	require.Equal(t, uint16(NIL), e.CurrentTIB)

	e.setTIBField(taskB, offPrior, 5)
	e.setTIBField(taskB, offSPLow, 0x4000)
	e.setTIBField(taskB, offSPUpr, 0x5000)
	e.CurrentTIB = taskB
	e.SP = 0x5000

	e.signal(sema)
	require.Equal(t, taskB, e.CurrentTIB, "lower-priority waiter should not preempt")
	require.Equal(t, taskA, e.ReadyQ, "woken waiter should now be ready")
}

func TestFetchBShortAndLongForms(t *testing.T) {
	e, bus := newTestEngine(t)
	bus.WriteByte(0, 0x40)       // short form: high bit clear
	bus.WriteByte(1, 0x80|0x01) // long form lead byte
	bus.WriteByte(2, 0x23)

	require.Equal(t, uint16(0x40), e.fetchB())
	require.Equal(t, uint16(0x0123), e.fetchB())
}
