package floppy

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hveit/duosim/memory"
	"github.com/hveit/duosim/sched"
)

func newTestFabric(t *testing.T) *memory.Fabric {
	f, err := memory.NewFabric(memory.FabricConfig{Banks: 1})
	require.NoError(t, err)
	return f
}

func TestIMDRoundTrip(t *testing.T) {
	img := NewBlankImage("round trip test")
	require.NoError(t, img.WriteSector(5, 0, 3, bytes.Repeat([]byte{0x42}, 256)))

	var buf bytes.Buffer
	_, err := img.WriteTo(&buf)
	require.NoError(t, err)

	back, err := ReadImage(&buf)
	require.NoError(t, err)

	data, err := back.ReadSector(5, 0, 3)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0x42}, 256), data)

	blank, err := back.ReadSector(0, 0, 1)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{fillByte}, 128), blank)
}

func TestRestoreIdempotent(t *testing.T) {
	wheel := sched.NewWheel()
	ctl := NewController(wheel)
	ctl.Attach(0, NewBlankImage("drive 0"))
	ctl.WriteRegister(2, 0, selUnit0, true) // select unit 0 via sector-port write
	ctl.Drives[0].Track = 40

	ctl.WriteRegister(0, cmdRestore, selUnit0, true)
	wheel.Advance(3000)
	require.Equal(t, uint8(0), ctl.Track)
	require.True(t, ctl.Status&st1Track0 != 0)
	require.True(t, ctl.Status&st1Busy == 0)

	ctl.WriteRegister(0, cmdRestore, selUnit0, true)
	wheel.Advance(3000)
	require.Equal(t, uint8(0), ctl.Track)
}

func TestForceIntClearsBusyOnce(t *testing.T) {
	wheel := sched.NewWheel()
	ctl := NewController(wheel)
	ctl.Attach(0, NewBlankImage("drive 0"))
	ctl.WriteRegister(0, cmdSeek, selUnit0, true)
	require.True(t, ctl.Status&st1Busy != 0)

	ctl.WriteRegister(0, cmdForceInt, selUnit0, false)
	require.True(t, ctl.Status&st1Busy == 0)

	ctl.WriteRegister(0, cmdForceInt, selUnit0, false)
	require.True(t, ctl.Status&st1Busy == 0)
}

func TestSectorWriteReadThroughDMA(t *testing.T) {
	wheel := sched.NewWheel()
	ctl := NewController(wheel)
	bus := newTestFabric(t)
	ctl.DMA.Bind(bus)
	ctl.Attach(0, NewBlankImage("drive 0"))
	ctl.WriteRegister(2, 1, selUnit0, true) // select sector 1
	// Track register defaults to 0, and track 0 on a blank image is the
	// 128-byte FM-encoded system track.
	payload := bytes.Repeat([]byte{0x99}, 128)
	for i, b := range payload {
		bus.WriteByte(uint16(0x2000+i), b)
	}
	ctl.DMA.setAddr(0x2000)
	ctl.DMA.CntL, ctl.DMA.CntH = 0xFF, 0xFF // inverted count, large enough for one sector

	ctl.WriteRegister(0, cmdWriteSec, selUnit0, true)
	wheel.Advance(8000)
	require.True(t, ctl.Status&st2RecNotFnd == 0)

	ctl.DMA.setAddr(0x3000)
	ctl.DMA.CntL, ctl.DMA.CntH = 0xFF, 0xFF
	ctl.WriteRegister(0, cmdReadSec, selUnit0, true)
	wheel.Advance(8000)

	for i := 0; i < len(payload); i++ {
		require.Equal(t, payload[i], bus.ReadByte(uint16(0x3000+i)), "byte %d", i)
	}
}
