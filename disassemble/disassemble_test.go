package disassemble

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hveit/duosim/io"
	"github.com/hveit/duosim/memory"
)

func newTestBus(t *testing.T) *memory.Fabric {
	t.Helper()
	f, err := memory.NewFabric(memory.FabricConfig{Banks: 1})
	require.NoError(t, err)
	return f
}

func TestStepBasicOpcodes(t *testing.T) {
	bus := newTestBus(t)
	ports := io.NewTable()
	cases := []struct {
		bytes []byte
		want  string
		n     int
	}{
		{[]byte{0x00}, "NOP", 1},
		{[]byte{0x76}, "HALT", 1},
		{[]byte{0x3E, 0x7F}, "LD A,0x7f", 2},
		{[]byte{0x21, 0x34, 0x12}, "LD HL,0x1234", 3},
		{[]byte{0xC3, 0x00, 0x02}, "JP 0x0200", 3},
		{[]byte{0x80}, "ADD A,B", 1},
	}
	for _, tc := range cases {
		for i, b := range tc.bytes {
			bus.WriteByte(uint16(i), b)
		}
		text, n := Step(0, bus, ports)
		require.Equal(t, tc.want, text)
		require.Equal(t, tc.n, n)
	}
}

func TestStepCBAndEDPrefixes(t *testing.T) {
	bus := newTestBus(t)
	ports := io.NewTable()

	bus.WriteByte(0, 0xCB)
	bus.WriteByte(1, 0x00) // RLC B
	text, n := Step(0, bus, ports)
	require.Equal(t, "RLC B", text)
	require.Equal(t, 2, n)

	bus.WriteByte(0, 0xED)
	bus.WriteByte(1, 0xB0) // LDIR
	text, n = Step(0, bus, ports)
	require.Equal(t, "LDIR", text)
	require.Equal(t, 2, n)
}

func TestStepUnknownOpcodeFallsBackToByteDump(t *testing.T) {
	bus := newTestBus(t)
	ports := io.NewTable()
	bus.WriteByte(0, 0xED)
	bus.WriteByte(1, 0xFF) // not a defined ED-prefixed instruction
	text, n := Step(0, bus, ports)
	require.Equal(t, "DB 0xed,0xff", text)
	require.Equal(t, 2, n)
}

func TestStepPCodeShortForms(t *testing.T) {
	bus := newTestBus(t)
	bus.WriteByte(0, 0x05)  // SLDC 5
	bus.WriteByte(1, 0x21)  // SLDL 2
	bus.WriteByte(2, 0xa2)  // ADI

	text, n := StepPCode(0, 0, bus)
	require.Equal(t, "SLDC 5", text)
	require.Equal(t, 1, n)

	text, n = StepPCode(0, 1, bus)
	require.Equal(t, "SLDL 2", text)
	require.Equal(t, 1, n)

	text, n = StepPCode(0, 2, bus)
	require.Equal(t, "ADI", text)
	require.Equal(t, 1, n)
}
