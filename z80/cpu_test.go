package z80

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	"github.com/hveit/duosim/io"
	"github.com/hveit/duosim/memory"
)

func newTestCPU(t *testing.T, mode Mode) (*CPU, *memory.Fabric) {
	t.Helper()
	mem, err := memory.NewFabric(memory.FabricConfig{Banks: 1, Size: 0x10000})
	if err != nil {
		t.Fatalf("NewFabric: %v", err)
	}
	ports := io.NewTable()
	return New(mode, mem, ports, nil), mem
}

func load(mem *memory.Fabric, addr uint16, bytes ...uint8) {
	for i, b := range bytes {
		mem.WriteByte(addr+uint16(i), b)
	}
}

func TestResetAndHalt(t *testing.T) {
	c, mem := newTestCPU(t, ModeZ80)
	// LD A,0x5A; HALT
	load(mem, 0, 0x3E, 0x5A, 0x76)
	_, err := c.Step()
	require.NoError(t, err)
	require.Equal(t, uint8(0x5A), c.A, "state: %s", spew.Sdump(c))
	_, err = c.Step()
	require.NoError(t, err)
	if !c.Halted() {
		t.Fatalf("expected Halted() after HALT, state: %s", spew.Sdump(c))
	}
	pc := c.PC
	for i := 0; i < 3; i++ {
		_, err := c.Step()
		require.NoError(t, err)
	}
	require.Equal(t, pc, c.PC, "PC advanced past HALT, state: %s", spew.Sdump(c))
}

func TestDDCBDisplacementFetchedBeforeFinalOpcode(t *testing.T) {
	c, mem := newTestCPU(t, ModeZ80)
	c.IX = 0x2000
	mem.WriteByte(0x2002, 0x01)
	// DD CB 02 46 => BIT 0,(IX+2)
	load(mem, 0, 0xDD, 0xCB, 0x02, 0x46)
	if _, err := c.Step(); err != nil {
		t.Fatalf("DD CB: %v", err)
	}
	if c.F&0x40 != 0 { // Z must be clear: bit 0 of 0x01 is set
		t.Fatalf("F = 0x%02x, want Z clear (bit tested is set)", c.F)
	}
	if c.PC != 4 {
		t.Fatalf("PC = %d, want 4 (displacement consumed before final opcode)", c.PC)
	}
}

func TestDJNZBoundary(t *testing.T) {
	c, mem := newTestCPU(t, ModeZ80)
	c.B = 1
	// DJNZ +2 (to the NOP at offset 4), then NOP, NOP
	load(mem, 0, 0x10, 0x02, 0x00, 0x00, 0x00)
	if _, err := c.Step(); err != nil {
		t.Fatalf("DJNZ: %v", err)
	}
	if c.B != 0 {
		t.Fatalf("B = %d, want 0", c.B)
	}
	if c.PC != 2 {
		t.Fatalf("PC = %d, want 2 (branch not taken when B reaches 0)", c.PC)
	}
}

func TestDJNZTaken(t *testing.T) {
	c, mem := newTestCPU(t, ModeZ80)
	c.B = 2
	load(mem, 0, 0x10, 0x02)
	if _, err := c.Step(); err != nil {
		t.Fatalf("DJNZ: %v", err)
	}
	if c.B != 1 {
		t.Fatalf("B = %d, want 1", c.B)
	}
	if c.PC != 4 {
		t.Fatalf("PC = %d, want 4 (branch taken)", c.PC)
	}
}

func TestLDIRFullWrap(t *testing.T) {
	c, mem := newTestCPU(t, ModeZ80)
	c.SetHL(0x1000)
	c.SetDE(0x2000)
	c.SetBC(0) // wraps to 65536 iterations
	// DE runs 0x1000 ahead of HL, so the copy repeats the 0x1000 block
	// through memory and, once DE wraps, over address 0; the block starts
	// with the LDIR's own bytes so the running instruction stays intact.
	load(mem, 0x1000, 0xED, 0xB0)
	load(mem, 0, 0xED, 0xB0) // LDIR
	steps := 0
	for {
		n, err := c.Step()
		if err != nil {
			t.Fatalf("LDIR: %v", err)
		}
		steps++
		if n == 16 {
			break
		}
		if steps > 70000 {
			t.Fatal("LDIR did not terminate")
		}
	}
	if c.BC() != 0 {
		t.Fatalf("BC = 0x%04x, want 0", c.BC())
	}
	if c.PC != 2 {
		t.Fatalf("PC = %d, want 2 (loop exited)", c.PC)
	}
}

func TestDAAAfterBCDAdd(t *testing.T) {
	c, mem := newTestCPU(t, ModeZ80)
	c.A = 0x15
	mem.WriteByte(0, 0x06) // ADD A,0x27 then DAA
	load(mem, 0, 0xC6, 0x27, 0x27)
	if _, err := c.Step(); err != nil {
		t.Fatalf("ADD A,n: %v", err)
	}
	if c.A != 0x3C {
		t.Fatalf("A after ADD = 0x%02x, want 0x3C", c.A)
	}
	if _, err := c.Step(); err != nil {
		t.Fatalf("DAA: %v", err)
	}
	if c.A != 0x42 {
		t.Fatalf("A after DAA = 0x%02x, want 0x42 (BCD 15+27=42)", c.A)
	}
}

func TestMode8080NOPAdvancesPC(t *testing.T) {
	c, mem := newTestCPU(t, Mode8080)
	mem.WriteByte(0, 0x00) // NOP
	if _, err := c.Step(); err != nil {
		t.Fatalf("NOP: %v", err)
	}
	if c.PC != 1 {
		t.Fatalf("PC = %d, want 1", c.PC)
	}
}
