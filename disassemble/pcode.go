package disassemble

import (
	"fmt"

	"github.com/hveit/duosim/memory"
)

// StepPCode disassembles one P-code instruction at a byte offset within a
// segment, returning its mnemonic text and the byte count to advance by.
// Only the opcodes common in practice are rendered symbolically; anything
// else falls back to a raw byte dump, mirroring the Z80 disassembler's
// unknown-opcode behavior.
func StepPCode(segB, ipc uint16, mem *memory.Fabric) (string, int) {
	op := mem.ReadByte(segB + ipc)
	switch {
	case op <= 0x1F:
		return fmt.Sprintf("SLDC %d", op), 1
	case op >= 0x20 && op <= 0x2F:
		return fmt.Sprintf("SLDL %d", op-0x20+1), 1
	case op >= 0x30 && op <= 0x3F:
		return fmt.Sprintf("SLDO %d", op-0x30+1), 1
	}
	switch op {
	case 0x81:
		return fmt.Sprintf("LDCI 0x%04x", mem.ReadWord(segB+ipc+1)), 3
	case 0x8a:
		return fmt.Sprintf("UJP %+d", int8(mem.ReadByte(segB+ipc+1))), 2
	case 0x8b:
		return fmt.Sprintf("UJPL 0x%04x", mem.ReadWord(segB+ipc+1)), 3
	case 0xa2:
		return "ADI", 1
	case 0xa3:
		return "SBI", 1
	case 0x8c:
		return "MPI", 1
	case 0x8d:
		return "DVI", 1
	case 0x90:
		return fmt.Sprintf("CPL %d", mem.ReadByte(segB+ipc+1)), 2
	case 0x91:
		return fmt.Sprintf("CPG %d", mem.ReadByte(segB+ipc+1)), 2
	case 0x94:
		return fmt.Sprintf("CXG seg=%d,proc=%d", mem.ReadByte(segB+ipc+1), mem.ReadByte(segB+ipc+2)), 3
	case 0x96:
		return "RPU", 1
	case 0x9c:
		return "NOP", 1
	case 0x9e:
		return "BPT", 1
	case 0xde:
		return "SIGNAL", 1
	case 0xdf:
		return "WAIT", 1
	case 0xc5:
		return "MOV", 1
	}
	return fmt.Sprintf("DB 0x%02x", op), 1
}
