package z80

// execIndexedCB implements the DD CB d op / FD CB d op forms. The
// displacement byte d is fetched (by the caller) before this final opcode
// byte -- the peculiar "displacement before opcode" ordering the decoder
// must preserve. The operand is always (IX+d)/(IY+d); the undocumented
// "copy result into register r too" variant applies whenever the low 3
// bits of the opcode name a register other than (HL)'s slot 6.
func (c *CPU) execIndexedCB(addr uint16, op uint8) (int, error) {
	v := c.mem.ReadByte(addr)
	r := op & 7

	var result uint8
	switch {
	case op < 0x40:
		group := (op >> 3) & 7
		result = c.rotateShift(int(group), v)
	case op < 0x80:
		b := (op >> 3) & 7
		c.bitTest(b, v)
		return 20, nil
	case op < 0xC0:
		b := (op >> 3) & 7
		result = v &^ (1 << b)
	default:
		b := (op >> 3) & 7
		result = v | (1 << b)
	}

	c.mem.WriteByte(addr, result)
	if r != 6 {
		c.plainRegs()[r].set(result)
	}
	return 23, nil
}
