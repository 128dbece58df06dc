package z80

// reg8 is a typed read/write closure pair over an 8-bit operand location:
// a plain register, or (HL)/(IX+d)/(IY+d) routed through memory. Building
// the opcode grids (LD r,r', ALU A,r, INC/DEC r, CB rotate/shift/BIT/RES/SET)
// against a table of these lets one dispatcher serve the main, DD- and
// FD-prefixed forms without duplicating the grid logic three times.
type reg8 struct {
	get func() uint8
	set func(uint8)
}

// plainRegs returns the {B,C,D,E,H,L,(HL),A} operand table addressed by the
// low 3 bits of an opcode in the un-prefixed and CB-prefixed instruction
// sets.
func (c *CPU) plainRegs() [8]reg8 {
	return [8]reg8{
		{func() uint8 { return c.B }, func(v uint8) { c.B = v }},
		{func() uint8 { return c.C }, func(v uint8) { c.C = v }},
		{func() uint8 { return c.D }, func(v uint8) { c.D = v }},
		{func() uint8 { return c.E }, func(v uint8) { c.E = v }},
		{func() uint8 { return c.H }, func(v uint8) { c.H = v }},
		{func() uint8 { return c.L }, func(v uint8) { c.L = v }},
		{func() uint8 { return c.mem.ReadByte(c.HL()) }, func(v uint8) { c.mem.WriteByte(c.HL(), v) }},
		{func() uint8 { return c.A }, func(v uint8) { c.A = v }},
	}
}

// indexedRegs returns the operand table for a DD- or FD-prefixed
// instruction: H and L are replaced by IXH/IXL or IYH/IYL, and slot 6
// (formerly (HL)) becomes (IX+d)/(IY+d). addr must already hold the
// displaced address (via idxAddr, fetched at most once per instruction by
// the caller) when the decoded instruction actually touches slot 6;
// instructions that never reference slot 6 may pass 0.
func (c *CPU) indexedRegs(ix *uint16, addr uint16) [8]reg8 {
	hi := func() uint8 { return uint8(*ix >> 8) }
	setHi := func(v uint8) { *ix = uint16(v)<<8 | (*ix & 0xFF) }
	lo := func() uint8 { return uint8(*ix) }
	setLo := func(v uint8) { *ix = (*ix &^ 0xFF) | uint16(v) }
	return [8]reg8{
		{func() uint8 { return c.B }, func(v uint8) { c.B = v }},
		{func() uint8 { return c.C }, func(v uint8) { c.C = v }},
		{func() uint8 { return c.D }, func(v uint8) { c.D = v }},
		{func() uint8 { return c.E }, func(v uint8) { c.E = v }},
		{hi, setHi},
		{lo, setLo},
		{func() uint8 { return c.mem.ReadByte(addr) }, func(v uint8) { c.mem.WriteByte(addr, v) }},
		{func() uint8 { return c.A }, func(v uint8) { c.A = v }},
	}
}

// idxAddr fetches the displacement byte following a DD/FD opcode and
// returns base+d sign-extended. Call at most once per instruction.
func (c *CPU) idxAddr(base uint16) uint16 {
	d := int8(c.fetch())
	return uint16(int32(base) + int32(d))
}
