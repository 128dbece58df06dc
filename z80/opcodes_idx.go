package z80

// execIndexed decodes a DD- or FD-prefixed opcode. ix points at c.IX or
// c.IY for the duration of this one instruction. Undocumented opcodes that
// don't reference H, L or (HL) behave exactly as their un-prefixed form
// (the index register substitution simply doesn't apply), so most of the
// work is reusing the main grid decoder against a substituted register
// table.
func (c *CPU) execIndexed(ix *uint16) (int, error) {
	op := c.fetch()

	if op == 0xCB {
		d := int8(c.fetch())
		addr := uint16(int32(*ix) + int32(d))
		subOp := c.fetch()
		return c.execIndexedCB(addr, subOp)
	}

	switch op {
	case 0x21: // LD IX,nn
		*ix = c.fetchWord()
		return 14, nil
	case 0x22: // LD (nn),IX
		c.mem.WriteWord(c.fetchWord(), *ix)
		return 20, nil
	case 0x2A: // LD IX,(nn)
		*ix = c.mem.ReadWord(c.fetchWord())
		return 20, nil
	case 0x23: // INC IX
		*ix++
		return 10, nil
	case 0x2B: // DEC IX
		*ix--
		return 10, nil
	case 0x09, 0x19, 0x29, 0x39: // ADD IX,rp (rp grid with slot 2 = IX itself)
		sel := int(op>>4) & 3
		var val uint16
		switch sel {
		case 0:
			val = c.BC()
		case 1:
			val = c.DE()
		case 2:
			val = *ix
		default:
			val = c.SP
		}
		c.addHL16(func() uint16 { return *ix }, func(v uint16) { *ix = v }, val)
		return 15, nil
	case 0xE1: // POP IX
		*ix = c.pop()
		return 14, nil
	case 0xE5: // PUSH IX
		c.push(*ix)
		return 15, nil
	case 0xE3: // EX (SP),IX
		v := c.mem.ReadWord(c.SP)
		c.mem.WriteWord(c.SP, *ix)
		*ix = v
		return 23, nil
	case 0xE9: // JP (IX)
		c.PC = *ix
		return 8, nil
	case 0xF9: // LD SP,IX
		c.SP = *ix
		return 10, nil
	case 0x34, 0x35, 0x36: // INC/DEC/LD (IX+d),n -- the only pure-memory forms
		addr := c.idxAddr(*ix)
		switch op {
		case 0x34:
			v := c.mem.ReadByte(addr)
			c.inc8(func() uint8 { return v }, func(nv uint8) { v = nv; c.mem.WriteByte(addr, nv) })
			return 23, nil
		case 0x35:
			v := c.mem.ReadByte(addr)
			c.dec8(func() uint8 { return v }, func(nv uint8) { v = nv; c.mem.WriteByte(addr, nv) })
			return 23, nil
		default:
			c.mem.WriteByte(addr, c.fetch())
			return 19, nil
		}
	}

	// LD r,r' / ALU A,r / INC r / DEC r / LD r,n grids, substituted through
	// the indexed register table. Only fetch the displacement when the
	// decoded instruction actually touches slot 6.
	var addr uint16
	needsAddr := false
	switch {
	case op&0xC0 == 0x40:
		needsAddr = ((op>>3)&7 == 6) || (op&7 == 6)
	case op&0xC0 == 0x80:
		needsAddr = op&7 == 6
	case op&0xC7 == 0x04, op&0xC7 == 0x05, op&0xC7 == 0x06:
		needsAddr = (op>>3)&7 == 6
	}
	if needsAddr {
		addr = c.idxAddr(*ix)
	}
	regs := c.indexedRegs(ix, addr)

	switch {
	case op&0xC0 == 0x40: // LD r,r'
		dst, src := (op>>3)&7, op&7
		if dst == 6 && src == 6 {
			c.halted = true // DD 76 behaves as plain HALT (no (IX) involved)
			return 8, nil
		}
		regs[dst].set(regs[src].get())
		if dst == 6 || src == 6 {
			return 19, nil
		}
		return 8, nil
	case op&0xC0 == 0x80: // ALU A,r
		src := op & 7
		c.aluOp(int((op>>3)&7), regs[src].get())
		if src == 6 {
			return 19, nil
		}
		return 8, nil
	case op&0xC7 == 0x04: // INC r
		r := (op >> 3) & 7
		c.inc8(regs[r].get, regs[r].set)
		return 8, nil
	case op&0xC7 == 0x05: // DEC r
		r := (op >> 3) & 7
		c.dec8(regs[r].get, regs[r].set)
		return 8, nil
	case op&0xC7 == 0x06: // LD r,n
		r := (op >> 3) & 7
		regs[r].set(c.fetch())
		return 11, nil
	}

	// Anything else (e.g. DD/FD immediately preceding another prefix, or an
	// opcode with no IX/IY-specific meaning) falls through to the
	// un-prefixed table, matching real hardware's "prefix has no effect"
	// behavior for opcodes it doesn't touch H/L/(HL) in.
	n, err := c.execute(op)
	return n + 4, err
}
