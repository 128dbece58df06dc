package z80

import "github.com/hveit/duosim/flags"

// execED decodes an ED-prefixed opcode. Opcodes ED exposes outside the
// documented 0x40-0x7F block-and-special ranges have no defined effect and
// are treated as two-byte NOPs in both modes.
func (c *CPU) execED(op uint8) (int, error) {
	switch {
	case op >= 0x40 && op <= 0x7F:
		return c.execED40(op)
	case op == 0xA0:
		c.ldi()
		return 16, nil
	case op == 0xA8:
		c.ldd()
		return 16, nil
	case op == 0xA1:
		c.cpi()
		return 16, nil
	case op == 0xA9:
		c.cpd()
		return 16, nil
	case op == 0xA2:
		c.ini()
		return 16, nil
	case op == 0xAA:
		c.ind()
		return 16, nil
	case op == 0xA3:
		c.outi()
		return 16, nil
	case op == 0xAB:
		c.outd()
		return 16, nil
	case op == 0xB0:
		return c.ldir(), nil
	case op == 0xB8:
		return c.lddr(), nil
	case op == 0xB1:
		return c.cpir(), nil
	case op == 0xB9:
		return c.cpdr(), nil
	case op == 0xB2:
		return c.inir(), nil
	case op == 0xBA:
		return c.indr(), nil
	case op == 0xB3:
		return c.otir(), nil
	case op == 0xBB:
		return c.otdr(), nil
	default:
		return 8, nil
	}
}

func (c *CPU) execED40(op uint8) (int, error) {
	r := (op >> 3) & 7
	rp := int(op>>4) & 3
	isSecond := op&0x08 != 0

	switch op & 7 {
	case 0: // IN r,(C)
		v := c.ports.In(c.C)
		c.F = (c.F & flags.C) | uint8(flags.XorOr[v])
		if r != 6 {
			c.plainRegs()[r].set(v)
		}
		return 12, nil
	case 1: // OUT (C),r
		var v uint8
		if r == 6 {
			v = 0
		} else {
			v = c.plainRegs()[r].get()
		}
		c.ports.Out(c.C, v)
		return 12, nil
	case 2: // SBC/ADC HL,rp
		c.adcSbcHL16(c.rpGet(rp), !isSecond)
		return 15, nil
	case 3: // LD (nn),rp / LD rp,(nn)
		addr := c.fetchWord()
		if isSecond {
			c.rpSet(rp, c.mem.ReadWord(addr))
		} else {
			c.mem.WriteWord(addr, c.rpGet(rp))
		}
		return 20, nil
	case 4: // NEG (aliased at all 8 positions)
		c.neg8()
		return 8, nil
	case 5: // RETN / RETI (0x4D)
		c.IFF1 = c.IFF2
		c.PC = c.pop()
		return 14, nil
	case 6: // IM 0/1/2
		switch {
		case rp == 1 || rp == 3:
			if isSecond {
				c.IM = 2
			} else {
				c.IM = 1
			}
		default:
			c.IM = 0
		}
		return 8, nil
	case 7:
		switch rp {
		case 0:
			if !isSecond {
				c.I = c.A // LD I,A
			} else {
				c.R = c.A // LD R,A
			}
		case 1:
			if !isSecond {
				c.ldAI() // LD A,I
			} else {
				c.ldAR() // LD A,R
			}
		case 2:
			if !isSecond {
				c.rrd()
			} else {
				c.rld()
			}
		default:
			// undocumented NOP forms 0x77/0x7F
		}
		return 9, nil
	}
	return 8, nil
}

// ldAI/ldAR implement LD A,I / LD A,R: P/V takes IFF2 (the saved
// interrupt-enable flip-flop), not parity, a well-known Z80 peculiarity.
func (c *CPU) ldAI() {
	c.A = c.I
	c.commitIorR()
}

func (c *CPU) ldAR() {
	c.A = c.R
	c.commitIorR()
}

func (c *CPU) commitIorR() {
	f := c.A & 0xa8
	if c.A == 0 {
		f |= flags.Z
	}
	if c.IFF2 {
		f |= flags.PV
	}
	c.F = f | (c.F & flags.C)
}

// rrd/rld implement the 12-bit rotate through (HL) and the low nibble of A.
func (c *CPU) rrd() {
	hl := c.mem.ReadByte(c.HL())
	newA := (c.A & 0xf0) | (hl & 0x0f)
	newHL := (c.A << 4) | (hl >> 4)
	c.A = newA
	c.mem.WriteByte(c.HL(), newHL)
	c.F = uint8(flags.RRDRLD[c.A]) | (c.F & flags.C)
}

func (c *CPU) rld() {
	hl := c.mem.ReadByte(c.HL())
	newA := (c.A & 0xf0) | (hl >> 4)
	newHL := (hl << 4) | (c.A & 0x0f)
	c.A = newA
	c.mem.WriteByte(c.HL(), newHL)
	c.F = uint8(flags.RRDRLD[c.A]) | (c.F & flags.C)
}

// --- block instructions ---

func (c *CPU) ldi() {
	v := c.mem.ReadByte(c.HL())
	c.mem.WriteByte(c.DE(), v)
	c.SetHL(c.HL() + 1)
	c.SetDE(c.DE() + 1)
	c.SetBC(c.BC() - 1)
	c.commitBlockMoveFlags(v)
}

func (c *CPU) ldd() {
	v := c.mem.ReadByte(c.HL())
	c.mem.WriteByte(c.DE(), v)
	c.SetHL(c.HL() - 1)
	c.SetDE(c.DE() - 1)
	c.SetBC(c.BC() - 1)
	c.commitBlockMoveFlags(v)
}

func (c *CPU) commitBlockMoveFlags(moved uint8) {
	n := moved + c.A
	f := c.F & (flags.S | flags.Z | flags.C)
	f |= n & flags.F3
	if n&0x02 != 0 {
		f |= flags.F5
	}
	if c.BC() != 0 {
		f |= flags.PV
	}
	c.F = f
}

func (c *CPU) ldir() int {
	c.ldi()
	if c.BC() != 0 {
		c.PC -= 2
		return 21
	}
	return 16
}

func (c *CPU) lddr() int {
	c.ldd()
	if c.BC() != 0 {
		c.PC -= 2
		return 21
	}
	return 16
}

func (c *CPU) cpi() {
	v := c.mem.ReadByte(c.HL())
	c.SetHL(c.HL() + 1)
	c.cpBlockStep(v)
}

func (c *CPU) cpd() {
	v := c.mem.ReadByte(c.HL())
	c.SetHL(c.HL() - 1)
	c.cpBlockStep(v)
}

func (c *CPU) cpBlockStep(val uint8) {
	acu := int(c.A)
	sum := acu - int(val)
	halfBorrow := (acu & 0xf) < (int(val) & 0xf)
	c.SetBC(c.BC() - 1)
	f := flags.CP[sum&0xff] | flags.N | (c.F & flags.C)
	if halfBorrow {
		f |= flags.H
		sum--
	}
	if c.BC() != 0 {
		f |= flags.PV
	}
	f |= uint8(sum) & flags.F3
	if sum&0x02 != 0 {
		f |= flags.F5
	}
	c.F = f
}

func (c *CPU) cpir() int {
	c.cpi()
	if c.BC() != 0 && c.F&flags.Z == 0 {
		c.PC -= 2
		return 21
	}
	return 16
}

func (c *CPU) cpdr() int {
	c.cpd()
	if c.BC() != 0 && c.F&flags.Z == 0 {
		c.PC -= 2
		return 21
	}
	return 16
}

func (c *CPU) ini() {
	v := c.ports.In(c.C)
	c.mem.WriteByte(c.HL(), v)
	c.SetHL(c.HL() + 1)
	c.B--
	c.blockIOFlags()
}

func (c *CPU) ind() {
	v := c.ports.In(c.C)
	c.mem.WriteByte(c.HL(), v)
	c.SetHL(c.HL() - 1)
	c.B--
	c.blockIOFlags()
}

func (c *CPU) outi() {
	v := c.mem.ReadByte(c.HL())
	c.SetHL(c.HL() + 1)
	c.B--
	c.ports.Out(c.C, v)
	c.blockIOFlags()
}

func (c *CPU) outd() {
	v := c.mem.ReadByte(c.HL())
	c.SetHL(c.HL() - 1)
	c.B--
	c.ports.Out(c.C, v)
	c.blockIOFlags()
}

func (c *CPU) blockIOFlags() {
	f := uint8(flags.N)
	if c.B == 0 {
		f |= flags.Z
	}
	f |= c.B & 0x80
	c.F = (c.F & flags.C) | f
}

func (c *CPU) inir() int {
	c.ini()
	if c.B != 0 {
		c.PC -= 2
		return 21
	}
	return 16
}

func (c *CPU) indr() int {
	c.ind()
	if c.B != 0 {
		c.PC -= 2
		return 21
	}
	return 16
}

func (c *CPU) otir() int {
	c.outi()
	if c.B != 0 {
		c.PC -= 2
		return 21
	}
	return 16
}

func (c *CPU) otdr() int {
	c.outd()
	if c.B != 0 {
		c.PC -= 2
		return 21
	}
	return 16
}
