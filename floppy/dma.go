package floppy

import "github.com/hveit/duosim/memory"

// DMA control register bits, per pdq3_fdc.c's DMA_CTRL_*.
const (
	dmaCtrlAECE = 0x40
	dmaCtrlHBUS = 0x20
	dmaCtrlIOM  = 0x10
	dmaCtrlTCIE = 0x08
	dmaCtrlTOIE = 0x04
	dmaCtrlDIE  = 0x02
	dmaCtrlRUN  = 0x01
)

// DMA status register bits, per pdq3_fdc.c's DMA_ST_*.
const (
	dmaStBusy = 0x80
	dmaStAECE = dmaCtrlAECE
	dmaStHBUS = dmaCtrlHBUS
	dmaStIOM  = dmaCtrlIOM
	dmaStTCZI = 0x08
	dmaStTOI  = 0x04
	dmaStDInt = 0x02
	dmaStBOW  = 0x01
)

// DMA implements the FDC's companion 18-bit-address DMA engine: a count
// register that counts down from its loaded (inverted) value to zero and
// an 18-bit address assembled from three byte registers, per pdq3_fdc.c's
// fdc_write cases 8-0xf and its _reg_dma_cnt/_reg_dma_addr derivation.
type DMA struct {
	Ctrl   uint8
	Status uint8
	CntH   uint8
	CntL   uint8
	AddrE  uint8
	AddrH  uint8
	AddrL  uint8
	ID     uint8

	ctl *Controller
	bus *memory.Fabric
}

func newDMA(ctl *Controller) *DMA { return &DMA{ctl: ctl} }

// Bind attaches the memory fabric the DMA engine transfers against. Separate
// from construction because the fabric and controller are normally wired
// together by the owning cmd/ front-end after both exist.
func (d *DMA) Bind(bus *memory.Fabric) { d.bus = bus }

func (d *DMA) count() uint16 { return uint16(d.CntH)<<8 | uint16(d.CntL) }

func (d *DMA) addr() uint32 {
	return uint32(d.AddrE&0x03)<<16 | uint32(d.AddrH)<<8 | uint32(d.AddrL)
}

func (d *DMA) setAddr(a uint32) {
	d.AddrL = uint8(a)
	d.AddrH = uint8(a >> 8)
	d.AddrE = uint8(a>>16) & 0x03
}

// ReadRegister implements the DMA half of fdc_read's ioaddr&15 switch
// (offsets 8-0xf).
func (d *DMA) ReadRegister(off int) uint8 {
	switch off & 15 {
	case 8:
		return 0
	case 9:
		return d.Status
	case 0x0a:
		return d.CntL
	case 0x0b:
		return d.CntH
	case 0x0c:
		return d.AddrL
	case 0x0d:
		return d.AddrH
	case 0x0e:
		return d.AddrE
	default:
		return d.ID
	}
}

// WriteRegister implements fdc_write's cases 8-0xf.
func (d *DMA) WriteRegister(off int, v uint8) {
	switch off & 15 {
	case 8:
		d.doCommand(v)
	case 9:
		if d.Status&dmaStBusy != 0 {
			return // writes while BUSY are ignored, matching the original's warning-and-discard
		}
		d.Status = v & 0x8f
	case 0x0a:
		d.CntL = v
	case 0x0b:
		d.CntH = v
	case 0x0c:
		d.AddrL = v
	case 0x0d:
		d.AddrH = v
	case 0x0e:
		d.AddrE = v & 0x03
	case 0x0f:
		d.ID = v
	}
	if d.count() != 0 {
		d.Status &^= dmaStTCZI
	}
}

func (d *DMA) doCommand(v uint8) {
	d.Ctrl = v
	if v&dmaCtrlRUN != 0 {
		d.Status |= dmaStBusy
	} else {
		d.Status &^= dmaStBusy
	}
}

// transferIn moves src into guest memory at the current DMA address,
// advancing the address and counting down: a loaded count of N moves at
// most N+1 bytes, and the transfer stops with TCZI set once the count has
// reached zero (the count register is left at zero).
func (d *DMA) transferIn(src []byte) {
	addr := d.addr()
	cnt := d.count()
	for i := 0; i < len(src); i++ {
		if d.bus != nil {
			d.bus.WriteByte(uint16(addr), src[i])
		}
		addr++
		if cnt == 0 {
			d.Status |= dmaStTCZI
			break
		}
		cnt--
	}
	d.setAddr(addr)
	d.CntL, d.CntH = uint8(cnt), uint8(cnt>>8)
	d.Status &^= dmaStBusy
}

// transferOut reads n bytes from guest memory at the current DMA address,
// the write-sector counterpart of transferIn.
func (d *DMA) transferOut(n int) []byte {
	out := make([]byte, n)
	addr := d.addr()
	cnt := d.count()
	for i := 0; i < n; i++ {
		if d.bus != nil {
			out[i] = d.bus.ReadByte(uint16(addr))
		}
		addr++
		if cnt == 0 {
			d.Status |= dmaStTCZI
			break
		}
		cnt--
	}
	d.setAddr(addr)
	d.CntL, d.CntH = uint8(cnt), uint8(cnt>>8)
	d.Status &^= dmaStBusy
	return out
}
