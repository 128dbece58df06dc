package floppy

// PortAdapter exposes a Controller as an io.PortHandler, implementing the
// io.Table's In/Out contract over the 16-port FDC+DMA page by translating
// the absolute port number back to a 0-15 offset.
type PortAdapter struct {
	Base uint8
	Ctl  *Controller
}

func (p PortAdapter) In(port uint8) uint8 {
	return p.Ctl.ReadPage(int(port - p.Base))
}

func (p PortAdapter) Out(port uint8, val uint8) {
	off := int(port - p.Base)
	// The command/track/sector/data registers (offsets 0-7) accept a
	// 16-bit port write whose high byte is the drive-select byte on real
	// hardware; callers wanting that behavior should use WritePage
	// directly. A plain 8-bit io.Table Out leaves the drive select
	// untouched.
	p.Ctl.WritePage(off, val, 0, false)
}
