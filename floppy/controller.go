// Package floppy implements the WD179x-family floppy disk controller and
// its DMA engine, register-compatible with the PDQ-3's FDC+DMA page, plus
// the ImageDisk (IMD) file format used to store disk contents.
//
// Grounded on original_source/PDQ-3/pdq3_fdc.c's fdc_read/fdc_write register
// switch and fdc_docmd command decode, and on
// original_source/AltairZ80/altairz80_dsk.c for the IMD container layout.
package floppy

import (
	"log"

	"github.com/hveit/duosim/sched"
)

// Command opcodes, per pdq3_fdc.c's FDC_* defines.
const (
	cmdRestore   = 0x00
	cmdSeek      = 0x10
	cmdStep      = 0x20
	cmdStepU     = 0x30
	cmdStepIn    = 0x40
	cmdStepInU   = 0x50
	cmdStepOut   = 0x60
	cmdStepOutU  = 0x70
	cmdReadSec   = 0x80
	cmdReadSecM  = 0x90
	cmdWriteSec  = 0xa0
	cmdWriteSecM = 0xb0
	cmdReadAddr  = 0xc4
	cmdForceInt  = 0xd0
	cmdReadTrk   = 0xe4
	cmdWriteTrk  = 0xf4
	cmdIdle      = 0xff

	cmdMask = 0xf0
)

// Status register 1 bits (RESTORE/SEEK/STEP family).
const (
	st1NotReady  = 0x80
	st1WrtProt   = 0x40
	st1HeadLoad  = 0x20
	st1SeekError = 0x10
	st1CRCError  = 0x08
	st1Track0    = 0x04
	st1IdxPulse  = 0x02
	st1Busy      = 0x01
)

// Status register 2 bits (type II/III commands).
const (
	st2NotReady  = st1NotReady
	st2WrtProt   = st1WrtProt
	st2TypeWFlt  = 0x20
	st2RecNotFnd = 0x10
	st2CRCError  = st1CRCError
	st2LostData  = 0x04
	st2DRQ       = 0x02
	st2Busy      = st1Busy
)

// Drive-select byte bits, written alongside a command to the high half of
// a 16-bit I/O port access.
const (
	selSide  = 0x80
	selSDen  = 0x40
	selUnit3 = 0x08
	selUnit2 = 0x04
	selUnit1 = 0x02
	selUnit0 = 0x01
)

// Status byte the simulator used for WRITE_TRACK: the original never
// implements track formatting (spec.md §9's open question on this), so it
// completes immediately with this implementation-defined status.
const StatusWriteTrackUnsupported = 0x10 // st1SeekError, distinguishing the stub from a real completion

const (
	sectorBufSize  = 1024
	numDrives      = 4
	tracksPerDrive = 77
	sectorsPerTrk  = 26
)

// Drive holds one logical unit's head-position state and backing image.
type Drive struct {
	Image    *Image
	Track    uint8
	Head     uint8
	StepDir  uint8 // 0 = in (toward center), 1 = out
	WriteLck bool
}

// Controller is the WD179x-compatible register file plus its four drives
// and shared sector buffer, scheduled against a guest-cycle event wheel
// rather than real wall time.
type Controller struct {
	Cmd    uint8
	Status uint8
	Track  uint8
	Sector uint8
	Data   uint8
	Sel    uint8

	Drives [numDrives]Drive
	Buf    [sectorBufSize]byte
	bufLen int

	selected int // index into Drives, -1 = none

	DMA *DMA

	wheel   *sched.Wheel
	irqLine bool

	forceIntPending bool
}

// NewController constructs an idle FDC bound to the given event wheel,
// used to schedule command-completion service routines at a simulated
// delay instead of real time.
func NewController(wheel *sched.Wheel) *Controller {
	c := &Controller{selected: -1, wheel: wheel}
	c.DMA = newDMA(c)
	for i := range c.Drives {
		c.Drives[i] = Drive{}
	}
	return c
}

// Attach binds a drive index to a parsed IMD image.
func (c *Controller) Attach(unit int, img *Image) {
	c.Drives[unit].Image = img
}

func (c *Controller) selectUnit() {
	switch {
	case c.Sel&selUnit0 != 0:
		c.selected = 0
	case c.Sel&selUnit1 != 0:
		c.selected = 1
	case c.Sel&selUnit2 != 0:
		c.selected = 2
	case c.Sel&selUnit3 != 0:
		c.selected = 3
	default:
		c.selected = -1
	}
}

func (c *Controller) drive() *Drive {
	if c.selected < 0 {
		return nil
	}
	return &c.Drives[c.selected]
}

// ReadPage implements the combined 16-byte FDC+DMA register page (pdq3_fdc.c's
// fdc_read, ioaddr&15): offsets 0-7 route to the controller, 8-15 to the DMA
// engine.
func (c *Controller) ReadPage(off int) uint8 {
	if off&15 >= 8 {
		return c.DMA.ReadRegister(off)
	}
	return c.ReadRegister(off)
}

// WritePage is ReadPage's write counterpart, matching fdc_write's
// cases 0-0xf. A drive-select byte (sel, when selPresent) is honored on any
// of the controller offsets 0-7 and ignored on the DMA offsets 8-15.
func (c *Controller) WritePage(off int, v uint8, sel uint8, selPresent bool) {
	if off&15 >= 8 {
		c.DMA.WriteRegister(off, v)
		return
	}
	c.WriteRegister(off, v, sel, selPresent)
}

// ReadRegister implements the FDC's half of the 16-port page (pdq3_fdc.c's
// fdc_read, ioaddr&15 cases 0-7 route through the controller; 8-15 route to
// the DMA engine via DMA.ReadRegister).
func (c *Controller) ReadRegister(off int) uint8 {
	switch off & 7 {
	case 0, 4:
		return c.Status
	case 1, 5:
		return c.Track
	case 2, 6:
		return c.Sector
	default: // 3, 7
		return c.Data
	}
}

// WriteRegister implements fdc_write's cases 0-7. Whenever selPresent is
// set, at any of these offsets, the drive-select byte from the write's upper
// byte is latched and the unit selected before the register write itself,
// so a command written together with a select byte runs on that drive.
func (c *Controller) WriteRegister(off int, v uint8, sel uint8, selPresent bool) {
	if selPresent {
		c.Sel = sel
		c.selectUnit()
	}
	switch off & 7 {
	case 0, 4:
		c.doCommand(v)
	case 1, 5:
		c.Track = v
	case 2, 6:
		c.Sector = v
	default:
		c.Data = v
	}
}

// doCommand decodes and begins a command, per fdc_docmd's type I/II/III/IV
// dispatch.
func (c *Controller) doCommand(v uint8) {
	c.Cmd = v
	d := c.drive()
	if d == nil || d.Image == nil {
		c.Status = st1NotReady
		return
	}
	c.Status |= st1Busy
	cmd := v & cmdMask

	switch {
	case v == cmdRestore:
		c.wheel.Schedule(3000, 0, func() { c.finishRestore(d) })
	case cmd == cmdSeek&cmdMask && v&0xf0 == cmdSeek:
		c.wheel.Schedule(3000, 0, func() { c.finishSeek(d) })
	case v&0xf0 == cmdStep || v&0xf0 == cmdStepU:
		c.wheel.Schedule(3000, 0, func() { c.finishStep(d) })
	case v&0xf0 == cmdStepIn || v&0xf0 == cmdStepInU:
		d.StepDir = 0
		c.wheel.Schedule(3000, 0, func() { c.finishStep(d) })
	case v&0xf0 == cmdStepOut || v&0xf0 == cmdStepOutU:
		d.StepDir = 1
		c.wheel.Schedule(3000, 0, func() { c.finishStep(d) })
	case v&0xf0 == cmdReadSec || v&0xf0 == cmdReadSecM:
		c.wheel.Schedule(8000, 0, func() { c.finishReadSec(d) })
	case v&0xf0 == cmdWriteSec || v&0xf0 == cmdWriteSecM:
		c.wheel.Schedule(8000, 0, func() { c.finishWriteSec(d) })
	case v == cmdReadAddr:
		c.wheel.Schedule(8000, 0, func() { c.finishReadAddr(d) })
	case v == cmdReadTrk:
		c.wheel.Schedule(8000, 0, func() { c.finishReadTrk(d) })
	case v == cmdWriteTrk:
		c.finishWriteTrk()
	case v == cmdForceInt:
		c.finishForceInt()
	default:
		c.Status &^= st1Busy
	}
}

func (c *Controller) complete(status uint8) {
	c.Status = status &^ st1Busy
	c.irqLine = true
}

func (c *Controller) finishRestore(d *Drive) {
	d.Track = 0
	c.Track = 0
	c.complete(st1Track0)
}

func (c *Controller) finishSeek(d *Drive) {
	d.Track = c.Data
	c.Track = c.Data
	status := uint8(0)
	if d.Track == 0 {
		status |= st1Track0
	}
	c.complete(status)
}

func (c *Controller) finishStep(d *Drive) {
	if d.StepDir == 0 {
		if d.Track < tracksPerDrive-1 {
			d.Track++
		}
	} else if d.Track > 0 {
		d.Track--
	}
	c.Track = d.Track
	status := uint8(0)
	if d.Track == 0 {
		status |= st1Track0
	}
	c.complete(status)
}

func (c *Controller) finishReadSec(d *Drive) {
	data, err := d.Image.ReadSector(d.Track, d.Head, c.Sector)
	if err != nil {
		log.Printf("[floppy] read sector trk=%d sec=%d: %v", d.Track, c.Sector, err)
		c.complete(st2RecNotFnd)
		return
	}
	copy(c.Buf[:], data)
	c.bufLen = len(data)
	c.DMA.transferIn(c.Buf[:c.bufLen])
	c.complete(0)
}

func (c *Controller) finishWriteSec(d *Drive) {
	if d.WriteLck {
		c.complete(st2WrtProt)
		return
	}
	n := d.Image.SectorSize(d.Track)
	buf := c.DMA.transferOut(n)
	if err := d.Image.WriteSector(d.Track, d.Head, c.Sector, buf[:n]); err != nil {
		log.Printf("[floppy] write sector trk=%d sec=%d: %v", d.Track, c.Sector, err)
		c.complete(st2RecNotFnd)
		return
	}
	c.complete(0)
}

func (c *Controller) finishReadAddr(d *Drive) {
	c.Sector = 1
	c.complete(0)
}

func (c *Controller) finishReadTrk(d *Drive) {
	c.complete(0)
}

// finishWriteTrk implements spec.md §9's resolved open question: the
// command is recognized and completes immediately with an
// implementation-defined status rather than formatting anything, since the
// source this was distilled from never implements it either.
func (c *Controller) finishWriteTrk() {
	c.complete(StatusWriteTrackUnsupported)
}

// finishForceInt implements FORCE_INT's immediate (non-scheduled) behavior:
// it clears BUSY exactly once, regardless of what command was interrupted.
func (c *Controller) finishForceInt() {
	c.Status &^= st1Busy
	if v := c.Cmd & 0x0f; v != 0 {
		c.irqLine = true
	}
}

// IRQPending reports and clears the FDC's level-triggered completion
// interrupt, consumed by whatever IRQ sender wraps this controller.
func (c *Controller) IRQPending() bool {
	v := c.irqLine
	c.irqLine = false
	return v
}
