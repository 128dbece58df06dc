package memory

import (
	"fmt"

	"github.com/hveit/duosim/io"
)

// Region is the classification Fabric.Decode assigns a reduced 16-bit
// address to.
type Region int

const (
	RegionBankedRAM Region = iota
	RegionCommonRAM
	RegionROM
	RegionNonExistent
	RegionMMIO
)

func (r Region) String() string {
	switch r {
	case RegionBankedRAM:
		return "banked-ram"
	case RegionCommonRAM:
		return "common-ram"
	case RegionROM:
		return "rom"
	case RegionNonExistent:
		return "non-existent"
	case RegionMMIO:
		return "mmio"
	default:
		return "unknown"
	}
}

// AddrMask reduces any CPU-generated address to the 16-bit cell index used
// throughout the fabric.
const AddrMask = 0xFFFF

// FabricConfig configures one Fabric instance. Zero values disable the
// corresponding carve-out: Common == 0 disables the common-area split,
// ROMHigh < ROMLow disables the ROM window, MMIOSpan == 0 disables MMIO,
// Size == 0 means the full 64KiB is populated (no NonExistent region).
type FabricConfig struct {
	Banks             int
	Common            uint16
	ROMLow, ROMHigh   uint16
	Size              int
	MMIOBase          uint16
	MMIOSpan          int
	IO                *io.Table
	NonExistentRead   uint8
}

// Fabric is the Memory/IO fabric described in the spec: a rectangle of
// MAXBANKS x 64KiB RAM cells, a bank-0-only common watermark, a
// write-protected ROM window, a non-existent region above the configured
// size, and an MMIO window dispatching through an io.Table. The same type
// backs both the 8080/Z80 bus (banked, port-IO, MMIOSpan == 0) and the
// PDQ-3 bus (single bank, memory-mapped IO page at the top of the address
// space).
type Fabric struct {
	cfg          FabricConfig
	banks        []Bank
	selectedBank int
	romWarnings  int
	parent       Bank
	databusVal   uint8
}

// NewFabric allocates the bank rectangle and returns a ready-to-use Fabric.
func NewFabric(cfg FabricConfig) (*Fabric, error) {
	if cfg.Banks <= 0 {
		cfg.Banks = 1
	}
	if cfg.Size == 0 {
		cfg.Size = 1 << 16
	}
	if cfg.Size < 0 || cfg.Size > 1<<16 {
		return nil, fmt.Errorf("memory: invalid size %d", cfg.Size)
	}
	f := &Fabric{cfg: cfg, banks: make([]Bank, cfg.Banks)}
	for i := range f.banks {
		b, err := NewRAMBank(1<<16, nil)
		if err != nil {
			return nil, err
		}
		f.banks[i] = b
	}
	return f, nil
}

// SetBank selects the currently active bank for BankedRAM addresses. Takes
// effect on the next memory access, never retroactively, per the fabric
// contract: bank selection updates are not applied to an access already in
// flight.
func (f *Fabric) SetBank(n int) {
	if n < 0 {
		n = 0
	}
	if n >= len(f.banks) {
		n = len(f.banks) - 1
	}
	f.selectedBank = n
}

// Bank returns the currently selected bank index.
func (f *Fabric) Bank() int { return f.selectedBank }

// ROMWarnings returns the number of write attempts into the ROM window
// since the last reset, per the "attempts increment a warning counter"
// requirement.
func (f *Fabric) ROMWarnings() int { return f.romWarnings }

func (f *Fabric) romConfigured() bool {
	return f.cfg.ROMHigh >= f.cfg.ROMLow && (f.cfg.ROMLow != 0 || f.cfg.ROMHigh != 0)
}

// Decode classifies a reduced address. MMIO takes precedence (it's a fixed
// carve-out regardless of bank/common state), then the ROM window, then
// the configured-size boundary, then the common watermark.
func (f *Fabric) Decode(addr uint16) Region {
	addr &= AddrMask
	if f.cfg.MMIOSpan > 0 {
		span := uint32(f.cfg.MMIOSpan)
		if uint32(addr) >= uint32(f.cfg.MMIOBase) && uint32(addr)-uint32(f.cfg.MMIOBase) < span {
			return RegionMMIO
		}
	}
	if f.romConfigured() && addr >= f.cfg.ROMLow && addr <= f.cfg.ROMHigh {
		return RegionROM
	}
	if int(addr) >= f.cfg.Size {
		return RegionNonExistent
	}
	if f.cfg.Common > 0 && addr >= f.cfg.Common {
		return RegionCommonRAM
	}
	return RegionBankedRAM
}

// ReadByte reads a single byte through the fabric's decode/dispatch chain.
func (f *Fabric) ReadByte(addr uint16) uint8 {
	addr &= AddrMask
	var val uint8
	switch f.Decode(addr) {
	case RegionMMIO:
		val = f.cfg.IO.In(uint8(addr - f.cfg.MMIOBase))
	case RegionNonExistent:
		val = f.cfg.NonExistentRead
	case RegionCommonRAM, RegionROM:
		val = f.banks[0].Read(addr)
	default:
		val = f.banks[f.selectedBank].Read(addr)
	}
	f.databusVal = val
	return val
}

// WriteByte writes a single byte through the fabric's decode/dispatch
// chain. Writes to ROM and NonExistent complete without raising to the
// CPU; ROM writes are counted in ROMWarnings.
func (f *Fabric) WriteByte(addr uint16, val uint8) {
	addr &= AddrMask
	f.databusVal = val
	switch f.Decode(addr) {
	case RegionMMIO:
		f.cfg.IO.Out(uint8(addr-f.cfg.MMIOBase), val)
	case RegionNonExistent:
		// discarded
	case RegionROM:
		f.romWarnings++
	case RegionCommonRAM:
		f.banks[0].Write(addr, val)
	default:
		f.banks[f.selectedBank].Write(addr, val)
	}
}

// ReadWord reads a little-endian 16-bit word: low byte at addr, high byte
// at addr+1.
func (f *Fabric) ReadWord(addr uint16) uint16 {
	lo := f.ReadByte(addr)
	hi := f.ReadByte(addr + 1)
	return uint16(lo) | uint16(hi)<<8
}

// WriteWord writes a little-endian 16-bit word: low byte at addr, high
// byte at addr+1.
func (f *Fabric) WriteWord(addr uint16, val uint16) {
	f.WriteByte(addr, uint8(val))
	f.WriteByte(addr+1, uint8(val>>8))
}

// LoadROM installs image as the ROM contents for the [ROMLow, ROMLow+len)
// range (and also seeds the same bytes into bank 0's backing RAM, since
// ROM is a write-guard over the normal cell array rather than a disjoint
// store).
func (f *Fabric) LoadROM(image []uint8) {
	for i, b := range image {
		addr := f.cfg.ROMLow + uint16(i)
		f.banks[0].Write(addr, b)
	}
}

// PowerOn resets every bank to its power-on state and clears the ROM
// warning counter.
func (f *Fabric) PowerOn() {
	for _, b := range f.banks {
		b.PowerOn()
	}
	f.romWarnings = 0
	f.selectedBank = 0
}

// Read/Write/Parent/DatabusVal let Fabric itself satisfy Bank, so a fabric
// can be nested inside another (e.g. the P-code sector buffer viewed
// through the same interface as main store).
func (f *Fabric) Read(addr uint16) uint8        { return f.ReadByte(addr) }
func (f *Fabric) Write(addr uint16, val uint8)  { f.WriteByte(addr, val) }
func (f *Fabric) Parent() Bank                  { return f.parent }
func (f *Fabric) DatabusVal() uint8             { return f.databusVal }
