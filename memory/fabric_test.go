package memory

import "testing"

func TestBankedCarveOut(t *testing.T) {
	f, err := NewFabric(FabricConfig{Banks: 3, Common: 0xC000, Size: 0x10000})
	if err != nil {
		t.Fatalf("NewFabric: %v", err)
	}

	f.SetBank(1)
	f.WriteByte(0x8000, 0x11)
	f.SetBank(2)
	f.WriteByte(0x8000, 0x22)
	f.SetBank(1)
	if got := f.ReadByte(0x8000); got != 0x11 {
		t.Errorf("bank 1 @0x8000 = 0x%02x, want 0x11", got)
	}

	f.WriteByte(0xE000, 0x33)
	for bank := 0; bank < 3; bank++ {
		f.SetBank(bank)
		if got := f.ReadByte(0xE000); got != 0x33 {
			t.Errorf("bank %d @0xE000 = 0x%02x, want 0x33 (common area)", bank, got)
		}
	}
}

func TestROMWindowRejectsWrites(t *testing.T) {
	f, err := NewFabric(FabricConfig{Banks: 1, ROMLow: 0x0000, ROMHigh: 0x1FFF, Size: 0x10000})
	if err != nil {
		t.Fatalf("NewFabric: %v", err)
	}
	f.LoadROM([]uint8{0xAA, 0xBB})
	pre := f.ReadByte(0x0000)
	f.WriteByte(0x0000, 0xFF)
	if got := f.ReadByte(0x0000); got != pre {
		t.Errorf("ROM write changed contents: got 0x%02x, want unchanged 0x%02x", got, pre)
	}
	if f.ROMWarnings() != 1 {
		t.Errorf("ROMWarnings() = %d, want 1", f.ROMWarnings())
	}
}

func TestNonExistentRegion(t *testing.T) {
	f, err := NewFabric(FabricConfig{Banks: 1, Size: 0x4000, NonExistentRead: 0xFF})
	if err != nil {
		t.Fatalf("NewFabric: %v", err)
	}
	if got := f.ReadByte(0x8000); got != 0xFF {
		t.Errorf("non-existent read = 0x%02x, want 0xFF", got)
	}
	f.WriteByte(0x8000, 0x42)
	if got := f.ReadByte(0x8000); got != 0xFF {
		t.Errorf("non-existent write took effect: read back 0x%02x", got)
	}
}

func TestReadWriteWordLittleEndian(t *testing.T) {
	f, err := NewFabric(FabricConfig{Banks: 1, Size: 0x10000})
	if err != nil {
		t.Fatalf("NewFabric: %v", err)
	}
	f.WriteWord(0x1000, 0xBEEF)
	if got := f.ReadByte(0x1000); got != 0xEF {
		t.Errorf("low byte = 0x%02x, want 0xEF", got)
	}
	if got := f.ReadByte(0x1001); got != 0xBE {
		t.Errorf("high byte = 0x%02x, want 0xBE", got)
	}
	if got := f.ReadWord(0x1000); got != 0xBEEF {
		t.Errorf("ReadWord = 0x%04x, want 0xBEEF", got)
	}
}
