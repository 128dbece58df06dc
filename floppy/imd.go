package floppy

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"time"
)

// ImageDisk sector-size code table, per altairz80_dsk.c's IMD reader.
var sectorSizeCodes = [...]int{128, 256, 512, 1024, 2048, 4096, 8192}

// Sector-fill byte used for newly created, unformatted images.
const fillByte = 0xE5

type track struct {
	cylinder, head byte
	sectorSize     int
	numSectors     int
	sectorMap      []byte // 1-based sector numbers in on-disk order
	data           [][]byte
}

// Image is a parsed in-memory ImageDisk (.imd) file: a text comment header
// followed by one track record per (cylinder, head).
type Image struct {
	Comment string
	tracks  map[[2]byte]*track
	order   [][2]byte
}

// NewBlankImage creates a standard 77-track, single-sided image: track 0 is
// 26 sectors of 128-byte FM, tracks 1-76 are 26 sectors of 256-byte MFM,
// matching the default PDQ-3 system-disk geometry in spec.md's description
// of the bootable format. All sectors are filled with 0xE5.
func NewBlankImage(comment string) *Image {
	img := &Image{Comment: comment, tracks: map[[2]byte]*track{}}
	for cyl := 0; cyl < tracksPerDrive; cyl++ {
		size := 256
		if cyl == 0 {
			size = 128
		}
		t := &track{cylinder: byte(cyl), head: 0, sectorSize: size, numSectors: sectorsPerTrk}
		t.sectorMap = make([]byte, sectorsPerTrk)
		t.data = make([][]byte, sectorsPerTrk)
		for s := 0; s < sectorsPerTrk; s++ {
			t.sectorMap[s] = byte(s + 1)
			buf := make([]byte, size)
			for i := range buf {
				buf[i] = fillByte
			}
			t.data[s] = buf
		}
		key := [2]byte{t.cylinder, t.head}
		img.tracks[key] = t
		img.order = append(img.order, key)
	}
	return img
}

// SectorSize reports the sector size in bytes for the given cylinder,
// defaulting to the geometry's 256-byte size if the track is unknown.
func (img *Image) SectorSize(cyl uint8) int {
	if t := img.tracks[[2]byte{cyl, 0}]; t != nil {
		return t.sectorSize
	}
	return 256
}

// ReadSector returns a copy of the named sector's data.
func (img *Image) ReadSector(cyl, head, sec uint8) ([]byte, error) {
	t := img.tracks[[2]byte{cyl, head}]
	if t == nil {
		return nil, fmt.Errorf("floppy: no track c=%d h=%d", cyl, head)
	}
	idx := sectorIndex(t, sec)
	if idx < 0 {
		return nil, fmt.Errorf("floppy: no sector %d on track c=%d h=%d", sec, cyl, head)
	}
	out := make([]byte, len(t.data[idx]))
	copy(out, t.data[idx])
	return out, nil
}

// WriteSector overwrites the named sector's data in place.
func (img *Image) WriteSector(cyl, head, sec uint8, data []byte) error {
	t := img.tracks[[2]byte{cyl, head}]
	if t == nil {
		return fmt.Errorf("floppy: no track c=%d h=%d", cyl, head)
	}
	idx := sectorIndex(t, sec)
	if idx < 0 {
		return fmt.Errorf("floppy: no sector %d on track c=%d h=%d", sec, cyl, head)
	}
	n := copy(t.data[idx], data)
	for ; n < len(t.data[idx]); n++ {
		t.data[idx][n] = 0
	}
	return nil
}

func sectorIndex(t *track, sec uint8) int {
	for i, s := range t.sectorMap {
		if s == sec {
			return i
		}
	}
	return -1
}

// modeByte values, per the IMD spec's track-header mode field: FM at 500/300
// kbps is 0-2, MFM at 500/300/250 kbps is 3-5.
func modeByte(mfm bool) byte {
	if mfm {
		return 3
	}
	return 0
}

func sizeCode(size int) byte {
	for i, s := range sectorSizeCodes {
		if s == size {
			return byte(i)
		}
	}
	return 1 // default to 256
}

// WriteTo serializes the image in IMD container format: a text comment
// terminated by 0x1A, then one track record per track (mode, cylinder,
// head, sector count, size code, sector numbering map, then one data
// record per sector - an 0x01 tag byte followed by raw bytes, or an 0x02
// tag byte followed by the single fill byte for an all-same-byte compressed
// sector, matching altairz80_dsk.c's reader).
func (img *Image) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	header := fmt.Sprintf("IMD 1.18: %s\r\n%s\r\n", time.Now().UTC().Format("02/01/2006 15:04:05"), img.Comment)
	wn, err := bw.WriteString(header)
	n += int64(wn)
	if err != nil {
		return n, err
	}
	if err := bw.WriteByte(0x1A); err != nil {
		return n, err
	}
	n++
	for _, key := range img.order {
		t := img.tracks[key]
		mfm := t.sectorSize != 128
		hdr := []byte{modeByte(mfm), t.cylinder, t.head, byte(t.numSectors), sizeCode(t.sectorSize)}
		wn, err := bw.Write(hdr)
		n += int64(wn)
		if err != nil {
			return n, err
		}
		wn, err = bw.Write(t.sectorMap)
		n += int64(wn)
		if err != nil {
			return n, err
		}
		for _, sector := range t.data {
			if allSameByte(sector) {
				bw.WriteByte(0x02)
				bw.WriteByte(sector[0])
				n += 2
				continue
			}
			bw.WriteByte(0x01)
			wn, err := bw.Write(sector)
			n += int64(wn) + 1
			if err != nil {
				return n, err
			}
		}
	}
	return n, bw.Flush()
}

func allSameByte(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, v := range b[1:] {
		if v != b[0] {
			return false
		}
	}
	return true
}

// ReadImage parses an IMD container: the text comment up to the 0x1A
// sentinel, which must begin with the "IMD" signature, then one track record
// per the same layout WriteTo produces.
func ReadImage(r io.Reader) (*Image, error) {
	br := bufio.NewReader(r)
	var commentBuf bytes.Buffer
	for {
		b, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("floppy: truncated IMD header: %w", err)
		}
		if b == 0x1A {
			break
		}
		commentBuf.WriteByte(b)
	}
	if !bytes.HasPrefix(commentBuf.Bytes(), []byte("IMD")) {
		return nil, fmt.Errorf("floppy: missing IMD signature")
	}
	img := &Image{Comment: commentBuf.String(), tracks: map[[2]byte]*track{}}
	for {
		hdr := make([]byte, 5)
		_, err := io.ReadFull(br, hdr)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("floppy: reading track header: %w", err)
		}
		mode, cyl, head, numSec, szCode := hdr[0], hdr[1], hdr[2], hdr[3], hdr[4]
		_ = mode
		size := 256
		if int(szCode) < len(sectorSizeCodes) {
			size = sectorSizeCodes[szCode]
		}
		t := &track{cylinder: cyl, head: head & 0x3F, sectorSize: size, numSectors: int(numSec)}
		t.sectorMap = make([]byte, numSec)
		if _, err := io.ReadFull(br, t.sectorMap); err != nil {
			return nil, fmt.Errorf("floppy: reading sector map: %w", err)
		}
		t.data = make([][]byte, numSec)
		for i := 0; i < int(numSec); i++ {
			tag, err := br.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("floppy: reading sector tag: %w", err)
			}
			buf := make([]byte, size)
			switch tag {
			case 0x01:
				if _, err := io.ReadFull(br, buf); err != nil {
					return nil, fmt.Errorf("floppy: reading sector data: %w", err)
				}
			case 0x02:
				fill, err := br.ReadByte()
				if err != nil {
					return nil, err
				}
				for j := range buf {
					buf[j] = fill
				}
			default:
				return nil, fmt.Errorf("floppy: unsupported sector tag 0x%02x", tag)
			}
			t.data[i] = buf
		}
		key := [2]byte{t.cylinder, t.head}
		img.tracks[key] = t
		img.order = append(img.order, key)
	}
	return img, nil
}
