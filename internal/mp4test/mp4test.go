// Package mp4test builds small synthetic MP4 files with one H.264 track for
// tests.
package mp4test

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

var (
	SPS = []byte{0x67, 0x42, 0xc0, 0x1e, 0xd9, 0x00, 0xa0, 0x47}
	PPS = []byte{0x68, 0xce, 0x3c, 0x80}
)

type Options struct {
	Samples     int
	Timescale   uint32
	SampleDelta uint32

	// KeyframeInterval adds an stss box with every n-th sample (starting at
	// sample 1) marked as sync sample. Zero omits the table.
	KeyframeInterval int

	// CompositionOffset adds a ctts box with the same offset for every
	// sample.
	CompositionOffset uint32

	Width      uint16
	Height     uint16
	LengthSize int

	// HandlerType replaces the sample entry with a non-video one if it is
	// not "vide".
	HandlerType string
}

// Default is a 10 second, 30 fps track.
func Default() Options {
	return Options{
		Samples:          300,
		Timescale:        600,
		SampleDelta:      20,
		KeyframeInterval: 30,
		Width:            64,
		Height:           48,
		LengthSize:       4,
		HandlerType:      "vide",
	}
}

// IsSync reports whether sample n (1-based) is listed in the sync sample
// table.
func (o Options) IsSync(n int) bool {
	if o.KeyframeInterval <= 0 {
		return true
	}
	return (n-1)%o.KeyframeInterval == 0
}

// NALUs returns the NAL units stored in sample n (1-based): an SEI followed
// by an IDR or non-IDR slice.
func (o Options) NALUs(n int) [][]byte {
	typ := byte(0x41)
	if o.IsSync(n) {
		typ = 0x65
	}
	return [][]byte{
		{0x06, 0x05, byte(n)},
		{typ, 0x88, byte(n >> 8), byte(n)},
	}
}

func (o Options) sample(n int) []byte {
	var b []byte
	for _, nalu := range o.NALUs(n) {
		b = appendLength(b, o.LengthSize, len(nalu))
		b = append(b, nalu...)
	}
	return b
}

func appendLength(b []byte, size, n int) []byte {
	for i := size - 1; i >= 0; i-- {
		b = append(b, byte(n>>(8*i)))
	}
	return b
}

// Build returns the bytes of the MP4 file.
func Build(o Options) []byte {
	var mdat []byte
	sizes := make([]uint32, o.Samples)
	for i := range o.Samples {
		s := o.sample(i + 1)
		sizes[i] = uint32(len(s))
		mdat = append(mdat, s...)
	}
	ftyp := box("ftyp", []byte("isom"), u32(0x200), []byte("isom"), []byte("avc1"))

	// stco does not change the moov size, so build once to learn the
	// offset of the mdat payload.
	moov := o.moov(sizes, 0)
	offset := uint32(len(ftyp) + len(moov) + 8)
	moov = o.moov(sizes, offset)

	out := append(ftyp, moov...)
	return append(out, box("mdat", mdat)...)
}

// WriteFile writes the file to a temporary directory and returns its path.
func WriteFile(t testing.TB, o Options) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.mp4")
	if err := os.WriteFile(path, Build(o), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func (o Options) moov(sizes []uint32, chunkOffset uint32) []byte {
	duration := uint32(o.Samples) * o.SampleDelta
	mvhd := fullBox("mvhd", 0, 0,
		u32(0), u32(0), u32(o.Timescale), u32(duration),
		u32(0x00010000), u16(0x0100), make([]byte, 10),
		matrix(), make([]byte, 24), u32(2),
	)
	tkhd := fullBox("tkhd", 0, 3,
		u32(0), u32(0), u32(1), u32(0), u32(duration),
		make([]byte, 8), u16(0), u16(0), u16(0), u16(0),
		matrix(), u32(uint32(o.Width)<<16), u32(uint32(o.Height)<<16),
	)
	mdhd := fullBox("mdhd", 0, 0,
		u32(0), u32(0), u32(o.Timescale), u32(duration), u16(0x55c4), u16(0),
	)
	hdlr := fullBox("hdlr", 0, 0,
		u32(0), []byte(o.HandlerType), make([]byte, 12), []byte("VideoHandler\x00"),
	)
	vmhd := fullBox("vmhd", 0, 1, u16(0), make([]byte, 6))
	dinf := box("dinf", fullBox("dref", 0, 0, u32(1), fullBox("url ", 0, 1)))

	stbl := [][]byte{
		fullBox("stsd", 0, 0, u32(1), o.sampleEntry()),
		fullBox("stts", 0, 0, u32(1), u32(uint32(o.Samples)), u32(o.SampleDelta)),
	}
	if o.CompositionOffset > 0 {
		stbl = append(stbl, fullBox("ctts", 0, 0, u32(1), u32(uint32(o.Samples)), u32(o.CompositionOffset)))
	}
	if o.KeyframeInterval > 0 {
		var entries [][]byte
		for n := 1; n <= o.Samples; n += o.KeyframeInterval {
			entries = append(entries, u32(uint32(n)))
		}
		stbl = append(stbl, fullBox("stss", 0, 0, append([][]byte{u32(uint32(len(entries)))}, entries...)...))
	}
	stszEntries := [][]byte{u32(0), u32(uint32(len(sizes)))}
	for _, s := range sizes {
		stszEntries = append(stszEntries, u32(s))
	}
	stbl = append(stbl,
		fullBox("stsc", 0, 0, u32(1), u32(1), u32(uint32(o.Samples)), u32(1)),
		fullBox("stsz", 0, 0, stszEntries...),
		fullBox("stco", 0, 0, u32(1), u32(chunkOffset)),
	)

	minf := box("minf", vmhd, dinf, box("stbl", stbl...))
	mdia := box("mdia", mdhd, hdlr, minf)
	trak := box("trak", tkhd, mdia)
	return box("moov", mvhd, trak)
}

func (o Options) sampleEntry() []byte {
	entryType := "avc1"
	if o.HandlerType != "vide" {
		entryType = "mp4v"
	}
	var avcC []byte
	avcC = append(avcC, 0x01, SPS[1], SPS[2], SPS[3], 0xfc|byte(o.LengthSize-1), 0xe1)
	avcC = append(avcC, u16(uint16(len(SPS)))...)
	avcC = append(avcC, SPS...)
	avcC = append(avcC, 0x01)
	avcC = append(avcC, u16(uint16(len(PPS)))...)
	avcC = append(avcC, PPS...)

	return box(entryType,
		make([]byte, 6), u16(1),
		u16(0), u16(0), make([]byte, 12),
		u16(o.Width), u16(o.Height),
		u32(0x00480000), u32(0x00480000), u32(0),
		u16(1), make([]byte, 32), u16(0x0018), u16(0xffff),
		box("avcC", avcC),
	)
}

func box(typ string, payload ...[]byte) []byte {
	size := 8
	for _, p := range payload {
		size += len(p)
	}
	b := make([]byte, 0, size)
	b = append(b, u32(uint32(size))...)
	b = append(b, typ...)
	for _, p := range payload {
		b = append(b, p...)
	}
	return b
}

func fullBox(typ string, version uint8, flags uint32, payload ...[]byte) []byte {
	vf := u32(uint32(version)<<24 | flags&0x00ffffff)
	return box(typ, append([][]byte{vf}, payload...)...)
}

func matrix() []byte {
	var b []byte
	for _, v := range []uint32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000} {
		b = append(b, u32(v)...)
	}
	return b
}

func u32(v uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, v)
}

func u16(v uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, v)
}
