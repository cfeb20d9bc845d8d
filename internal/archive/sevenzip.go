package archive

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"time"
	"unicode/utf16"

	"github.com/ulikunitz/xz/lzma"
)

// 7z property ids.
const (
	szEnd              = 0x00
	szHeader           = 0x01
	szMainStreamsInfo  = 0x04
	szFilesInfo        = 0x05
	szPackInfo         = 0x06
	szUnpackInfo       = 0x07
	szSubStreamsInfo   = 0x08
	szSize             = 0x09
	szCRC              = 0x0A
	szFolder           = 0x0B
	szCodersUnpackSize = 0x0C
	szEmptyStream      = 0x0E
	szEmptyFile        = 0x0F
	szName             = 0x11
	szMTime            = 0x14
	szAttributes       = 0x15
)

var (
	szSignature = []byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C}
	szVersion   = []byte{0, 4}
	lzmaCoderID = []byte{0x03, 0x01, 0x01}
)

const (
	szSignatureHeaderSize = 32

	// Seconds between 1601-01-01 and 1970-01-01, in 100ns ticks.
	fileTimeEpochOffset = 116444736000000000

	// FILE_ATTRIBUTE_ARCHIVE plus the unix extension carrying S_IFREG|0644.
	regularFileAttributes = 0x20 | 0x8000 | (0100644 << 16)
)

// szStream is one LZMA-compressed file body. Every non-empty file gets its
// own folder and pack stream.
type szStream struct {
	packed   []byte
	props    []byte
	unpacked uint64
	crc      uint32
}

func writeSevenZip(ctx context.Context, w io.Writer, entries []entry) error {
	var streams []szStream
	empty := make([]bool, len(entries))

	for i, en := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := readEntry(en)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			empty[i] = true
			continue
		}
		s, err := compressLZMA(data)
		if err != nil {
			return fmt.Errorf("compressing %s: %w", en.name, err)
		}
		streams = append(streams, s)
	}

	var packed bytes.Buffer
	for _, s := range streams {
		packed.Write(s.packed)
	}

	var header []byte
	if len(entries) > 0 {
		header = encodeSevenZipHeader(entries, streams, empty)
	}

	sig := make([]byte, szSignatureHeaderSize)
	copy(sig, szSignature)
	copy(sig[6:], szVersion)
	if len(header) > 0 {
		binary.LittleEndian.PutUint64(sig[12:], uint64(packed.Len()))
		binary.LittleEndian.PutUint64(sig[20:], uint64(len(header)))
		binary.LittleEndian.PutUint32(sig[28:], crc32.ChecksumIEEE(header))
	}
	binary.LittleEndian.PutUint32(sig[8:], crc32.ChecksumIEEE(sig[12:32]))

	for _, chunk := range [][]byte{sig, packed.Bytes(), header} {
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("writing 7z: %w", err)
		}
	}
	return nil
}

// compressLZMA encodes data as a raw LZMA stream. The classic LZMA header
// is split off: its first five bytes become the 7z coder properties.
func compressLZMA(data []byte) (szStream, error) {
	var buf bytes.Buffer
	cfg := lzma.WriterConfig{
		SizeInHeader: true,
		Size:         int64(len(data)),
		EOSMarker:    false,
	}
	lw, err := cfg.NewWriter(&buf)
	if err != nil {
		return szStream{}, err
	}
	if _, err := lw.Write(data); err != nil {
		return szStream{}, err
	}
	if err := lw.Close(); err != nil {
		return szStream{}, err
	}

	out := buf.Bytes()
	const classicHeaderLen = 13
	if len(out) < classicHeaderLen {
		return szStream{}, fmt.Errorf("lzma output too short: %d bytes", len(out))
	}
	return szStream{
		props:    append([]byte(nil), out[:5]...),
		packed:   out[classicHeaderLen:],
		unpacked: uint64(len(data)),
		crc:      crc32.ChecksumIEEE(data),
	}, nil
}

func encodeSevenZipHeader(entries []entry, streams []szStream, empty []bool) []byte {
	var h szBuffer
	h.putByte(szHeader)

	if len(streams) > 0 {
		h.putByte(szMainStreamsInfo)

		h.putByte(szPackInfo)
		h.putNumber(0)
		h.putNumber(uint64(len(streams)))
		h.putByte(szSize)
		for _, s := range streams {
			h.putNumber(uint64(len(s.packed)))
		}
		h.putByte(szEnd)

		h.putByte(szUnpackInfo)
		h.putByte(szFolder)
		h.putNumber(uint64(len(streams)))
		h.putByte(0) // not external
		for _, s := range streams {
			h.putNumber(1) // one coder
			h.putByte(0x20 | byte(len(lzmaCoderID)))
			h.putBytes(lzmaCoderID)
			h.putNumber(uint64(len(s.props)))
			h.putBytes(s.props)
		}
		h.putByte(szCodersUnpackSize)
		for _, s := range streams {
			h.putNumber(s.unpacked)
		}
		h.putByte(szEnd)

		h.putByte(szSubStreamsInfo)
		h.putByte(szCRC)
		h.putByte(1) // all defined
		for _, s := range streams {
			h.putUint32(s.crc)
		}
		h.putByte(szEnd)

		h.putByte(szEnd)
	}

	h.putByte(szFilesInfo)
	h.putNumber(uint64(len(entries)))

	numEmpty := 0
	for _, e := range empty {
		if e {
			numEmpty++
		}
	}
	if numEmpty > 0 {
		bits := bitField(empty)
		h.putByte(szEmptyStream)
		h.putNumber(uint64(len(bits)))
		h.putBytes(bits)

		allFiles := make([]bool, numEmpty)
		for i := range allFiles {
			allFiles[i] = true
		}
		bits = bitField(allFiles)
		h.putByte(szEmptyFile)
		h.putNumber(uint64(len(bits)))
		h.putBytes(bits)
	}

	var names szBuffer
	names.putByte(0) // not external
	for _, en := range entries {
		for _, u := range utf16.Encode([]rune(en.name)) {
			names.putUint16(u)
		}
		names.putUint16(0)
	}
	h.putByte(szName)
	h.putNumber(uint64(len(names.b)))
	h.putBytes(names.b)

	var times szBuffer
	times.putByte(1) // all defined
	times.putByte(0) // not external
	for _, en := range entries {
		times.putUint64(fileTime(en.modTime))
	}
	h.putByte(szMTime)
	h.putNumber(uint64(len(times.b)))
	h.putBytes(times.b)

	var attrs szBuffer
	attrs.putByte(1) // all defined
	attrs.putByte(0) // not external
	for range entries {
		attrs.putUint32(regularFileAttributes)
	}
	h.putByte(szAttributes)
	h.putNumber(uint64(len(attrs.b)))
	h.putBytes(attrs.b)

	h.putByte(szEnd)
	h.putByte(szEnd)
	return h.b
}

// fileTime converts t to a Windows FILETIME.
func fileTime(t time.Time) uint64 {
	return uint64(t.UnixNano()/100 + fileTimeEpochOffset)
}

// bitField packs flags most significant bit first.
func bitField(flags []bool) []byte {
	out := make([]byte, (len(flags)+7)/8)
	for i, f := range flags {
		if f {
			out[i/8] |= 0x80 >> (i % 8)
		}
	}
	return out
}

// szBuffer accumulates 7z header fields.
type szBuffer struct {
	b []byte
}

func (s *szBuffer) putByte(v byte)     { s.b = append(s.b, v) }
func (s *szBuffer) putBytes(v []byte)  { s.b = append(s.b, v...) }
func (s *szBuffer) putUint16(v uint16) { s.b = binary.LittleEndian.AppendUint16(s.b, v) }
func (s *szBuffer) putUint32(v uint32) { s.b = binary.LittleEndian.AppendUint32(s.b, v) }
func (s *szBuffer) putUint64(v uint64) { s.b = binary.LittleEndian.AppendUint64(s.b, v) }

// number writes v in the 7z variable-length encoding: the count of leading
// one bits in the first byte is the number of little-endian bytes that
// follow, and the first byte's remaining bits hold the high part of v.
func (s *szBuffer) putNumber(v uint64) {
	for n := 0; n < 8; n++ {
		if v < uint64(1)<<(7*(n+1)) {
			first := byte(0xFF<<(8-n)) | byte(v>>(8*n))
			s.b = append(s.b, first)
			for i := 0; i < n; i++ {
				s.b = append(s.b, byte(v>>(8*i)))
			}
			return
		}
	}
	s.b = append(s.b, 0xFF)
	s.putUint64(v)
}
