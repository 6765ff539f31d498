// Package wire implements the on-disk binary file format described in
// spec.md §3 and §6: the 64-byte file header, the entry stream, the
// optional level and site dictionaries, and the Writer that produces
// them with double-buffered async I/O and close/rotate semantics
// (spec.md §4.7).
package wire

import (
	"encoding/binary"
	"errors"

	"github.com/nanolog/nanolog/internal/marshaltypes"
)

const (
	// MagicFile is the file header's magic number ("NANO").
	MagicFile uint32 = 0x4E414E4F
	// MagicLevelDict is the level-dictionary section magic ("LVLS").
	MagicLevelDict uint32 = 0x4C564C53
	// MagicSiteDict is the site-dictionary section magic ("DICT").
	MagicSiteDict uint32 = 0x44494354

	// Endianness is the literal marker value written host-order; readers
	// byte-swap scalar fields when they read something other than this.
	Endianness uint32 = 0x01020304

	// HeaderSize is the fixed size of the file header in bytes.
	HeaderSize = 64

	// VersionMajor/VersionMinor identify the format version this package
	// writes. FlagBlockCompressed is a minor-version addition (§4.7a);
	// readers that don't understand it still parse the header and entry
	// stream unchanged.
	VersionMajor = 1
	VersionMinor = 0

	// FlagHasTimestamps marks that every entry header carries a u64
	// timestamp field (bit 0 of the header's flags word, spec.md §6).
	FlagHasTimestamps uint32 = 1 << 0
	// FlagBlockCompressed marks that the entry stream between the header
	// and the dictionary section is wrapped in the block codec chosen by
	// config.BlockCompression (SPEC_FULL.md §4.7a); bit 1, a minor-version
	// addition.
	FlagBlockCompressed uint32 = 1 << 1

	// EntryHeaderSizeTS/EntryHeaderSizeNoTS are the two possible raw
	// entry header sizes depending on FlagHasTimestamps (spec.md §3).
	EntryHeaderSizeTS   = 4 + 8 + 2
	EntryHeaderSizeNoTS = 4 + 2
)

// ErrShortHeader is returned when a buffer is too small to hold a
// 64-byte file header.
var ErrShortHeader = errors.New("wire: buffer shorter than file header")

// ErrBadMagic is returned when a file header's magic field doesn't
// match MagicFile.
var ErrBadMagic = errors.New("wire: bad file magic")

// Header is the fixed 64-byte file header (spec.md §6).
type Header struct {
	Magic              uint32
	VersionMajor       uint16
	VersionMinor       uint16
	TicksPerSecond     uint64
	StartTicks         uint64
	StartTimeSec       uint64
	StartTimeNsec      uint32
	Endianness         uint32
	DictionaryOffset   uint64
	EntryCount         uint32
	Flags              uint32
}

// Encode writes h into a fresh 64-byte buffer.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:], h.VersionMajor)
	binary.LittleEndian.PutUint16(buf[6:], h.VersionMinor)
	binary.LittleEndian.PutUint64(buf[8:], h.TicksPerSecond)
	binary.LittleEndian.PutUint64(buf[16:], h.StartTicks)
	binary.LittleEndian.PutUint64(buf[24:], h.StartTimeSec)
	binary.LittleEndian.PutUint32(buf[32:], h.StartTimeNsec)
	binary.LittleEndian.PutUint32(buf[36:], h.Endianness)
	binary.LittleEndian.PutUint64(buf[40:], h.DictionaryOffset)
	binary.LittleEndian.PutUint32(buf[48:], h.EntryCount)
	binary.LittleEndian.PutUint32(buf[52:], h.Flags)
	// bytes 56..64 reserved, left zero
	return buf
}

// DecodeHeader parses a 64-byte file header and returns, alongside it,
// the byte order the rest of the file was written in: binary.BigEndian
// when the magic only matches after a swap, binary.LittleEndian
// otherwise. spec.md §9 requires every subsequent fixed-width field in
// the file — each entry header and each dictionary entry, not just the
// header itself — to be read back with that same order, so callers must
// thread the returned order into DecodeEntryHeader/DecodeLevelDict/
// DecodeSiteDict rather than re-deciding it per section.
func DecodeHeader(buf []byte) (Header, binary.ByteOrder, error) {
	if len(buf) < HeaderSize {
		return Header{}, nil, ErrShortHeader
	}
	order := binary.ByteOrder(binary.LittleEndian)
	if binary.LittleEndian.Uint32(buf[0:]) != MagicFile {
		if binary.BigEndian.Uint32(buf[0:]) != MagicFile {
			return Header{}, nil, ErrBadMagic
		}
		order = binary.BigEndian
	}

	var h Header
	h.Magic = order.Uint32(buf[0:])
	h.VersionMajor = order.Uint16(buf[4:])
	h.VersionMinor = order.Uint16(buf[6:])
	h.TicksPerSecond = order.Uint64(buf[8:])
	h.StartTicks = order.Uint64(buf[16:])
	h.StartTimeSec = order.Uint64(buf[24:])
	h.StartTimeNsec = order.Uint32(buf[32:])
	h.Endianness = order.Uint32(buf[36:])
	h.DictionaryOffset = order.Uint64(buf[40:])
	h.EntryCount = order.Uint32(buf[48:])
	h.Flags = order.Uint32(buf[52:])
	return h, order, nil
}

// EntryHeader is the fixed-layout header preceding every entry's payload
// (spec.md §3): `{site_id: u32, timestamp: u64, data_length: u16}`, with
// the timestamp field dropped when timestamps are compiled out.
type EntryHeader struct {
	SiteID      uint32
	Timestamp   uint64
	DataLength  uint16
	HasTimestamp bool
}

// Size returns the on-disk size of h's fixed header.
func (h EntryHeader) Size() int {
	if h.HasTimestamp {
		return EntryHeaderSizeTS
	}
	return EntryHeaderSizeNoTS
}

// Encode appends h's fixed header bytes to dst.
func (h EntryHeader) Encode(dst []byte) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], h.SiteID)
	dst = append(dst, buf[:]...)
	if h.HasTimestamp {
		var tbuf [8]byte
		binary.LittleEndian.PutUint64(tbuf[:], h.Timestamp)
		dst = append(dst, tbuf[:]...)
	}
	var lbuf [2]byte
	binary.LittleEndian.PutUint16(lbuf[:], h.DataLength)
	dst = append(dst, lbuf[:]...)
	return dst
}

// DecodeEntryHeader parses one entry header from buf, given whether
// timestamps are present in this file and the byte order DecodeHeader
// detected for the file as a whole (spec.md §9: every entry header in a
// foreign-endian file is swapped, not only the file header).
func DecodeEntryHeader(buf []byte, hasTimestamp bool, order binary.ByteOrder) (EntryHeader, int, error) {
	size := EntryHeaderSizeNoTS
	if hasTimestamp {
		size = EntryHeaderSizeTS
	}
	if len(buf) < size {
		return EntryHeader{}, 0, errors.New("wire: short entry header")
	}
	h := EntryHeader{HasTimestamp: hasTimestamp}
	h.SiteID = order.Uint32(buf[0:])
	off := 4
	if hasTimestamp {
		h.Timestamp = order.Uint64(buf[off:])
		off += 8
	}
	h.DataLength = order.Uint16(buf[off:])
	off += 2
	return h, off, nil
}

// LevelDictEntry is one named custom level in the optional level
// dictionary (spec.md §6).
type LevelDictEntry struct {
	Level uint8
	Name  string
}

// EncodeLevelDict encodes the level-dictionary section for entries.
func EncodeLevelDict(entries []LevelDictEntry) []byte {
	if len(entries) == 0 {
		return nil
	}
	body := make([]byte, 0)
	for _, e := range entries {
		head := []byte{e.Level, byte(len(e.Name)), 0, 0}
		body = append(body, head...)
		body = append(body, e.Name...)
	}
	out := make([]byte, 16)
	binary.LittleEndian.PutUint32(out[0:], MagicLevelDict)
	binary.LittleEndian.PutUint32(out[4:], uint32(len(entries)))
	binary.LittleEndian.PutUint32(out[8:], uint32(len(body)))
	// out[12:16] reserved
	out = append(out, body...)
	return out
}

// DecodeLevelDict parses a level-dictionary section starting at buf[0],
// using order (from DecodeHeader) for every multi-byte field.
// Returns the parsed entries and the number of bytes consumed.
func DecodeLevelDict(buf []byte, order binary.ByteOrder) ([]LevelDictEntry, int, error) {
	if len(buf) < 16 {
		return nil, 0, errors.New("wire: short level dictionary header")
	}
	magic := order.Uint32(buf[0:])
	if magic != MagicLevelDict {
		return nil, 0, errors.New("wire: bad level dictionary magic")
	}
	count := order.Uint32(buf[4:])
	off := 16
	entries := make([]LevelDictEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		if off+4 > len(buf) {
			return nil, 0, errors.New("wire: truncated level dictionary")
		}
		level := buf[off]
		nameLen := int(buf[off+1])
		off += 4
		if off+nameLen > len(buf) {
			return nil, 0, errors.New("wire: truncated level dictionary name")
		}
		name := string(buf[off : off+nameLen])
		off += nameLen
		entries = append(entries, LevelDictEntry{Level: level, Name: name})
	}
	return entries, off, nil
}

// SiteDictEntry is one site's metadata as it appears in the site
// dictionary (spec.md §6).
type SiteDictEntry struct {
	SiteID   uint32
	Level    uint8
	ArgCount uint8
	Line     uint32
	Filename string
	Format   string
	ArgTypes [50]marshaltypes.ArgType
}

// EncodeSiteDict encodes the mandatory site-dictionary section.
func EncodeSiteDict(entries []SiteDictEntry) []byte {
	body := make([]byte, 0)
	for _, e := range entries {
		head := make([]byte, 0, 14+50)
		var b4 [4]byte
		binary.LittleEndian.PutUint32(b4[:], e.SiteID)
		head = append(head, b4[:]...)
		head = append(head, e.Level, e.ArgCount)
		var b2 [2]byte
		binary.LittleEndian.PutUint16(b2[:], uint16(len(e.Filename)))
		head = append(head, b2[:]...)
		binary.LittleEndian.PutUint16(b2[:], uint16(len(e.Format)))
		head = append(head, b2[:]...)
		binary.LittleEndian.PutUint32(b4[:], e.Line)
		head = append(head, b4[:]...)
		for _, t := range e.ArgTypes {
			head = append(head, byte(t))
		}
		body = append(body, head...)
		body = append(body, e.Filename...)
		body = append(body, e.Format...)
	}
	out := make([]byte, 16)
	binary.LittleEndian.PutUint32(out[0:], MagicSiteDict)
	binary.LittleEndian.PutUint32(out[4:], uint32(len(entries)))
	binary.LittleEndian.PutUint32(out[8:], uint32(len(body)))
	out = append(out, body...)
	return out
}

// DecodeSiteDict parses a site-dictionary section starting at buf[0],
// using order (from DecodeHeader) for every multi-byte field.
func DecodeSiteDict(buf []byte, order binary.ByteOrder) ([]SiteDictEntry, int, error) {
	if len(buf) < 16 {
		return nil, 0, errors.New("wire: short site dictionary header")
	}
	magic := order.Uint32(buf[0:])
	if magic != MagicSiteDict {
		return nil, 0, errors.New("wire: bad site dictionary magic")
	}
	count := order.Uint32(buf[4:])
	off := 16
	entries := make([]SiteDictEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		const fixedLen = 4 + 1 + 1 + 2 + 2 + 4 + 50
		if off+fixedLen > len(buf) {
			return nil, 0, errors.New("wire: truncated site dictionary entry")
		}
		var e SiteDictEntry
		e.SiteID = order.Uint32(buf[off:])
		e.Level = buf[off+4]
		e.ArgCount = buf[off+5]
		filenameLen := int(order.Uint16(buf[off+6:]))
		formatLen := int(order.Uint16(buf[off+8:]))
		e.Line = order.Uint32(buf[off+10:])
		for i, b := range buf[off+14 : off+14+50] {
			e.ArgTypes[i] = marshaltypes.ArgType(b)
		}
		off += fixedLen
		if off+filenameLen+formatLen > len(buf) {
			return nil, 0, errors.New("wire: truncated site dictionary strings")
		}
		e.Filename = string(buf[off : off+filenameLen])
		off += filenameLen
		e.Format = string(buf[off : off+formatLen])
		off += formatLen
		entries = append(entries, e)
	}
	return entries, off, nil
}
