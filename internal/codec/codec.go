// Package codec implements the per-entry compression codec described in
// spec.md §4.8: a two-pass binary layout (nibble-described packed
// integers and doubles, then length-prefixed strings) that shrinks a raw
// marshaled argument payload before it is written to disk.
//
// Grounded on mebo's columnar two-pass encode/decode style
// (encoding/ts_delta.go separates a descriptor/control section from the
// bulk value section the same way) and on internal/pack for the
// variable-byte primitives.
package codec

import (
	"encoding/binary"
	"errors"

	"github.com/nanolog/nanolog/internal/marshaltypes"
	"github.com/nanolog/nanolog/internal/pack"
)

// ErrShortPayload is returned when the compressed buffer ends before all
// declared arguments have been read.
var ErrShortPayload = errors.New("codec: payload shorter than site's argument list implies")

// ErrTrailingBytes is returned when the compressed buffer has bytes left
// over after every declared argument has been decoded — all compressed
// bytes must be consumed exactly (spec.md §4.8).
var ErrTrailingBytes = errors.New("codec: payload has unconsumed trailing bytes")

func countNonString(argTypes []marshaltypes.ArgType) int {
	n := 0
	for _, t := range argTypes {
		if !t.IsString() && t != marshaltypes.ArgNone {
			n++
		}
	}
	return n
}

// Compress rewrites a raw marshaled payload (spec.md §4.5 layout) into
// the compressed two-pass layout. ok is false if raw is malformed for
// argTypes (too short, a length prefix running past the end) — callers
// must fall back to storing raw uncompressed, per spec.md §4.8's
// all-or-nothing-per-entry rule.
func Compress(raw []byte, argTypes []marshaltypes.ArgType) (out []byte, ok bool) {
	descLen := pack.DescriptorBytes(countNonString(argTypes))
	desc := make([]byte, descLen)
	pass1 := make([]byte, 0, len(raw))
	pass2 := make([]byte, 0, len(raw)/4)

	off := 0
	nibbleIdx := 0

	readN := func(n int) ([]byte, bool) {
		if off+n > len(raw) {
			return nil, false
		}
		b := raw[off : off+n]
		off += n
		return b, true
	}

	for _, t := range argTypes {
		switch t {
		case marshaltypes.ArgInt32:
			b, okRead := readN(4)
			if !okRead {
				return nil, false
			}
			v := int64(int32(binary.LittleEndian.Uint32(b)))
			var n int
			var neg bool
			pass1, n, neg = pack.EncodeSigned(pass1, v)
			pack.PutNibble(desc, nibbleIdx, pack.SignedNibble(n, neg))
			nibbleIdx++
		case marshaltypes.ArgInt64:
			b, okRead := readN(8)
			if !okRead {
				return nil, false
			}
			v := int64(binary.LittleEndian.Uint64(b))
			var n int
			var neg bool
			pass1, n, neg = pack.EncodeSigned(pass1, v)
			pack.PutNibble(desc, nibbleIdx, pack.SignedNibble(n, neg))
			nibbleIdx++
		case marshaltypes.ArgUint32:
			b, okRead := readN(4)
			if !okRead {
				return nil, false
			}
			v := uint64(binary.LittleEndian.Uint32(b))
			var n int
			pass1, n = pack.EncodeUnsigned(pass1, v)
			pack.PutNibble(desc, nibbleIdx, pack.UnsignedNibble(n))
			nibbleIdx++
		case marshaltypes.ArgUint64, marshaltypes.ArgPointer:
			b, okRead := readN(8)
			if !okRead {
				return nil, false
			}
			v := binary.LittleEndian.Uint64(b)
			var n int
			pass1, n = pack.EncodeUnsigned(pass1, v)
			pack.PutNibble(desc, nibbleIdx, pack.UnsignedNibble(n))
			nibbleIdx++
		case marshaltypes.ArgDouble:
			b, okRead := readN(8)
			if !okRead {
				return nil, false
			}
			pass1 = append(pass1, b...)
			pack.PutNibble(desc, nibbleIdx, pack.DoubleNibble)
			nibbleIdx++
		case marshaltypes.ArgString:
			lenBytes, okRead := readN(4)
			if !okRead {
				return nil, false
			}
			length := binary.LittleEndian.Uint32(lenBytes)
			strBytes, okRead := readN(int(length))
			if !okRead {
				return nil, false
			}
			pass2 = append(pass2, lenBytes...)
			pass2 = append(pass2, strBytes...)
		case marshaltypes.ArgNone:
			// no payload
		default:
			return nil, false
		}
	}

	out = make([]byte, 0, len(desc)+len(pass1)+len(pass2))
	out = append(out, desc...)
	out = append(out, pass1...)
	out = append(out, pass2...)
	return out, true
}

// Decompress reverses Compress, reconstructing the original raw
// marshaled payload bytes. It validates that every compressed byte is
// consumed exactly; a mismatch returns ErrShortPayload/ErrTrailingBytes
// so the caller can fall back to treating the payload as already-raw.
func Decompress(compressed []byte, argTypes []marshaltypes.ArgType) ([]byte, error) {
	descLen := pack.DescriptorBytes(countNonString(argTypes))
	if len(compressed) < descLen {
		return nil, ErrShortPayload
	}
	desc := compressed[:descLen]
	pos := descLen
	nibbleIdx := 0

	vals := make([][]byte, len(argTypes))

	for i, t := range argTypes {
		switch t {
		case marshaltypes.ArgInt32, marshaltypes.ArgInt64:
			nib := pack.GetNibble(desc, nibbleIdx)
			nibbleIdx++
			n, neg := pack.SplitSignedNibble(nib)
			v, err := pack.DecodeSigned(compressed, pos, n, neg)
			if err != nil {
				return nil, err
			}
			pos += n
			buf := make([]byte, 8)
			if t == marshaltypes.ArgInt32 {
				buf = buf[:4]
				binary.LittleEndian.PutUint32(buf, uint32(int32(v)))
			} else {
				binary.LittleEndian.PutUint64(buf, uint64(v))
			}
			vals[i] = buf
		case marshaltypes.ArgUint32:
			nib := pack.GetNibble(desc, nibbleIdx)
			nibbleIdx++
			n := pack.SplitUnsignedNibble(nib)
			v, err := pack.DecodeUnsigned(compressed, pos, n)
			if err != nil {
				return nil, err
			}
			pos += n
			buf := make([]byte, 4)
			binary.LittleEndian.PutUint32(buf, uint32(v))
			vals[i] = buf
		case marshaltypes.ArgUint64, marshaltypes.ArgPointer:
			nib := pack.GetNibble(desc, nibbleIdx)
			nibbleIdx++
			n := pack.SplitUnsignedNibble(nib)
			v, err := pack.DecodeUnsigned(compressed, pos, n)
			if err != nil {
				return nil, err
			}
			pos += n
			buf := make([]byte, 8)
			binary.LittleEndian.PutUint64(buf, v)
			vals[i] = buf
		case marshaltypes.ArgDouble:
			nibbleIdx++ // literal placeholder, not consulted
			if pos+8 > len(compressed) {
				return nil, ErrShortPayload
			}
			vals[i] = compressed[pos : pos+8]
			pos += 8
		case marshaltypes.ArgString:
			// filled in the second pass below
		case marshaltypes.ArgNone:
		default:
			return nil, ErrShortPayload
		}
	}

	for i, t := range argTypes {
		if t != marshaltypes.ArgString {
			continue
		}
		if pos+4 > len(compressed) {
			return nil, ErrShortPayload
		}
		length := binary.LittleEndian.Uint32(compressed[pos:])
		if pos+4+int(length) > len(compressed) {
			return nil, ErrShortPayload
		}
		vals[i] = compressed[pos : pos+4+int(length)]
		pos += 4 + int(length)
	}

	if pos != len(compressed) {
		return nil, ErrTrailingBytes
	}

	total := 0
	for _, v := range vals {
		total += len(v)
	}
	raw := make([]byte, 0, total)
	for _, v := range vals {
		raw = append(raw, v...)
	}
	return raw, nil
}
