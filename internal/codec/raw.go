package codec

import (
	"encoding/binary"
	"math"

	"github.com/nanolog/nanolog/internal/marshaltypes"
)

// DecodeRawValues parses a raw marshaled payload (spec.md §4.5 layout,
// also the layout Decompress reconstructs) into typed Go values in
// declaration order, for the decoder's text-substitution step.
func DecodeRawValues(raw []byte, argTypes []marshaltypes.ArgType) ([]any, error) {
	vals := make([]any, len(argTypes))
	off := 0
	for i, t := range argTypes {
		switch t {
		case marshaltypes.ArgInt32:
			if off+4 > len(raw) {
				return nil, ErrShortPayload
			}
			vals[i] = int32(binary.LittleEndian.Uint32(raw[off:]))
			off += 4
		case marshaltypes.ArgUint32:
			if off+4 > len(raw) {
				return nil, ErrShortPayload
			}
			vals[i] = binary.LittleEndian.Uint32(raw[off:])
			off += 4
		case marshaltypes.ArgInt64:
			if off+8 > len(raw) {
				return nil, ErrShortPayload
			}
			vals[i] = int64(binary.LittleEndian.Uint64(raw[off:]))
			off += 8
		case marshaltypes.ArgUint64:
			if off+8 > len(raw) {
				return nil, ErrShortPayload
			}
			vals[i] = binary.LittleEndian.Uint64(raw[off:])
			off += 8
		case marshaltypes.ArgPointer:
			if off+8 > len(raw) {
				return nil, ErrShortPayload
			}
			vals[i] = binary.LittleEndian.Uint64(raw[off:])
			off += 8
		case marshaltypes.ArgDouble:
			if off+8 > len(raw) {
				return nil, ErrShortPayload
			}
			vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[off:]))
			off += 8
		case marshaltypes.ArgString:
			if off+4 > len(raw) {
				return nil, ErrShortPayload
			}
			length := binary.LittleEndian.Uint32(raw[off:])
			off += 4
			if off+int(length) > len(raw) {
				return nil, ErrShortPayload
			}
			vals[i] = string(raw[off : off+int(length)])
			off += int(length)
		case marshaltypes.ArgNone:
			vals[i] = nil
		}
	}
	if off != len(raw) {
		return nil, ErrTrailingBytes
	}
	return vals, nil
}
