// Package marshal copies a producer's variadic logging arguments into a
// staging-buffer reservation, in the type order declared at site
// registration (spec.md §4.5).
//
// Grounded on the teacher's unsafe.Pointer-based zero-allocation tricks
// in internal/queue/runner.go (pointerFromMmap) and on the
// other_examples double-buffer async logger's stringToBytes helper, both
// used here for the same reason: avoid an allocation on the producer's
// hot path.
package marshal

import (
	"encoding/binary"
	"errors"
	"math"
	"unsafe"

	"github.com/nanolog/nanolog/internal/marshaltypes"
)

// MaxEntrySize is the largest payload the u16 data_length field in the
// raw entry header can address (spec.md §3, §4.5).
const MaxEntrySize = 65535

// ErrEntryTooLarge is returned when the computed entry size would
// exceed MaxEntrySize; the caller must not reserve staging space for it.
var ErrEntryTooLarge = errors.New("marshal: entry exceeds MaxEntrySize")

// ErrTypeMismatch is returned when a positional argument's dynamic type
// doesn't match the site's declared ArgType.
var ErrTypeMismatch = errors.New("marshal: argument type does not match site declaration")

// Size computes the exact number of bytes Marshal will write for the
// given typed arguments, without writing anything. Used by the facade to
// decide whether to reserve staging space at all (spec.md §4.5 overflow
// rule: the reservation is never made if the size exceeds MaxEntrySize).
func Size(argTypes []marshaltypes.ArgType, args []any) (int, error) {
	if len(argTypes) != len(args) {
		return 0, ErrTypeMismatch
	}
	n := 0
	for i, t := range argTypes {
		switch t {
		case marshaltypes.ArgInt32, marshaltypes.ArgUint32:
			n += 4
		case marshaltypes.ArgInt64, marshaltypes.ArgUint64, marshaltypes.ArgDouble, marshaltypes.ArgPointer:
			n += 8
		case marshaltypes.ArgString:
			s, err := asString(args[i])
			if err != nil {
				return 0, err
			}
			n += 4 + len(s)
		case marshaltypes.ArgNone:
			// no payload
		default:
			return 0, ErrTypeMismatch
		}
	}
	if n > MaxEntrySize {
		return 0, ErrEntryTooLarge
	}
	return n, nil
}

// Marshal writes each argument into dst in declaration order, per
// spec.md §4.5: native-width little-endian integers, 8-byte doubles
// verbatim, 8-byte pointers, and u32-length-prefixed strings (length=0
// for a nil/empty string, no terminator). dst must be exactly the size
// previously returned by Size.
func Marshal(dst []byte, argTypes []marshaltypes.ArgType, args []any) error {
	if len(argTypes) != len(args) {
		return ErrTypeMismatch
	}
	off := 0
	for i, t := range argTypes {
		switch t {
		case marshaltypes.ArgInt32:
			v, err := asInt32(args[i])
			if err != nil {
				return err
			}
			binary.LittleEndian.PutUint32(dst[off:], uint32(v))
			off += 4
		case marshaltypes.ArgUint32:
			v, err := asUint32(args[i])
			if err != nil {
				return err
			}
			binary.LittleEndian.PutUint32(dst[off:], v)
			off += 4
		case marshaltypes.ArgInt64:
			v, err := asInt64(args[i])
			if err != nil {
				return err
			}
			binary.LittleEndian.PutUint64(dst[off:], uint64(v))
			off += 8
		case marshaltypes.ArgUint64:
			v, err := asUint64(args[i])
			if err != nil {
				return err
			}
			binary.LittleEndian.PutUint64(dst[off:], v)
			off += 8
		case marshaltypes.ArgDouble:
			v, err := asFloat64(args[i])
			if err != nil {
				return err
			}
			binary.LittleEndian.PutUint64(dst[off:], math.Float64bits(v))
			off += 8
		case marshaltypes.ArgPointer:
			v, err := asUint64(args[i])
			if err != nil {
				return err
			}
			binary.LittleEndian.PutUint64(dst[off:], v)
			off += 8
		case marshaltypes.ArgString:
			s, err := asString(args[i])
			if err != nil {
				return err
			}
			binary.LittleEndian.PutUint32(dst[off:], uint32(len(s)))
			off += 4
			copy(dst[off:], stringToBytes(s))
			off += len(s)
		case marshaltypes.ArgNone:
			// nothing to write
		default:
			return ErrTypeMismatch
		}
	}
	return nil
}

// stringToBytes views s's backing array as a byte slice without
// allocating. The returned slice must not be mutated and must not
// outlive s.
func stringToBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

func asInt32(v any) (int32, error) {
	switch x := v.(type) {
	case int32:
		return x, nil
	case int:
		return int32(x), nil
	}
	return 0, ErrTypeMismatch
}

func asUint32(v any) (uint32, error) {
	switch x := v.(type) {
	case uint32:
		return x, nil
	case int:
		return uint32(x), nil
	case uint:
		return uint32(x), nil
	}
	return 0, ErrTypeMismatch
}

func asInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	}
	return 0, ErrTypeMismatch
}

func asUint64(v any) (uint64, error) {
	switch x := v.(type) {
	case uint64:
		return x, nil
	case uintptr:
		return uint64(x), nil
	case unsafe.Pointer:
		return uint64(uintptr(x)), nil
	case int:
		return uint64(x), nil
	case uint:
		return uint64(x), nil
	}
	return 0, ErrTypeMismatch
}

func asFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	}
	return 0, ErrTypeMismatch
}

func asString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case nil:
		return "", nil
	}
	return "", ErrTypeMismatch
}
