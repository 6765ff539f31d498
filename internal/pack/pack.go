// Package pack implements the variable-byte integer codec and nibble
// descriptors used to compress log-entry argument payloads.
package pack

import "errors"

// ErrCorruptNibble is returned when a decoded nibble names a byte count
// outside {1..8} — the payload is either corrupt or was decoded against
// the wrong site metadata.
var ErrCorruptNibble = errors.New("pack: nibble names invalid byte count")

// MinBytesUnsigned returns the minimum number of little-endian bytes
// (1..8) needed to hold v.
func MinBytesUnsigned(v uint64) int {
	n := 1
	for v >= 1<<8 {
		v >>= 8
		n++
	}
	return n
}

// PutUvarLE writes the low n little-endian bytes of v into dst and
// returns n. dst must have at least n bytes of room.
func PutUvarLE(dst []byte, v uint64, n int) {
	for i := 0; i < n; i++ {
		dst[i] = byte(v)
		v >>= 8
	}
}

// GetUvarLE reads n little-endian bytes from src and zero-extends them.
// n must be in {1..8}; GetUvarLE does not itself validate this (callers
// decoding a nibble-derived n should check via ErrCorruptNibble first).
func GetUvarLE(src []byte, n int) uint64 {
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = (v << 8) | uint64(src[i])
	}
	return v
}

// EncodeUnsigned appends the minimal little-endian encoding of v to dst
// and returns the new slice along with the byte count written.
func EncodeUnsigned(dst []byte, v uint64) ([]byte, int) {
	n := MinBytesUnsigned(v)
	start := len(dst)
	dst = append(dst, make([]byte, n)...)
	PutUvarLE(dst[start:], v, n)
	return dst, n
}

// DecodeUnsigned reads n bytes from src starting at off and returns the
// zero-extended value. n must satisfy 1 <= n <= 8.
func DecodeUnsigned(src []byte, off, n int) (uint64, error) {
	if n < 1 || n > 8 {
		return 0, ErrCorruptNibble
	}
	if off+n > len(src) {
		return 0, errors.New("pack: short buffer")
	}
	return GetUvarLE(src[off:off+n], n), nil
}

// EncodeSigned splits v into (magnitude, sign) and appends the minimal
// little-endian magnitude encoding to dst. It returns the new slice, the
// byte count written, and the sign flag (true if negative).
func EncodeSigned(dst []byte, v int64) ([]byte, int, bool) {
	neg := v < 0
	var mag uint64
	if neg {
		// Two's-complement negation safe for math.MinInt64: casting to
		// uint64 first avoids signed overflow on negation.
		mag = uint64(-(v + 1)) + 1
	} else {
		mag = uint64(v)
	}
	dst, n := EncodeUnsigned(dst, mag)
	return dst, n, neg
}

// DecodeSigned reads n magnitude bytes from src at off and re-applies the
// sign flag.
func DecodeSigned(src []byte, off, n int, neg bool) (int64, error) {
	mag, err := DecodeUnsigned(src, off, n)
	if err != nil {
		return 0, err
	}
	if !neg {
		return int64(mag), nil
	}
	return -int64(mag-1) - 1, nil
}

// Nibble descriptor layout (spec.md §4.1):
//   unsigned: low 4 bits = n (1..8)
//   signed:   low 3 bits = n (1..8, n == 8 stored as 0), bit 3 = sign flag
//   double:   literal constant 8 (verbatim, uncompressed storage)

// UnsignedNibble returns the descriptor nibble for an unsigned/pointer
// argument encoded in n bytes.
func UnsignedNibble(n int) byte { return byte(n) & 0x0F }

// SignedNibble returns the descriptor nibble for a signed argument
// encoded in n bytes with the given sign.
func SignedNibble(n int, neg bool) byte {
	b := byte(n) & 0x07
	if neg {
		b |= 0x08
	}
	return b
}

// DoubleNibble is the literal placeholder nibble for verbatim doubles.
const DoubleNibble byte = 8

// SplitSignedNibble decodes a signed nibble into (n, sign); a size field
// of 0 stands for n == 8.
func SplitSignedNibble(nib byte) (n int, neg bool) {
	n = int(nib & 0x07)
	if n == 0 {
		n = 8
	}
	return n, nib&0x08 != 0
}

// SplitUnsignedNibble decodes an unsigned nibble into n.
func SplitUnsignedNibble(nib byte) int { return int(nib & 0x0F) }

// DescriptorBytes returns ceil(nonStringArgs/2), the number of descriptor
// bytes needed to hold one nibble per non-string argument.
func DescriptorBytes(nonStringArgs int) int {
	return (nonStringArgs + 1) / 2
}

// PutNibble sets the i'th nibble (0-indexed, low nibble first within each
// byte) of desc to v.
func PutNibble(desc []byte, i int, v byte) {
	byteIdx := i / 2
	if i%2 == 0 {
		desc[byteIdx] = (desc[byteIdx] &^ 0x0F) | (v & 0x0F)
	} else {
		desc[byteIdx] = (desc[byteIdx] &^ 0xF0) | ((v & 0x0F) << 4)
	}
}

// GetNibble reads the i'th nibble from desc.
func GetNibble(desc []byte, i int) byte {
	byteIdx := i / 2
	if i%2 == 0 {
		return desc[byteIdx] & 0x0F
	}
	return (desc[byteIdx] >> 4) & 0x0F
}
