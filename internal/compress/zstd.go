package compress

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Zstd is the Codec backed by github.com/klauspost/compress/zstd,
// preferred over LZ4 when the caller wants a better ratio at the cost of
// more CPU; both are wired so callers can choose per SPEC_FULL.md §4.7a.
type Zstd struct{}

var _ Codec = Zstd{}

func NewZstd() Zstd { return Zstd{} }

func (Zstd) Kind() Kind { return KindZstd }

// zstdEncoderPool and zstdDecoderPool hold warmed-up coders; klauspost's
// documentation recommends reuse to avoid per-call allocation.
var zstdEncoderPool = sync.Pool{
	New: func() any {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			panic(fmt.Sprintf("compress: failed to build zstd encoder: %v", err))
		}
		return enc
	},
}

var zstdDecoderPool = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("compress: failed to build zstd decoder: %v", err))
		}
		return dec
	},
}

func (Zstd) Compress(data []byte) ([]byte, error) {
	enc := zstdEncoderPool.Get().(*zstd.Encoder)
	defer zstdEncoderPool.Put(enc)
	return enc.EncodeAll(data, nil), nil
}

func (Zstd) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	dec := zstdDecoderPool.Get().(*zstd.Decoder)
	defer zstdDecoderPool.Put(dec)
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("compress: zstd decode: %w", err)
	}
	return out, nil
}
