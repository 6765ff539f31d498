package compress

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"
)

// storedMarker/blockMarker are LZ4's own one-byte prefix distinguishing
// an incompressible block stored verbatim from a genuine LZ4 block.
// pierrec's raw block API reports "incompressible" by returning n==0
// rather than an error (see Compress below); without a marker that would
// leave the caller with no way to invert the call, which would in turn
// break wire.Writer's block-framing invariant that every compressed
// region it emits is self-describing. Keeping this internal to the codec
// means Compress/Decompress stay a true inverse pair under every input.
const (
	storedMarker byte = 0
	blockMarker  byte = 1
)

// lz4CompressorPool pools lz4.Compressor instances; the type carries
// internal match-finder state that is expensive to allocate per call.
var lz4CompressorPool = sync.Pool{
	New: func() any { return &lz4.Compressor{} },
}

// LZ4 is the Codec backed by github.com/pierrec/lz4/v4 block mode,
// chosen for flush-path block compression because its block API avoids
// the frame-header bookkeeping of the streaming API.
type LZ4 struct{}

var _ Codec = LZ4{}

func (LZ4) Kind() Kind { return KindLZ4 }

func (LZ4) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	dst := make([]byte, 1+lz4.CompressBlockBound(len(data)))

	c, _ := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(c)

	n, err := c.CompressBlock(data, dst[1:])
	if err != nil {
		return nil, err
	}
	if n == 0 || n >= len(data) {
		// Incompressible, or compression didn't shrink it: store verbatim
		// rather than erroring, so Compress/Decompress remain total.
		out := make([]byte, 1+len(data))
		out[0] = storedMarker
		copy(out[1:], data)
		return out, nil
	}
	dst[0] = blockMarker
	return dst[:1+n], nil
}

// Decompress reverses Compress. Since LZ4 blocks don't self-describe the
// decompressed length, callers must know the original size is bounded by
// a flush buffer's configured capacity; the adaptive doubling strategy
// below mirrors arloliu-mebo's handling of the same limitation.
func (LZ4) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	marker, body := data[0], data[1:]
	if marker == storedMarker {
		return body, nil
	}
	if marker != blockMarker {
		return nil, fmt.Errorf("compress: lz4 block has unrecognized marker byte %d", marker)
	}

	bufSize := len(body) * 4
	const maxSize = 256 * 1024 * 1024

	for bufSize <= maxSize {
		buf := make([]byte, bufSize)
		n, err := lz4.UncompressBlock(body, buf)
		if err != nil {
			if errors.Is(err, lz4.ErrInvalidSourceShortBuffer) && bufSize < maxSize {
				bufSize *= 2
				continue
			}
			return nil, err
		}
		return buf[:n], nil
	}
	return nil, lz4.ErrInvalidSourceShortBuffer
}
