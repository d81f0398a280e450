package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// Blob layout: one flag byte, a big-endian uint32 with the raw length, then
// the payload. Payloads lz4 cannot shrink are stored raw.
const (
	blobRaw byte = 0
	blobLZ4 byte = 1

	blobHeader = 5
)

var ErrCorruptBlob = errors.New("snapshot: corrupt content blob")

// Compress packs content into a blob.
func Compress(content []byte) ([]byte, error) {
	buf := make([]byte, blobHeader+lz4.CompressBlockBound(len(content)))
	var hashTable [1 << 16]int
	n, err := lz4.CompressBlock(content, buf[blobHeader:], hashTable[:])
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	binary.BigEndian.PutUint32(buf[1:blobHeader], uint32(len(content)))
	if n == 0 || n >= len(content) {
		buf[0] = blobRaw
		return append(buf[:blobHeader], content...), nil
	}
	buf[0] = blobLZ4
	return buf[:blobHeader+n], nil
}

// Decompress reverses Compress.
func Decompress(blob []byte) ([]byte, error) {
	if len(blob) < blobHeader {
		return nil, ErrCorruptBlob
	}
	size := int(binary.BigEndian.Uint32(blob[1:blobHeader]))
	payload := blob[blobHeader:]
	switch blob[0] {
	case blobRaw:
		if len(payload) != size {
			return nil, ErrCorruptBlob
		}
		return append([]byte(nil), payload...), nil
	case blobLZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 uncompress: %w", err)
		}
		if n != size {
			return nil, ErrCorruptBlob
		}
		return out, nil
	}
	return nil, ErrCorruptBlob
}
