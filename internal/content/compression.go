// internal/content/compression.go
package content

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic starts every zstd frame. An object envelope always starts with
// an ASCII kind tag, so the two can never be confused.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// CompressionOptions configures zstd encoding of object files.
type CompressionOptions struct {
	// Enabled compresses newly written objects. Compressed objects are
	// read back regardless.
	Enabled bool
	// MinSize is the smallest envelope, in bytes, worth compressing.
	MinSize int
	// Level follows zstd's numbering (1 fastest, 19 smallest).
	Level int
}

// objectCodec turns envelopes into file bytes and back. The zstd encoder
// and decoder are only used through EncodeAll/DecodeAll, which are safe
// for concurrent use.
type objectCodec struct {
	enabled bool
	minSize int
	enc     *zstd.Encoder
	dec     *zstd.Decoder
}

func newObjectCodec(opts CompressionOptions) (*objectCodec, error) {
	level := opts.Level
	if level <= 0 {
		level = 3
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	c := &objectCodec{enabled: opts.Enabled, minSize: opts.MinSize, dec: dec}

	if opts.Enabled {
		c.enc, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
			zstd.WithEncoderConcurrency(1),
		)
		if err != nil {
			dec.Close()
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
	}
	return c, nil
}

// encode returns the bytes written to disk for an envelope.
func (c *objectCodec) encode(envelope []byte) []byte {
	if !c.enabled || len(envelope) < c.minSize {
		return envelope
	}
	return c.enc.EncodeAll(envelope, make([]byte, 0, len(envelope)/2))
}

// decode returns the envelope held in bytes read from disk.
func (c *objectCodec) decode(stored []byte) ([]byte, error) {
	if !bytes.HasPrefix(stored, zstdMagic) {
		return stored, nil
	}
	envelope, err := c.dec.DecodeAll(stored, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing object: %w", err)
	}
	return envelope, nil
}
