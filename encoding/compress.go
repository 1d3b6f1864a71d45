package encoding

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Frame markers so readers can tell compressed and raw payloads apart.
const (
	frameRaw  byte = 0x00
	frameZstd byte = 0x01
)

var ErrUnknownFrame = errors.New("unknown payload frame")

// Compress frames data, compressing it with zstd when level > 0.
// Levels 1-4 map to zstd fastest, default, better and best.
func Compress(data []byte, level int) ([]byte, error) {
	if level <= 0 {
		return append([]byte{frameRaw}, data...), nil
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(levelToZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer enc.Close()

	out := make([]byte, 1, len(data)/2+1)
	out[0] = frameZstd
	return enc.EncodeAll(data, out), nil
}

// Decompress reverses Compress.
func Decompress(framed []byte) ([]byte, error) {
	if len(framed) == 0 {
		return nil, ErrUnknownFrame
	}

	switch framed[0] {
	case frameRaw:
		return bytes.Clone(framed[1:]), nil
	case frameZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		defer dec.Close()
		return dec.DecodeAll(framed[1:], nil)
	}
	return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownFrame, framed[0])
}

func levelToZstd(level int) zstd.EncoderLevel {
	switch {
	case level == 1:
		return zstd.SpeedFastest
	case level == 2:
		return zstd.SpeedDefault
	case level == 3:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}
