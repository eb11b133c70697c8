package protocol

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/andybalholm/brotli"
)

// Compression is the one-byte discriminant prefixing every frame exchanged
// with the server, identifying how the remainder of the frame is packed.
type Compression byte

const (
	CompressionNone   Compression = 0
	CompressionBrotli Compression = 1
	CompressionGzip   Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionBrotli:
		return "brotli"
	case CompressionGzip:
		return "gzip"
	default:
		return "unknown"
	}
}

// DecodeFrame strips the compression discriminant from raw and returns the
// decompressed payload underneath it.
func DecodeFrame(raw []byte) ([]byte, error) {
	if len(raw) < 1 {
		return nil, ErrEmptyFrame
	}

	switch Compression(raw[0]) {
	case CompressionNone:
		return raw[1:], nil
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(raw[1:]))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case CompressionBrotli:
		r := brotli.NewReader(bytes.NewReader(raw[1:]))
		return io.ReadAll(r)
	default:
		return nil, ErrUnknownCompression
	}
}

// EncodeFrame compresses payload with algo and prepends the discriminant
// byte, producing a complete outbound frame.
func EncodeFrame(algo Compression, payload []byte) ([]byte, error) {
	switch algo {
	case CompressionNone:
		out := make([]byte, 0, len(payload)+1)
		out = append(out, byte(CompressionNone))
		return append(out, payload...), nil

	case CompressionGzip:
		var buf bytes.Buffer
		buf.WriteByte(byte(CompressionGzip))
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(payload); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case CompressionBrotli:
		var buf bytes.Buffer
		buf.WriteByte(byte(CompressionBrotli))
		w := brotli.NewWriter(&buf)
		if _, err := w.Write(payload); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	default:
		return nil, ErrUnknownCompression
	}
}
