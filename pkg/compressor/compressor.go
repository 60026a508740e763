// Package compressor provides the optional byte-string transforms applied
// between transcoding and encryption. Both implementations expose the
// symmetric Encode/Decode pair the mapper pipeline expects.
package compressor

import (
	"bytes"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/Unholster/eventsourcing/pkg/domain"
)

// Topic strings used by the COMPRESSOR_TOPIC configuration input.
const (
	TopicZstd = "zstd"
	TopicGzip = "gzip"
)

// Zstd compresses with Zstandard. Safe for concurrent use.
type Zstd struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstd creates a Zstandard compressor at the default level.
func NewZstd() (*Zstd, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &Zstd{enc: enc, dec: dec}, nil
}

// Encode compresses data.
func (z *Zstd) Encode(data []byte) ([]byte, error) {
	return z.enc.EncodeAll(data, nil), nil
}

// Decode decompresses data. Corrupt input fails the integrity contract.
func (z *Zstd) Decode(data []byte) ([]byte, error) {
	out, err := z.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, &domain.IntegrityError{Op: "zstd decompress", Err: err}
	}
	return out, nil
}

// Gzip compresses with gzip. Safe for concurrent use.
type Gzip struct {
	mu sync.Mutex
	w  *gzip.Writer
}

// NewGzip creates a gzip compressor at the default level.
func NewGzip() *Gzip {
	return &Gzip{w: gzip.NewWriter(io.Discard)}
}

// Encode compresses data.
func (g *Gzip) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	g.mu.Lock()
	defer g.mu.Unlock()
	g.w.Reset(&buf)
	if _, err := g.w.Write(data); err != nil {
		return nil, err
	}
	if err := g.w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode decompresses data. Corrupt input fails the integrity contract.
func (g *Gzip) Decode(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, &domain.IntegrityError{Op: "gzip decompress", Err: err}
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, &domain.IntegrityError{Op: "gzip decompress", Err: err}
	}
	return out, nil
}
