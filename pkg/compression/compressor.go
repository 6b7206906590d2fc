// Package compression shrinks run transcripts before they are stored.
package compression

import (
	"bytes"
	"io"
	"sort"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/meftunca/rmqcluster/pkg/config"
	"github.com/meftunca/rmqcluster/pkg/types"
)

// Compressor defines the interface for compression algorithms
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Name() config.CompressionType
}

// CompressorFactory holds one compressor per algorithm
type CompressorFactory struct {
	compressors map[config.CompressionType]Compressor
	mutex       sync.RWMutex
}

// NewCompressorFactory creates a factory that only knows "none"
func NewCompressorFactory() *CompressorFactory {
	f := &CompressorFactory{
		compressors: make(map[config.CompressionType]Compressor),
	}
	f.RegisterCompressor(NoCompressor{})
	return f
}

// NewDefaultCompressorFactory creates a factory with every algorithm registered
func NewDefaultCompressorFactory(level int) (*CompressorFactory, error) {
	f := NewCompressorFactory()
	if err := f.InitializeDefaultCompressors(level); err != nil {
		return nil, err
	}
	return f, nil
}

// RegisterCompressor registers a compressor under its name
func (f *CompressorFactory) RegisterCompressor(c Compressor) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.compressors[c.Name()] = c
}

// GetCompressor returns the compressor for compType. An empty type means none.
func (f *CompressorFactory) GetCompressor(compType config.CompressionType) (Compressor, error) {
	if compType == "" {
		compType = config.CompressionNone
	}

	f.mutex.RLock()
	defer f.mutex.RUnlock()

	c, ok := f.compressors[compType]
	if !ok {
		return nil, types.NewClusterError(types.ErrCodeCompressionError, "unsupported compression type").
			WithDetail("type", compType)
	}
	return c, nil
}

// GetAvailableCompressors returns every registered algorithm, sorted
func (f *CompressorFactory) GetAvailableCompressors() []config.CompressionType {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	out := make([]config.CompressionType, 0, len(f.compressors))
	for t := range f.compressors {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// InitializeDefaultCompressors registers every built-in algorithm. level is
// interpreted per algorithm; zero picks each one's default.
func (f *CompressorFactory) InitializeDefaultCompressors(level int) error {
	z, err := NewZstdCompressor(level)
	if err != nil {
		return err
	}
	f.RegisterCompressor(z)
	f.RegisterCompressor(LZ4Compressor{})
	f.RegisterCompressor(SnappyCompressor{})
	f.RegisterCompressor(NewGzipCompressor(level))
	f.RegisterCompressor(NewBrotliCompressor(level))
	return nil
}

// NoCompressor passes data through unchanged
type NoCompressor struct{}

func (NoCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (NoCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }
func (NoCompressor) Name() config.CompressionType           { return config.CompressionNone }

// ZstdCompressor implements Zstandard compression. EncodeAll and DecodeAll
// are safe for concurrent use, so a single encoder and decoder are shared.
type ZstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdCompressor creates a new Zstd compressor
func NewZstdCompressor(level int) (*ZstdCompressor, error) {
	opts := []zstd.EOption{zstd.WithZeroFrames(true)}
	if level > 0 {
		opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	}

	encoder, err := zstd.NewWriter(nil, opts...)
	if err != nil {
		return nil, types.ErrCompressionError("zstd", err)
	}

	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(64<<20))
	if err != nil {
		encoder.Close()
		return nil, types.ErrCompressionError("zstd", err)
	}

	return &ZstdCompressor{encoder: encoder, decoder: decoder}, nil
}

func (z *ZstdCompressor) Compress(data []byte) ([]byte, error) {
	return z.encoder.EncodeAll(data, nil), nil
}

func (z *ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	result, err := z.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, types.ErrDecompressionError("zstd", err)
	}
	return result, nil
}

func (z *ZstdCompressor) Name() config.CompressionType { return config.CompressionZstd }

// LZ4Compressor implements LZ4 frame compression
type LZ4Compressor struct{}

func (LZ4Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := lz4.NewWriter(&buf)

	if _, err := writer.Write(data); err != nil {
		return nil, types.ErrCompressionError("lz4", err)
	}
	if err := writer.Close(); err != nil {
		return nil, types.ErrCompressionError("lz4", err)
	}
	return buf.Bytes(), nil
}

func (LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, lz4.NewReader(bytes.NewReader(data))); err != nil {
		return nil, types.ErrDecompressionError("lz4", err)
	}
	return buf.Bytes(), nil
}

func (LZ4Compressor) Name() config.CompressionType { return config.CompressionLZ4 }

// SnappyCompressor implements Snappy block compression
type SnappyCompressor struct{}

func (SnappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (SnappyCompressor) Decompress(data []byte) ([]byte, error) {
	result, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, types.ErrDecompressionError("snappy", err)
	}
	return result, nil
}

func (SnappyCompressor) Name() config.CompressionType { return config.CompressionSnappy }

// GzipCompressor implements Gzip compression
type GzipCompressor struct {
	level int
}

func NewGzipCompressor(level int) *GzipCompressor {
	if level <= 0 || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	return &GzipCompressor{level: level}
}

func (g *GzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, g.level)
	if err != nil {
		return nil, types.ErrCompressionError("gzip", err)
	}

	if _, err := writer.Write(data); err != nil {
		return nil, types.ErrCompressionError("gzip", err)
	}
	if err := writer.Close(); err != nil {
		return nil, types.ErrCompressionError("gzip", err)
	}
	return buf.Bytes(), nil
}

func (g *GzipCompressor) Decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, types.ErrDecompressionError("gzip", err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, types.ErrDecompressionError("gzip", err)
	}
	return buf.Bytes(), nil
}

func (g *GzipCompressor) Name() config.CompressionType { return config.CompressionGzip }

// BrotliCompressor implements Brotli compression
type BrotliCompressor struct {
	level int
}

func NewBrotliCompressor(level int) *BrotliCompressor {
	if level <= 0 || level > brotli.BestCompression {
		level = brotli.DefaultCompression
	}
	return &BrotliCompressor{level: level}
}

func (b *BrotliCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := brotli.NewWriterLevel(&buf, b.level)

	if _, err := writer.Write(data); err != nil {
		return nil, types.ErrCompressionError("brotli", err)
	}
	if err := writer.Close(); err != nil {
		return nil, types.ErrCompressionError("brotli", err)
	}
	return buf.Bytes(), nil
}

func (b *BrotliCompressor) Decompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, brotli.NewReader(bytes.NewReader(data))); err != nil {
		return nil, types.ErrDecompressionError("brotli", err)
	}
	return buf.Bytes(), nil
}

func (b *BrotliCompressor) Name() config.CompressionType { return config.CompressionBrotli }
