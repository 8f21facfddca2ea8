package compressors

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// LZ4Compressor handles LZ4 compression
type LZ4Compressor struct{}

// NewLZ4Compressor creates a new LZ4 compressor
func NewLZ4Compressor() *LZ4Compressor {
	return &LZ4Compressor{}
}

// Name returns the compression type
func (c *LZ4Compressor) Name() string {
	return LZ4
}

// Compress compresses data using LZ4
func (c *LZ4Compressor) Compress(data []byte, level int) ([]byte, error) {
	var buffer bytes.Buffer

	writer := lz4.NewWriter(&buffer)

	// Levels 1-9 select lz4.Level1 through lz4.Level9, anything else is Fast
	if level >= 1 && level <= 9 {
		if err := writer.Apply(lz4.CompressionLevelOption(lz4.Level1 << (level - 1))); err != nil {
			return nil, fmt.Errorf("failed to apply compression level: %w", err)
		}
	}

	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close lz4 writer: %w", err)
	}

	return buffer.Bytes(), nil
}

// NewReader wraps r with an lz4 frame reader
func (c *LZ4Compressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

// Extension returns the file extension for LZ4 compression
func (c *LZ4Compressor) Extension() string {
	return ".lz4"
}

// DefaultLevel returns the default compression level for LZ4
func (c *LZ4Compressor) DefaultLevel() int {
	return 1 // Fast compression
}
