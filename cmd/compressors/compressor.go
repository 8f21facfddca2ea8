package compressors

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Compression type constants
const (
	Zstd = "zstd"
	LZ4  = "lz4"
	Gzip = "gzip"
	None = "none"
)

// ErrUnsupportedCompression is returned when an unsupported compression type is requested
var ErrUnsupportedCompression = errors.New("unsupported compression type")

// Compressor defines the interface for compression handlers
type Compressor interface {
	// Name returns the compression type (e.g., "zstd")
	Name() string

	// Compress compresses the input data
	Compress(data []byte, level int) ([]byte, error)

	// NewReader wraps r with a decompressing reader
	NewReader(r io.Reader) (io.ReadCloser, error)

	// Extension returns the file extension for this compression (e.g., ".zst", ".lz4", ".gz")
	Extension() string

	// DefaultLevel returns the default compression level
	DefaultLevel() int
}

// GetCompressor returns the appropriate compressor based on the compression string
func GetCompressor(compression string) (Compressor, error) {
	switch compression {
	case Zstd:
		return NewZstdCompressor(), nil
	case LZ4:
		return NewLZ4Compressor(), nil
	case Gzip:
		return NewGzipCompressor(), nil
	case None, "":
		return NewNoneCompressor(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, compression)
	}
}

// Detect picks a compressor from the extension of filename and returns the
// filename with that extension removed. Unknown extensions yield the no-op
// compressor and the unchanged filename.
func Detect(filename string) (Compressor, string) {
	lower := strings.ToLower(filename)
	for _, c := range []struct {
		ext        string
		compressor Compressor
	}{
		{".zst", NewZstdCompressor()},
		{".zstd", NewZstdCompressor()},
		{".lz4", NewLZ4Compressor()},
		{".gz", NewGzipCompressor()},
		{".gzip", NewGzipCompressor()},
	} {
		if strings.HasSuffix(lower, c.ext) {
			return c.compressor, filename[:len(filename)-len(c.ext)]
		}
	}
	return NewNoneCompressor(), filename
}

// Decompress reads all of data through c's decompressing reader
func Decompress(c Compressor, data []byte) ([]byte, error) {
	r, err := c.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s reader: %w", c.Name(), err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s data: %w", c.Name(), err)
	}
	return out, nil
}
