package compressors

import (
	"bytes"
	"testing"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		filename string
		want     string
		inner    string
	}{
		{"tree.parquet", None, "tree.parquet"},
		{"tree.parquet.zst", Zstd, "tree.parquet"},
		{"tree.csv.ZSTD", Zstd, "tree.csv"},
		{"tree.jsonl.lz4", LZ4, "tree.jsonl"},
		{"dir.gz/tree.csv.gz", Gzip, "dir.gz/tree.csv"},
		{"tree.jsonl.gzip", Gzip, "tree.jsonl"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			c, inner := Detect(tt.filename)
			if c.Name() != tt.want {
				t.Errorf("expected compressor %s, got %s", tt.want, c.Name())
			}
			if inner != tt.inner {
				t.Errorf("expected inner name %q, got %q", tt.inner, inner)
			}
		})
	}
}

func TestDecompressReversesCompress(t *testing.T) {
	payload := bytes.Repeat([]byte("x,y\n1.5,2.5\n"), 200)

	for _, name := range []string{Zstd, LZ4, Gzip, None} {
		t.Run(name, func(t *testing.T) {
			c, err := GetCompressor(name)
			if err != nil {
				t.Fatalf("GetCompressor(%s) failed: %v", name, err)
			}

			compressed, err := c.Compress(payload, c.DefaultLevel())
			if err != nil {
				t.Fatalf("compress failed: %v", err)
			}

			out, err := Decompress(c, compressed)
			if err != nil {
				t.Fatalf("decompress failed: %v", err)
			}
			if !bytes.Equal(out, payload) {
				t.Fatalf("round trip mismatch: got %d bytes, want %d", len(out), len(payload))
			}
		})
	}
}

func TestGetCompressorUnsupported(t *testing.T) {
	if _, err := GetCompressor("brotli"); err == nil {
		t.Fatal("expected error for unsupported compression")
	}
}
