package multiparse

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Magic prefixes used to sniff compressed inputs.
var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Open returns a reader over the logical contents of the file at path.  A
// file starting with the gzip or zstd magic bytes is decompressed on the
// fly; anything else is read as is.  The returned reader is not buffered;
// callers doing line-oriented reads should wrap it themselves.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	magic := make([]byte, 4)
	n, err := io.ReadFull(f, magic)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		f.Close()
		return nil, fmt.Errorf("sniff %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("rewind %s: %w", path, err)
	}

	switch {
	case bytes.HasPrefix(magic[:n], gzipMagic):
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		return &decompressedFile{reader: gz, closer: gz, file: f}, nil
	case bytes.HasPrefix(magic[:n], zstdMagic):
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd %s: %w", path, err)
		}
		rc := zr.IOReadCloser()
		return &decompressedFile{reader: rc, closer: rc, file: f}, nil
	}
	return f, nil
}

// decompressedFile pairs a decompressor with the file underneath it so that
// Close releases both.
type decompressedFile struct {
	reader io.Reader
	closer io.Closer
	file   *os.File
}

func (d *decompressedFile) Read(p []byte) (int, error) {
	return d.reader.Read(p)
}

func (d *decompressedFile) Close() error {
	err := d.closer.Close()
	if ferr := d.file.Close(); err == nil {
		err = ferr
	}
	return err
}
