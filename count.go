package multiparse

import (
	"bytes"
	"fmt"
	"io"
)

// countChunkSize is the block size used by CountLines.
const countChunkSize = 256 << 10

// CountLines reports the number of line terminators in the logical contents
// of the file at path, decompressing transparently.  It is a plain
// sequential scan with no per-line allocation, used to size up the input
// before a run; the pipeline reads the file again independently.
func CountLines(path string) (uint64, error) {
	r, err := Open(path)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	buf := make([]byte, countChunkSize)
	var total uint64
	for {
		n, err := r.Read(buf)
		total += uint64(bytes.Count(buf[:n], lineTerminator))
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, fmt.Errorf("count %s: %w", path, err)
		}
	}
}

var lineTerminator = []byte{'\n'}
