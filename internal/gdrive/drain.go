package gdrive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// drainChunkSize is the read size between progress callbacks.
const drainChunkSize = 256 * 1024

// ProgressFunc receives cumulative bytes read and the expected total
// (0 when unknown, as for exports).
type ProgressFunc func(done, total int64)

// Drain reads r to EOF into memory, calling progress after every chunk.
// On error the partial buffer is discarded.
func Drain(r io.Reader, total int64, progress ProgressFunc) ([]byte, error) {
	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(total))
	}

	chunk := make([]byte, drainChunkSize)

	var done int64

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			done += int64(n)

			if progress != nil {
				progress(done, total)
			}
		}

		if errors.Is(err, io.EOF) {
			return buf.Bytes(), nil
		}

		if err != nil {
			return nil, fmt.Errorf("gdrive: reading stream after %d bytes: %w", done, err)
		}
	}
}
