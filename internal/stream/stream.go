// Package stream copies remote file bodies with size-limit enforcement and
// per-chunk consumption hooks. Progress rendering belongs to callers; this
// package only counts bytes.
package stream

import (
	"errors"
	"fmt"
	"io"

	"github.com/starford/othala/internal/apperr"
)

// chunkSize is the read granularity; the hook fires once per chunk.
const chunkSize = 32 * 1024

// Hook is notified after every chunk with the running byte count and the
// declared content length (-1 when the host did not report one).
type Hook func(written, total int64)

// Consume copies src into dst, enforcing maxSize.
//
// contentLength is the size declared by the host, or -1 when unknown.
// maxSize <= 0 means unlimited.
//
// When the declared size already exceeds maxSize, Consume returns
// apperr.ErrTooLarge without reading a single byte. When the size is
// unknown, the whole body is downloaded regardless of maxSize; the limit is
// only enforceable against a declared size. A declared size that turns out
// to be wrong is caught mid-stream.
func Consume(dst io.Writer, src io.Reader, contentLength, maxSize int64, hook Hook) (int64, error) {
	if maxSize > 0 && contentLength >= 0 && contentLength > maxSize {
		return 0, fmt.Errorf("stream: declared %d bytes exceeds limit %d: %w", contentLength, maxSize, apperr.ErrTooLarge)
	}

	buf := make([]byte, chunkSize)
	var written int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, fmt.Errorf("stream: write: %w", err)
			}
			written += int64(n)
			if hook != nil {
				hook(written, contentLength)
			}
			if maxSize > 0 && contentLength >= 0 && written > maxSize {
				return written, fmt.Errorf("stream: body exceeded limit %d after declaring %d: %w", maxSize, contentLength, apperr.ErrTooLarge)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return written, nil
			}
			return written, fmt.Errorf("stream: read: %w", readErr)
		}
	}
}
