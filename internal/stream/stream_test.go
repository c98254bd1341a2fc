package stream

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/starford/othala/internal/apperr"
)

func TestConsumeCopiesBody(t *testing.T) {
	var dst bytes.Buffer
	src := strings.NewReader("hello world")

	n, err := Consume(&dst, src, 11, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 11 || dst.String() != "hello world" {
		t.Errorf("copied %d bytes, body %q", n, dst.String())
	}
}

func TestConsumeDeclaredTooLarge(t *testing.T) {
	var dst bytes.Buffer
	src := strings.NewReader("0123456789")

	n, err := Consume(&dst, src, 10, 5, nil)
	if !errors.Is(err, apperr.ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
	if n != 0 || dst.Len() != 0 {
		t.Errorf("wrote %d bytes before the precheck, want 0", dst.Len())
	}
}

func TestConsumeLyingContentLength(t *testing.T) {
	var dst bytes.Buffer
	body := strings.Repeat("x", 64*1024)
	src := strings.NewReader(body)

	// Declared size fits the limit, actual body does not.
	_, err := Consume(&dst, src, 10, 1024, nil)
	if !errors.Is(err, apperr.ErrTooLarge) {
		t.Fatalf("err = %v, want mid-stream ErrTooLarge", err)
	}
	if dst.Len() >= len(body) {
		t.Error("whole body was consumed despite the limit")
	}
}

func TestConsumeUnknownLengthIgnoresLimit(t *testing.T) {
	var dst bytes.Buffer
	body := strings.Repeat("x", 2048)

	n, err := Consume(&dst, strings.NewReader(body), -1, 100, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(body)) {
		t.Errorf("copied %d bytes, want the full body", n)
	}
}

func TestConsumeHook(t *testing.T) {
	var dst bytes.Buffer
	body := strings.Repeat("x", chunkSize+10)

	var calls int
	var last int64
	n, err := Consume(&dst, strings.NewReader(body), int64(len(body)), 0, func(written, total int64) {
		calls++
		last = written
		if total != int64(len(body)) {
			t.Errorf("hook total = %d, want %d", total, len(body))
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls < 2 {
		t.Errorf("hook fired %d times, want once per chunk", calls)
	}
	if last != n {
		t.Errorf("last hook count = %d, want %d", last, n)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestConsumeReadError(t *testing.T) {
	var dst bytes.Buffer
	_, err := Consume(&dst, failingReader{}, -1, 0, nil)
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("err = %v, want wrapped read error", err)
	}
}
