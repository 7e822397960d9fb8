package proto

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"
)

// scriptedReader returns one scripted chunk or error per Read call.
type scriptedReader struct {
	steps []any
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	if len(r.steps) == 0 {
		return 0, io.EOF
	}
	step := r.steps[0]
	r.steps = r.steps[1:]
	switch v := step.(type) {
	case string:
		return copy(p, v), nil
	case error:
		return 0, v
	}
	return 0, nil
}

func TestLineDecoderSplitsAndKeepsPartialAcrossTimeout(t *testing.T) {
	r := &scriptedReader{steps: []any{
		"__USERNAME__:bob\n__IC",
		os.ErrDeadlineExceeded,
		"ON__:😊\r\nhi",
	}}
	dec := NewDecoder(FramingLine, r, 64)

	mustNext(t, dec, "__USERNAME__:bob")
	if _, err := dec.Next(); !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	mustNext(t, dec, "__ICON__:😊")
	mustNext(t, dec, "hi")
	if _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestLineDecoderRejectsOversizedFrame(t *testing.T) {
	dec := NewDecoder(FramingLine, strings.NewReader(strings.Repeat("x", 32)+"\n"), 8)
	if _, err := dec.Next(); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestRawDecoderOneReadOneFrame(t *testing.T) {
	r := &scriptedReader{steps: []any{"__USERNAME__:bob", "hello\nworld"}}
	dec := NewDecoder(FramingRaw, r, 4096)

	mustNext(t, dec, "__USERNAME__:bob")
	mustNext(t, dec, "hello\nworld")
	if _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestEncode(t *testing.T) {
	if got := string(Encode(FramingLine, "a\nb")); got != "a b\n" {
		t.Fatalf("line encode: %q", got)
	}
	if got := string(Encode(FramingRaw, "a\nb")); got != "a\nb" {
		t.Fatalf("raw encode: %q", got)
	}
}

func mustNext(t *testing.T, dec Decoder, want string) {
	t.Helper()
	got, err := dec.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got != want {
		t.Fatalf("frame = %q, want %q", got, want)
	}
}

func TestLineDecoderResyncsAfterOversizedLine(t *testing.T) {
	r := &scriptedReader{steps: []any{strings.Repeat("x", 12), "yyy\nok\n"}}
	dec := NewDecoder(FramingLine, r, 8)

	if _, err := dec.Next(); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
	mustNext(t, dec, "ok")
}
