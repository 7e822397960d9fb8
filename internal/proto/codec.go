package proto

import (
	"bytes"
	"errors"
	"io"
	"strings"
)

// Framing modes.
const (
	FramingRaw  = "raw"
	FramingLine = "line"
)

// Decoder yields successive frames from a byte stream.
type Decoder interface {
	Next() (string, error)
}

// NewDecoder returns a decoder for the framing mode. Unknown modes fall back to line framing.
func NewDecoder(framing string, r io.Reader, maxFrame int) Decoder {
	if framing == FramingRaw {
		return &rawDecoder{r: r, buf: make([]byte, maxFrame)}
	}
	return &lineDecoder{r: r, max: maxFrame, chunk: make([]byte, 4096)}
}

// Encode renders frame for the wire in the given framing mode.
func Encode(framing, frame string) []byte {
	if framing == FramingRaw {
		return []byte(frame)
	}
	frame = strings.ReplaceAll(frame, "\r", "")
	return []byte(strings.ReplaceAll(frame, "\n", " ") + "\n")
}

// rawDecoder treats every successful Read as one frame.
type rawDecoder struct {
	r   io.Reader
	buf []byte
	err error
}

func (d *rawDecoder) Next() (string, error) {
	if d.err != nil {
		err := d.err
		d.err = nil
		return "", err
	}
	for {
		n, err := d.r.Read(d.buf)
		if n > 0 {
			// hand the data out first and surface err on the next call
			d.err = err
			return DecodeText(d.buf[:n]), nil
		}
		if err != nil {
			return "", err
		}
	}
}

// lineDecoder splits on '\n'. Partial lines survive read errors such as
// deadline expiry, so a timed out read loses no data.
type lineDecoder struct {
	r        io.Reader
	max      int
	pending  []byte
	chunk    []byte
	err      error
	skipping bool // dropping the tail of an oversized line
}

func (d *lineDecoder) Next() (string, error) {
	for {
		if d.skipping {
			if i := bytes.IndexByte(d.pending, '\n'); i >= 0 {
				d.pending = d.pending[i+1:]
				d.skipping = false
				continue
			}
			d.pending = d.pending[:0]
		}
		if i := bytes.IndexByte(d.pending, '\n'); i >= 0 {
			if i > d.max {
				d.pending = d.pending[i+1:]
				return "", ErrFrameTooLarge
			}
			line := bytes.TrimSuffix(d.pending[:i], []byte("\r"))
			frame := DecodeText(line)
			d.pending = d.pending[i+1:]
			return frame, nil
		}
		if len(d.pending) > d.max {
			d.pending = d.pending[:0]
			d.skipping = true
			return "", ErrFrameTooLarge
		}
		if d.err != nil {
			err := d.err
			d.err = nil
			if errors.Is(err, io.EOF) && len(d.pending) > 0 {
				frame := DecodeText(d.pending)
				d.pending = nil
				d.err = err
				return frame, nil
			}
			return "", err
		}

		n, err := d.r.Read(d.chunk)
		d.pending = append(d.pending, d.chunk[:n]...)
		d.err = err
	}
}

// DecodeText turns raw frame bytes into text, replacing invalid UTF-8.
func DecodeText(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}
