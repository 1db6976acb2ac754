// Package serializer implements the versioned graph snapshot format.
//
// A graph serializes as a sequence of virtual keys, each a standalone
// byte payload small enough to stream through the host keyspace without
// holding the whole image in memory. Every key carries the graph header
// (counts, matrix shapes, multi-edge flags, schema) followed by tagged
// entity payloads; the decoder pre-allocates all stores and matrices
// from the first key and streams the rest.
//
// The current format version is 14. Decoders for versions 9 through 14
// share one code path; older snapshots are rejected.
package serializer

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// Writer encodes primitive snapshot fields onto a byte stream.
// Integers use varint encoding, floats are fixed-width little-endian,
// buffers are length-prefixed.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// WriteUnsigned writes a varint-encoded uint64.
func (e *Writer) WriteUnsigned(v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := e.w.Write(buf[:n])
	return errors.Wrap(err, "write unsigned")
}

// WriteSigned writes a zigzag varint-encoded int64.
func (e *Writer) WriteSigned(v int64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutVarint(buf[:], v)
	_, err := e.w.Write(buf[:n])
	return errors.Wrap(err, "write signed")
}

// WriteDouble writes a float64 as 8 little-endian bytes.
func (e *Writer) WriteDouble(v float64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	_, err := e.w.Write(buf[:])
	return errors.Wrap(err, "write double")
}

// WriteFloat writes a float32 as 4 little-endian bytes.
func (e *Writer) WriteFloat(v float32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
	_, err := e.w.Write(buf[:])
	return errors.Wrap(err, "write float")
}

// WriteBuffer writes a length-prefixed byte sequence.
func (e *Writer) WriteBuffer(b []byte) error {
	if err := e.WriteUnsigned(uint64(len(b))); err != nil {
		return err
	}
	_, err := e.w.Write(b)
	return errors.Wrap(err, "write buffer")
}

// WriteString writes s as a length-prefixed, NUL-terminated buffer.
func (e *Writer) WriteString(s string) error {
	return e.WriteBuffer(append([]byte(s), 0))
}

// Reader decodes primitive snapshot fields off a byte stream.
type Reader struct {
	r *byteReader
}

type byteReader struct {
	r io.Reader
}

func (b *byteReader) ReadByte() (byte, error) {
	var buf [1]byte
	_, err := io.ReadFull(b.r, buf[:])
	return buf[0], err
}

func (b *byteReader) Read(p []byte) (int, error) { return b.r.Read(p) }

// NewReader wraps r.
func NewReader(r io.Reader) *Reader { return &Reader{r: &byteReader{r: r}} }

// ReadUnsigned reads a varint-encoded uint64.
func (d *Reader) ReadUnsigned() (uint64, error) {
	v, err := binary.ReadUvarint(d.r)
	return v, errors.Wrap(err, "read unsigned")
}

// ReadSigned reads a zigzag varint-encoded int64.
func (d *Reader) ReadSigned() (int64, error) {
	v, err := binary.ReadVarint(d.r)
	return v, errors.Wrap(err, "read signed")
}

// ReadDouble reads a float64.
func (d *Reader) ReadDouble() (float64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return 0, errors.Wrap(err, "read double")
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[:])), nil
}

// ReadFloat reads a float32.
func (d *Reader) ReadFloat() (float32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return 0, errors.Wrap(err, "read float")
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[:])), nil
}

// ReadBuffer reads a length-prefixed byte sequence.
func (d *Reader) ReadBuffer() ([]byte, error) {
	n, err := d.ReadUnsigned()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, errors.Wrap(err, "read buffer")
	}
	return buf, nil
}

// ReadString reads a length-prefixed NUL-terminated string.
func (d *Reader) ReadString() (string, error) {
	buf, err := d.ReadBuffer()
	if err != nil {
		return "", err
	}
	if len(buf) > 0 && buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return string(buf), nil
}
