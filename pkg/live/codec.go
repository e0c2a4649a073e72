package live

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/recera/kgview/pkg/interaction"
)

// Encoder handles encoding of live protocol messages
type Encoder struct {
	w io.Writer
}

// NewEncoder creates a new encoder
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// WriteUvarint writes an unsigned varint
func (e *Encoder) WriteUvarint(v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := e.w.Write(buf[:n])
	return err
}

// WriteVarint writes a zig-zag signed varint
func (e *Encoder) WriteVarint(v int64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutVarint(buf[:], v)
	_, err := e.w.Write(buf[:n])
	return err
}

// WriteString writes a length-prefixed string
func (e *Encoder) WriteString(s string) error {
	if err := e.WriteUvarint(uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(e.w, s)
	return err
}

// WriteBytes writes raw bytes
func (e *Encoder) WriteBytes(b []byte) error {
	_, err := e.w.Write(b)
	return err
}

// Decoder handles decoding of live protocol messages
type Decoder struct {
	r *bytes.Reader
}

// NewDecoder creates a new decoder over data.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{r: bytes.NewReader(data)}
}

// ReadUvarint reads an unsigned varint
func (d *Decoder) ReadUvarint() (uint64, error) {
	return binary.ReadUvarint(d.r)
}

// ReadVarint reads a zig-zag signed varint
func (d *Decoder) ReadVarint() (int64, error) {
	return binary.ReadVarint(d.r)
}

// ReadByte implements io.ByteReader
func (d *Decoder) ReadByte() (byte, error) {
	return d.r.ReadByte()
}

// ReadString reads a length-prefixed string
func (d *Decoder) ReadString() (string, error) {
	length, err := d.ReadUvarint()
	if err != nil {
		return "", err
	}
	if length > maxString {
		return "", fmt.Errorf("string of %d bytes exceeds limit", length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// EncodePointer encodes a pointer event:
// [FrameEvent][kind][varint x][varint y][varint deltaY], coordinates in
// hundredths of a pixel. It is the Go counterpart of the page script's
// pointer encoder and is used by Go clients and tests.
func EncodePointer(ev interaction.Event) []byte {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.WriteBytes([]byte{byte(FrameEvent), byte(ev.Kind)})
	enc.WriteVarint(fixed(ev.X))
	enc.WriteVarint(fixed(ev.Y))
	enc.WriteVarint(fixed(ev.DeltaY))
	return buf.Bytes()
}

// DecodePointer decodes a frame written by EncodePointer.
func DecodePointer(data []byte) (interaction.Event, error) {
	if len(data) < 2 {
		return interaction.Event{}, errors.New("event data too short")
	}
	if data[0] != byte(FrameEvent) {
		return interaction.Event{}, errors.New("not an event frame")
	}
	kind := interaction.Kind(data[1])
	if kind < interaction.Down || kind > interaction.Leave {
		return interaction.Event{}, fmt.Errorf("unknown pointer kind %d", data[1])
	}

	dec := NewDecoder(data[2:])
	var vals [3]int64
	for i := range vals {
		v, err := dec.ReadVarint()
		if err != nil {
			return interaction.Event{}, fmt.Errorf("failed to decode coordinate: %w", err)
		}
		vals[i] = v
	}
	return interaction.Event{
		Kind:   kind,
		X:      float64(vals[0]) / coordScale,
		Y:      float64(vals[1]) / coordScale,
		DeltaY: float64(vals[2]) / coordScale,
	}, nil
}

// EncodeControl encodes a control message with optional uvarint arguments.
func EncodeControl(name string, args ...uint64) []byte {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.WriteBytes([]byte{byte(FrameControl)})
	enc.WriteString(name)
	for _, a := range args {
		enc.WriteUvarint(a)
	}
	return buf.Bytes()
}

// DecodeControl returns the name of a control frame and a decoder
// positioned at its arguments.
func DecodeControl(data []byte) (string, *Decoder, error) {
	if len(data) == 0 || data[0] != byte(FrameControl) {
		return "", nil, errors.New("not a control frame")
	}
	dec := NewDecoder(data[1:])
	name, err := dec.ReadString()
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode control message type: %w", err)
	}
	return name, dec, nil
}

func fixed(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	v = math.Round(v * coordScale)
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int64(v)
}
