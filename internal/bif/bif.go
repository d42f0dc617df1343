package bif

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"time"

	"previewd/internal/services"
)

// Magic is the fixed BIF signature.
var Magic = [8]byte{0x89, 0x42, 0x49, 0x46, 0x0D, 0x0A, 0x1A, 0x0A}

const (
	// Version is the only BIF format version previewd writes or reads.
	Version = 0

	headerSize = 64
	entrySize  = 8

	// terminator marks the final index row; its offset field records the
	// total artifact size.
	terminator = 0xFFFFFFFF
)

// Frame is one still image with its position on the media timeline.
type Frame struct {
	Timestamp time.Duration
	Data      []byte
}

// Encode serializes frames into the BIF artifact format: a 64-byte header,
// an index table of (timestamp, offset) rows terminated by a sentinel row,
// then the concatenated image payloads. Output is deterministic for a given
// input sequence.
func Encode(w io.Writer, frames []Frame, interval time.Duration) error {
	if len(frames) == 0 {
		return services.Wrap(services.ErrValidation, "bif", "encode", "no frames to encode", nil)
	}
	if interval <= 0 {
		return services.Wrap(services.ErrValidation, "bif", "encode", "interval must be positive", nil)
	}

	ordered := make([]Frame, len(frames))
	copy(ordered, frames)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp < ordered[j].Timestamp
	})

	header := make([]byte, headerSize)
	copy(header, Magic[:])
	binary.LittleEndian.PutUint32(header[8:], Version)
	binary.LittleEndian.PutUint32(header[12:], uint32(len(ordered)))
	binary.LittleEndian.PutUint32(header[16:], uint32(interval.Milliseconds()))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	tableSize := entrySize * (len(ordered) + 1)
	offset := uint32(headerSize + tableSize)

	entry := make([]byte, entrySize)
	for _, frame := range ordered {
		binary.LittleEndian.PutUint32(entry[0:], uint32(frame.Timestamp.Milliseconds()))
		binary.LittleEndian.PutUint32(entry[4:], offset)
		if _, err := w.Write(entry); err != nil {
			return fmt.Errorf("write index entry: %w", err)
		}
		offset += uint32(len(frame.Data))
	}
	binary.LittleEndian.PutUint32(entry[0:], terminator)
	binary.LittleEndian.PutUint32(entry[4:], offset)
	if _, err := w.Write(entry); err != nil {
		return fmt.Errorf("write index terminator: %w", err)
	}

	for _, frame := range ordered {
		if _, err := w.Write(frame.Data); err != nil {
			return fmt.Errorf("write payload: %w", err)
		}
	}
	return nil
}

// EncodeBytes is Encode into a fresh byte slice.
func EncodeBytes(frames []Frame, interval time.Duration) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(headerSize + entrySize*(len(frames)+1))
	if err := Encode(&buf, frames, interval); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a BIF artifact back into its frame sequence and sampling
// interval. Used for verification and tests; previewd never decodes in the
// processing path.
func Decode(r io.Reader) ([]Frame, time.Duration, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("read artifact: %w", err)
	}
	return DecodeBytes(data)
}

// DecodeBytes parses an in-memory BIF artifact.
func DecodeBytes(data []byte) ([]Frame, time.Duration, error) {
	if len(data) < headerSize+entrySize {
		return nil, 0, services.Wrap(services.ErrValidation, "bif", "decode", "artifact too short", nil)
	}
	if !bytes.Equal(data[:8], Magic[:]) {
		return nil, 0, services.Wrap(services.ErrValidation, "bif", "decode", "bad magic signature", nil)
	}
	if v := binary.LittleEndian.Uint32(data[8:]); v != Version {
		return nil, 0, services.Wrap(services.ErrValidation, "bif", "decode", fmt.Sprintf("unsupported version %d", v), nil)
	}

	count := int(binary.LittleEndian.Uint32(data[12:]))
	interval := time.Duration(binary.LittleEndian.Uint32(data[16:])) * time.Millisecond
	tableEnd := headerSize + entrySize*(count+1)
	if len(data) < tableEnd {
		return nil, 0, services.Wrap(services.ErrValidation, "bif", "decode", "truncated index table", nil)
	}

	type row struct {
		timestamp uint32
		offset    uint32
	}
	rows := make([]row, count+1)
	for i := range rows {
		base := headerSize + i*entrySize
		rows[i] = row{
			timestamp: binary.LittleEndian.Uint32(data[base:]),
			offset:    binary.LittleEndian.Uint32(data[base+4:]),
		}
	}
	if rows[count].timestamp != terminator {
		return nil, 0, services.Wrap(services.ErrValidation, "bif", "decode", "missing table terminator", nil)
	}

	frames := make([]Frame, count)
	for i := 0; i < count; i++ {
		start, end := rows[i].offset, rows[i+1].offset
		if start > end || int(end) > len(data) {
			return nil, 0, services.Wrap(services.ErrValidation, "bif", "decode", "index offsets out of bounds", nil)
		}
		if i > 0 && rows[i].timestamp < rows[i-1].timestamp {
			return nil, 0, services.Wrap(services.ErrValidation, "bif", "decode", "timestamps not ascending", nil)
		}
		frames[i] = Frame{
			Timestamp: time.Duration(rows[i].timestamp) * time.Millisecond,
			Data:      append([]byte(nil), data[start:end]...),
		}
	}
	return frames, interval, nil
}
