package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"

	"github.com/vmihailenco/msgpack/v5"
)

// WordSize is the width of the length prefix: the collector writes a native
// machine word in little-endian order.
const WordSize = bits.UintSize / 8

// Trigger is the single byte a client writes to request one snapshot.
const Trigger byte = '\n'

// MaxFrameSize bounds the payload length a reader accepts.
const MaxFrameSize = 256 << 20

var errFrameTooLarge = errors.New("frame exceeds maximum size")

// Encode serializes samples as MessagePack with structs packed as arrays.
func Encode(samples []Sample) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseArrayEncodedStructs(true)
	if err := enc.Encode(samples); err != nil {
		return nil, fmt.Errorf("encoding %d samples: %w", len(samples), err)
	}
	return buf.Bytes(), nil
}

// Decode is the inverse of Encode.
func Decode(payload []byte) ([]Sample, error) {
	var samples []Sample
	if err := msgpack.Unmarshal(payload, &samples); err != nil {
		return nil, err
	}
	return samples, nil
}

// WriteFrame writes the length prefix followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	header := make([]byte, 8)
	binary.LittleEndian.PutUint64(header, uint64(len(payload)))
	if _, err := w.Write(header[:WordSize]); err != nil {
		return fmt.Errorf("writing frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("writing %d byte frame: %w", len(payload), err)
	}
	return nil
}

// ReadFrame reads one length-prefixed payload. The prefix and the payload are
// read separately and each must be satisfied in full; a short read surfaces as
// io.ErrUnexpectedEOF (or io.EOF when nothing at all was read).
func ReadFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header[:WordSize]); err != nil {
		return nil, fmt.Errorf("reading frame header: %w", err)
	}
	size := binary.LittleEndian.Uint64(header)
	if size > MaxFrameSize {
		return nil, fmt.Errorf("frame of %d bytes: %w", size, errFrameTooLarge)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("reading %d byte frame: %w", size, err)
	}
	return payload, nil
}
