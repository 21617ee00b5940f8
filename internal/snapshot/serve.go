package snapshot

import (
	"bufio"
	"errors"
	"io"
)

// SampleFunc gathers one full-system snapshot.
type SampleFunc func() ([]Sample, error)

// Serve answers every trigger byte read from r with one framed snapshot on w.
// A sampling or encoding failure is answered with an empty frame so the client
// stays in step; it sees a decode failure for that request. Serve returns nil
// when r reaches EOF.
func Serve(r io.Reader, w io.Writer, sample SampleFunc) error {
	in := bufio.NewReader(r)
	out := bufio.NewWriter(w)
	for {
		if _, err := in.ReadByte(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		payload, err := snapshotPayload(sample)
		if err != nil {
			logger.Errorf("snapshot failed: %v", err)
			payload = nil
		}
		if err := WriteFrame(out, payload); err != nil {
			return err
		}
		if err := out.Flush(); err != nil {
			return err
		}
	}
}

func snapshotPayload(sample SampleFunc) ([]byte, error) {
	samples, err := sample()
	if err != nil {
		return nil, err
	}
	return Encode(samples)
}
