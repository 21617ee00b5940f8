package snapshot

import (
	"errors"
	"fmt"
)

var (
	ErrChannelFailure = errors.New("collector channel failure")
	ErrDecodeFailure  = errors.New("collector payload decode failure")
)

// CollectorError reports a failed snapshot round-trip. Kind is one of
// ErrChannelFailure or ErrDecodeFailure and is matched through errors.Is.
type CollectorError struct {
	Kind error
	Op   string
	Err  error
}

func (e *CollectorError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *CollectorError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func channelFailure(op string, err error) error {
	return &CollectorError{Kind: ErrChannelFailure, Op: op, Err: err}
}

func decodeFailure(op string, err error) error {
	return &CollectorError{Kind: ErrDecodeFailure, Op: op, Err: err}
}
