package snapshot

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/jeffypooo/apptop/internal/hostexec"
	"github.com/jeffypooo/apptop/internal/logging"
)

var logger = logging.New("snapshot")

// Dialer opens the duplex stream to a collector. The returned closer tears the
// stream (and any process behind it) down.
type Dialer func() (io.Writer, io.Reader, io.Closer, error)

// Channel is a long-lived connection to the privileged collector. The
// connection is opened lazily on the first request and at most one request is
// in flight at any time.
type Channel struct {
	mu     sync.Mutex
	dial   Dialer
	w      io.Writer
	r      io.Reader
	closer io.Closer
}

// NewChannel returns a channel over an arbitrary dialer.
func NewChannel(dial Dialer) *Channel {
	return &Channel{dial: dial}
}

// NewProcessChannel returns a channel that spawns the collector at path through
// launcher on first use.
func NewProcessChannel(launcher hostexec.Launcher, path string) *Channel {
	return NewChannel(func() (io.Writer, io.Reader, io.Closer, error) {
		if launcher.Sandboxed {
			logger.Debugf("Spawning collector in sandbox mode (%s)", path)
		} else {
			logger.Debugf("Spawning collector in native mode (%s)", path)
		}
		cmd := launcher.Command(path)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, nil, nil, err
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, nil, nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, nil, nil, err
		}
		return stdin, stdout, &collectorProcess{cmd: cmd, stdin: stdin}, nil
	})
}

// Request performs one trigger/response exchange and decodes the snapshot.
// It blocks until the collector answers; callers needing a deadline must wait
// on it from another goroutine rather than closing the channel.
func (c *Channel) Request() ([]Sample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.w == nil {
		if c.dial == nil {
			return nil, channelFailure("connect collector", errors.New("no dialer configured"))
		}
		w, r, closer, err := c.dial()
		if err != nil {
			return nil, channelFailure("spawn collector", err)
		}
		c.w, c.r, c.closer = w, r, closer
	}

	if _, err := c.w.Write([]byte{Trigger}); err != nil {
		return nil, channelFailure("write trigger", err)
	}
	if f, ok := c.w.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return nil, channelFailure("flush trigger", err)
		}
	}

	payload, err := ReadFrame(c.r)
	if err != nil {
		return nil, channelFailure("read snapshot", err)
	}

	samples, err := Decode(payload)
	if err != nil {
		return nil, decodeFailure(fmt.Sprintf("decode %d byte snapshot", len(payload)), err)
	}
	return samples, nil
}

// Reset drops the current connection; the next Request dials a fresh one.
// Use it only after a ChannelFailure, when the stream position is unknown.
func (c *Channel) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

// Close releases the connection.
func (c *Channel) Close() error {
	return c.Reset()
}

func (c *Channel) closeLocked() error {
	var err error
	if c.closer != nil {
		err = c.closer.Close()
	}
	c.w, c.r, c.closer = nil, nil, nil
	return err
}

type collectorProcess struct {
	cmd   *exec.Cmd
	stdin io.Closer
}

func (p *collectorProcess) Close() error {
	err := p.stdin.Close()
	if p.cmd.Process != nil {
		if kerr := p.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			err = errors.Join(err, kerr)
		}
		// Wait reaps the child; its error only reflects the kill above.
		_ = p.cmd.Wait()
	}
	return err
}
