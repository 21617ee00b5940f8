//go:build unix

package action

import "golang.org/x/sys/unix"

var signals = [...]unix.Signal{
	Terminate: unix.SIGTERM,
	Stop:      unix.SIGSTOP,
	Kill:      unix.SIGKILL,
	Continue:  unix.SIGCONT,
}

// Signal is the signal the helper delivers for a.
func (a Action) Signal() unix.Signal {
	return signals[a]
}

var _ [numActions]unix.Signal = signals
