//go:build unix

package main

import (
	"errors"
	"io"
	"testing"

	"golang.org/x/sys/unix"
)

type sent struct {
	pid int
	sig unix.Signal
}

func fakeKill(t *testing.T, err error) *[]sent {
	t.Helper()
	var calls []sent
	old := kill
	kill = func(pid int, sig unix.Signal) error {
		calls = append(calls, sent{pid, sig})
		return err
	}
	t.Cleanup(func() { kill = old })
	return &calls
}

func TestRunDeliversSignal(t *testing.T) {
	cases := map[string]unix.Signal{
		"TERM": unix.SIGTERM,
		"STOP": unix.SIGSTOP,
		"KILL": unix.SIGKILL,
		"CONT": unix.SIGCONT,
	}
	for arg, want := range cases {
		calls := fakeKill(t, nil)
		if code := run([]string{arg, "4242"}, io.Discard); code != exitOK {
			t.Fatalf("%s: exit %d", arg, code)
		}
		if len(*calls) != 1 || (*calls)[0] != (sent{4242, want}) {
			t.Fatalf("%s: unexpected calls %v", arg, *calls)
		}
	}
}

func TestRunUsageErrors(t *testing.T) {
	calls := fakeKill(t, nil)
	for _, args := range [][]string{
		nil,
		{"TERM"},
		{"TERM", "1", "2"},
		{"HUP", "12"},
		{"TERM", "abc"},
		{"TERM", "0"},
		{"TERM", "-5"},
	} {
		if code := run(args, io.Discard); code != exitUsage {
			t.Fatalf("%v: expected usage exit, got %d", args, code)
		}
	}
	if len(*calls) != 0 {
		t.Fatalf("no signal expected on usage errors, got %v", *calls)
	}
}

func TestRunMapsErrno(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{unix.EPERM, exitPermission},
		{unix.ESRCH, exitNoProcess},
		{unix.EINVAL, exitOther},
		{errors.New("boom"), exitOther},
	}
	for _, tc := range cases {
		fakeKill(t, tc.err)
		if code := run([]string{"KILL", "12"}, io.Discard); code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, code)
		}
	}
}

func TestSignalZeroOnSelf(t *testing.T) {
	if err := unix.Kill(unix.Getpid(), 0); exitCode(err) != exitOK {
		t.Fatalf("probing self: %v", err)
	}
}
