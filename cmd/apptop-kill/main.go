//go:build unix

// Command apptop-kill delivers one lifecycle signal to one process. It is run
// through the elevation wrapper when the caller lacks permission.
//
//	apptop-kill TERM|STOP|KILL|CONT <pid>
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/jeffypooo/apptop/internal/action"
)

const (
	exitOK = iota
	exitPermission
	exitUsage
	exitNoProcess
	exitOther
)

// kill is swapped in tests.
var kill = unix.Kill

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	if len(args) != 2 {
		fmt.Fprintln(stderr, "usage: apptop-kill TERM|STOP|KILL|CONT <pid>")
		return exitUsage
	}
	act, err := action.ParseAction(args[0])
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	pid, err := strconv.Atoi(args[1])
	if err != nil || pid <= 0 {
		fmt.Fprintf(stderr, "invalid pid %q\n", args[1])
		return exitUsage
	}
	if err := kill(pid, act.Signal()); err != nil {
		fmt.Fprintf(stderr, "%s %d: %v\n", act, pid, err)
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, unix.EPERM):
		return exitPermission
	case errors.Is(err, unix.ESRCH):
		return exitNoProcess
	}
	return exitOther
}
