package action

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/jeffypooo/apptop/internal/hostexec"
	"github.com/jeffypooo/apptop/internal/logging"
)

var logger = logging.New("action")

// DefaultElevation is prepended to the helper invocation when the unprivileged
// attempt reports insufficient permission.
var DefaultElevation = []string{"pkexec", "--disable-internal-agent"}

// Runner executes argv and reports its exit code. err is set only when the
// command could not be run or yielded no exit status.
type Runner interface {
	Run(argv []string) (code int, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(argv []string) (int, error) {
	if len(argv) == 0 {
		return -1, errors.New("empty command")
	}
	err := exec.Command(argv[0], argv[1:]...).Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code, nil
		}
		return -1, fmt.Errorf("no status code: %w", err)
	}
	return -1, err
}

// Executor delivers lifecycle actions through the privileged helper.
type Executor struct {
	Launcher   hostexec.Launcher
	HelperPath string
	Elevation  []string
	Runner     Runner
}

func NewExecutor(launcher hostexec.Launcher, helperPath string, elevation []string) *Executor {
	if len(elevation) == 0 {
		elevation = DefaultElevation
	}
	return &Executor{
		Launcher:   launcher,
		HelperPath: helperPath,
		Elevation:  append([]string(nil), elevation...),
		Runner:     ExecRunner{},
	}
}

// Apply delivers action to pid. Exit code 0 and 3 (process already gone) are
// success; 1 triggers exactly one retry of the same invocation through the
// elevation wrapper; anything else is reported as ErrUnknown.
func (e *Executor) Apply(action Action, pid int32) error {
	if !action.valid() {
		return fmt.Errorf("invalid action %d", int(action))
	}
	if pid <= 0 {
		return &ActionError{Kind: ErrProcessNotFound, Action: action, PID: pid}
	}

	args := []string{e.HelperPath, action.String(), strconv.FormatInt(int64(pid), 10)}

	code, err := e.run(e.Launcher.Argv(args[0], args[1:]...))
	if err != nil {
		return &ActionError{Kind: ErrSpawn, Action: action, PID: pid, Code: code, Err: err}
	}
	switch code {
	case ExitSuccess, ExitNoSuchProcess:
		// 3: the process may already have been reaped along with its parent
		logger.Debugf("Successfully sent %s to %d", action, pid)
		return nil
	case ExitPermissionDenied:
		logger.Debugf("No permission to send %s to %d, attempting %s", action, pid, e.elevation()[0])
		return e.applyElevated(action, pid, args)
	}
	logger.Errorf("couldn't send %s to %d, status code: %d", action, pid, code)
	return &ActionError{Kind: ErrUnknown, Action: action, PID: pid, Code: code}
}

func (e *Executor) applyElevated(action Action, pid int32, args []string) error {
	wrapper := e.elevation()
	elevated := append(append([]string(nil), wrapper[1:]...), args...)
	code, err := e.run(e.Launcher.Argv(wrapper[0], elevated...))
	if err != nil {
		return &ActionError{Kind: ErrSpawn, Action: action, PID: pid, Code: code, Elevated: true, Err: err}
	}
	switch code {
	case ExitSuccess, ExitNoSuchProcess:
		logger.Debugf("Successfully sent %s to %d with elevated privileges", action, pid)
		return nil
	case ExitPermissionDenied:
		return &ActionError{Kind: ErrPermissionDenied, Action: action, PID: pid, Code: code, Elevated: true}
	}
	logger.Errorf("couldn't send %s to %d with elevated privileges, status code: %d", action, pid, code)
	return &ActionError{Kind: ErrUnknown, Action: action, PID: pid, Code: code, Elevated: true}
}

func (e *Executor) elevation() []string {
	if len(e.Elevation) == 0 {
		return DefaultElevation
	}
	return e.Elevation
}

func (e *Executor) run(argv []string) (int, error) {
	runner := e.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	return runner.Run(argv)
}
