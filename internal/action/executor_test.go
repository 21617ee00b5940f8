package action

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/jeffypooo/apptop/internal/hostexec"
)

// scriptedRunner returns one scripted exit code per call and records argv.
type scriptedRunner struct {
	codes []int
	err   error
	calls [][]string
}

func (r *scriptedRunner) Run(argv []string) (int, error) {
	r.calls = append(r.calls, argv)
	if r.err != nil {
		return -1, r.err
	}
	code := r.codes[0]
	if len(r.codes) > 1 {
		r.codes = r.codes[1:]
	}
	return code, nil
}

func newTestExecutor(launcher hostexec.Launcher, runner Runner) *Executor {
	e := NewExecutor(launcher, "/usr/libexec/apptop/apptop-kill", nil)
	e.Runner = runner
	return e
}

func TestApplyExitCodePolicy(t *testing.T) {
	cases := []struct {
		name      string
		codes     []int
		wantCalls int
		wantKind  error
		wantCode  int
	}{
		{"success", []int{0}, 1, nil, 0},
		{"already gone is success", []int{3}, 1, nil, 0},
		{"escalation succeeds", []int{1, 0}, 2, nil, 0},
		{"escalation finds process gone", []int{1, 3}, 2, nil, 0},
		{"escalation still denied", []int{1, 1}, 2, ErrPermissionDenied, 1},
		{"escalation dismissed", []int{1, 126}, 2, ErrUnknown, 126},
		{"unknown code", []int{4}, 1, ErrUnknown, 4},
		{"usage error", []int{2}, 1, ErrUnknown, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &scriptedRunner{codes: tc.codes}
			err := newTestExecutor(hostexec.Launcher{}, runner).Apply(Terminate, 4242)

			if len(runner.calls) != tc.wantCalls {
				t.Fatalf("expected %d helper calls, got %d: %v", tc.wantCalls, len(runner.calls), runner.calls)
			}
			if tc.wantKind == nil {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantKind) {
				t.Fatalf("expected %v, got %v", tc.wantKind, err)
			}
			var ae *ActionError
			if !errors.As(err, &ae) {
				t.Fatalf("expected *ActionError, got %T", err)
			}
			if ae.Code != tc.wantCode || ae.PID != 4242 || ae.Action != Terminate {
				t.Fatalf("unexpected error details: %+v", ae)
			}
		})
	}
}

func TestEscalationReusesTheSameInvocation(t *testing.T) {
	runner := &scriptedRunner{codes: []int{1, 0}}
	if err := newTestExecutor(hostexec.Launcher{}, runner).Apply(Kill, 77); err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := [][]string{
		{"/usr/libexec/apptop/apptop-kill", "KILL", "77"},
		{"pkexec", "--disable-internal-agent", "/usr/libexec/apptop/apptop-kill", "KILL", "77"},
	}
	if !reflect.DeepEqual(runner.calls, want) {
		t.Fatalf("expected %v, got %v", want, runner.calls)
	}
}

func TestSandboxedInvocationsGoThroughHostProxy(t *testing.T) {
	runner := &scriptedRunner{codes: []int{1, 0}}
	e := NewExecutor(hostexec.Launcher{Sandboxed: true}, "/app/libexec/apptop/apptop-kill", nil)
	e.Runner = runner
	if err := e.Apply(Stop, 9); err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := [][]string{
		{"flatpak-spawn", "--host", "/app/libexec/apptop/apptop-kill", "STOP", "9"},
		{"flatpak-spawn", "--host", "pkexec", "--disable-internal-agent", "/app/libexec/apptop/apptop-kill", "STOP", "9"},
	}
	if !reflect.DeepEqual(runner.calls, want) {
		t.Fatalf("expected %v, got %v", want, runner.calls)
	}
}

func TestSpawnFailureIsWrapped(t *testing.T) {
	runner := &scriptedRunner{err: errors.New("exec: \"apptop-kill\": executable file not found")}
	err := newTestExecutor(hostexec.Launcher{}, runner).Apply(Continue, 12)
	if !errors.Is(err, ErrSpawn) {
		t.Fatalf("expected ErrSpawn, got %v", err)
	}
	if !strings.Contains(err.Error(), "CONT pid 12") {
		t.Fatalf("error lacks action/pid context: %v", err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("spawn failures must not be retried, got %d calls", len(runner.calls))
	}
}

func TestInvalidPIDIsRejectedWithoutSpawning(t *testing.T) {
	for _, pid := range []int32{0, -1} {
		runner := &scriptedRunner{codes: []int{0}}
		err := newTestExecutor(hostexec.Launcher{}, runner).Apply(Kill, pid)
		if !errors.Is(err, ErrProcessNotFound) {
			t.Fatalf("pid %d: expected ErrProcessNotFound, got %v", pid, err)
		}
		if len(runner.calls) != 0 {
			t.Fatalf("pid %d: helper must not be spawned", pid)
		}
	}
}

func TestExecRunnerExitCodes(t *testing.T) {
	cases := []struct {
		script string
		want   int
	}{
		{"exit 0", 0},
		{"exit 1", 1},
		{"exit 3", 3},
	}
	for _, tc := range cases {
		code, err := ExecRunner{}.Run([]string{"sh", "-c", tc.script})
		if err != nil {
			t.Fatalf("%s: %v", tc.script, err)
		}
		if code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.script, tc.want, code)
		}
	}
	if _, err := (ExecRunner{}).Run([]string{"/nonexistent/apptop-kill"}); err == nil {
		t.Fatalf("expected spawn error for missing binary")
	}
}

func TestParseActionAndStrings(t *testing.T) {
	cases := map[string]Action{
		"TERM": Terminate, "end": Terminate,
		"STOP": Stop, "halt": Stop,
		"KILL": Kill,
		"CONT": Continue, "continue": Continue,
	}
	for in, want := range cases {
		got, err := ParseAction(in)
		if err != nil || got != want {
			t.Fatalf("%q: expected %v, got %v (%v)", in, want, got, err)
		}
	}
	if _, err := ParseAction("HUP"); err == nil {
		t.Fatalf("expected error for unsupported action")
	}
	for _, a := range All() {
		parsed, err := ParseAction(a.String())
		if err != nil || parsed != a {
			t.Fatalf("%v does not parse back from its helper argument", a)
		}
		if a.Progressive() == "" || a.Past() == "" {
			t.Fatalf("%v lacks message verbs", a)
		}
	}
}

func TestOutOfRangeActionDoesNotPanic(t *testing.T) {
	for _, a := range []Action{-1, numActions, 42} {
		want := fmt.Sprintf("Action(%d)", int(a))
		if a.String() != want || a.Progressive() != want || a.Past() != want {
			t.Fatalf("%d: expected %q from every formatter, got %q/%q/%q", int(a), want, a.String(), a.Progressive(), a.Past())
		}
	}
}
