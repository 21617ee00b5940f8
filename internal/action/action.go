package action

import (
	"fmt"
	"strings"
)

// Action is a lifecycle action deliverable to a single process.
type Action int

const (
	Terminate Action = iota
	Stop
	Kill
	Continue

	numActions
)

// helperArgs maps every Action to the helper's argument. The assignment to a
// [numActions] array below stops compiling when an Action lacks an entry.
var helperArgs = [...]string{
	Terminate: "TERM",
	Stop:      "STOP",
	Kill:      "KILL",
	Continue:  "CONT",
}

// verbs are the user-facing words: present participle and past tense.
var verbs = [...][2]string{
	Terminate: {"ending", "ended"},
	Stop:      {"halting", "halted"},
	Kill:      {"killing", "killed"},
	Continue:  {"continuing", "continued"},
}

var (
	_ [numActions]string    = helperArgs
	_ [numActions][2]string = verbs
)

// All lists every action in declaration order.
func All() []Action {
	return []Action{Terminate, Stop, Kill, Continue}
}

func (a Action) valid() bool { return a >= 0 && a < numActions }

// String returns the helper argument, e.g. "TERM".
func (a Action) String() string {
	if !a.valid() {
		return fmt.Sprintf("Action(%d)", int(a))
	}
	return helperArgs[a]
}

// Progressive is the "-ing" verb used in messages ("ending", "halting").
func (a Action) Progressive() string {
	if !a.valid() {
		return a.String()
	}
	return verbs[a][0]
}

// Past is the past-tense verb used in messages ("ended", "halted").
func (a Action) Past() string {
	if !a.valid() {
		return a.String()
	}
	return verbs[a][1]
}

// ParseAction accepts the helper argument (TERM, STOP, KILL, CONT) as well as
// the words used by the CLI and HTTP API (end, halt, kill, continue).
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "term", "terminate", "end":
		return Terminate, nil
	case "stop", "halt":
		return Stop, nil
	case "kill":
		return Kill, nil
	case "cont", "continue", "resume":
		return Continue, nil
	}
	return 0, fmt.Errorf("unknown action %q", s)
}
