package action

import (
	"errors"
	"fmt"
)

// Helper exit codes.
const (
	ExitSuccess          = 0
	ExitPermissionDenied = 1
	ExitUsage            = 2
	ExitNoSuchProcess    = 3
	ExitFailure          = 4
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrProcessNotFound  = errors.New("process not found")
	ErrSpawn            = errors.New("helper could not be executed")
	ErrUnknown          = errors.New("unknown helper failure")
)

// ActionError reports why an action could not be applied to one pid. Kind is
// one of the Err* sentinels above and is matched with errors.Is.
type ActionError struct {
	Kind     error
	Action   Action
	PID      int32
	Code     int
	Elevated bool
	Err      error
}

func (e *ActionError) Error() string {
	msg := fmt.Sprintf("couldn't %s pid %d", e.Action, e.PID)
	if e.Elevated {
		msg += " with elevated privileges"
	}
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", msg, e.Kind, e.Err)
	case e.Kind == ErrUnknown:
		return fmt.Sprintf("%s: %v, status code: %d", msg, e.Kind, e.Code)
	}
	return fmt.Sprintf("%s: %v", msg, e.Kind)
}

func (e *ActionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
