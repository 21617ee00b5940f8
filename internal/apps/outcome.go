package apps

import (
	"fmt"

	"github.com/jeffypooo/apptop/internal/action"
)

// Outcome counts the per-process results of one fan-out.
type Outcome struct {
	Action    action.Action
	Name      string
	Tried     int
	Succeeded int
	Failed    int
	Errors    []error
}

// Tally summarizes results as returned by Application.Do.
func Tally(app *Application, act action.Action, results []error) Outcome {
	o := Outcome{Action: act, Name: app.DisplayName, Tried: len(results)}
	for _, err := range results {
		if err != nil {
			o.Failed++
			o.Errors = append(o.Errors, err)
			continue
		}
		o.Succeeded++
	}
	return o
}

func (o Outcome) OK() bool { return o.Failed == 0 }

// Message is the sentence shown to the user after the action.
func (o Outcome) Message() string {
	switch o.Failed {
	case 0:
		return fmt.Sprintf("Successfully %s %s", o.Action.Past(), o.Name)
	case 1:
		return fmt.Sprintf("There was a problem %s a process", o.Action.Progressive())
	}
	return fmt.Sprintf("There were problems %s %d processes", o.Action.Progressive(), o.Failed)
}
