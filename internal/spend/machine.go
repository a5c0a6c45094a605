package spend

import (
	"context"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"
)

// Spend states.
const (
	StateReceived  = "received"
	StateValidated = "validated"
	StateSubmitted = "submitted"
	StateConfirmed = "confirmed"
	StateFailed    = "failed"
	StateUnknown   = "unknown"
)

// Spend events.
const (
	EventValidate = "validate"
	EventSubmit   = "submit"
	EventConfirm  = "confirm"
	EventFail     = "fail"
	EventLose     = "lose"
)

func newMachine(logger zerolog.Logger) *fsm.FSM {
	return fsm.NewFSM(
		StateReceived,
		fsm.Events{
			{Name: EventValidate, Src: []string{StateReceived}, Dst: StateValidated},
			{Name: EventSubmit, Src: []string{StateValidated}, Dst: StateSubmitted},
			{Name: EventConfirm, Src: []string{StateSubmitted}, Dst: StateConfirmed},
			{Name: EventFail, Src: []string{StateReceived, StateValidated, StateSubmitted}, Dst: StateFailed},
			// The node may or may not have applied the spend.
			{Name: EventLose, Src: []string{StateSubmitted}, Dst: StateUnknown},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Debug().Str("from", e.Src).Str("to", e.Dst).Msg("Spend state")
			},
		},
	)
}
