package simulation

import "errors"

var (
	ErrAlreadyStarted = errors.New("simulation already started")
	ErrStopped        = errors.New("simulation stopped")
	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrInvalidRate    = errors.New("electricity rate must be positive")
	ErrInvalidWattage = errors.New("wattage must not be negative")
)

// Outcome reports whether an operation addressed by device id found its target.
type Outcome int

const (
	OutcomeUpdated Outcome = iota + 1
	OutcomeNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUpdated:
		return "updated"
	case OutcomeNotFound:
		return "not_found"
	}
	return "unknown"
}
