package pusher

import (
	"errors"
	"fmt"
)

// Stage names the step of a push attempt that failed.
type Stage string

const (
	StageFetch  Stage = "fetch"
	StageEncode Stage = "encode"
	StageDerive Stage = "derive"
	StageSign   Stage = "sign"
	StageSubmit Stage = "submit"
)

// StageError ties a push failure to its stage and feed.
type StageError struct {
	Stage  Stage
	FeedID string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("push %s failed at %s: %v", e.FeedID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the failing stage of err, or "" when err carries none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// ErrPriceAccountNotFound is returned when the feed's price account does not exist yet.
var ErrPriceAccountNotFound = errors.New("price account not found")
