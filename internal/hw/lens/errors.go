package lens

import (
	"errors"
	"fmt"
	"time"
)

// ErrFixedMode rejects a motion command while the hardware holds position
// in Fixed mode. The command is not queued; the caller decides.
var ErrFixedMode = errors.New("lens: motion rejected, lens is in Fixed mode")

// ErrMotionUnknown rejects a motion command after a wait timeout: the last
// move was never confirmed complete, so the motor may still be travelling.
// A status re-read (Busy or WaitIdle) observing IDLE clears the condition.
var ErrMotionUnknown = errors.New("lens: motion state unknown after timeout, awaiting idle confirmation")

// SettleError rejects a motion command issued before the adjust servo loop
// has re-engaged after a Fixed->Adjust transition.
type SettleError struct {
	Remaining time.Duration
}

func (e *SettleError) Error() string {
	return fmt.Sprintf("lens: settling after mode switch, ready in %v", e.Remaining.Round(time.Millisecond))
}

// DriverError wraps any unrecoverable hardware condition with the axis it
// occurred on. The underlying cause is a regbus transport or timeout error.
type DriverError struct {
	Axis string
	Err  error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("lens %s: %v", e.Axis, e.Err)
}

func (e *DriverError) Unwrap() error { return e.Err }
