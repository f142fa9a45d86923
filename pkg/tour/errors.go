package tour

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a tour id does not resolve to a published tour.
var ErrNotFound = errors.New("tour not found")

// MalformedCode categorizes definition problems.
type MalformedCode string

const (
	CodeMissingID       MalformedCode = "missing_id"
	CodeEmptySteps      MalformedCode = "empty_steps"
	CodeDuplicateOrder  MalformedCode = "duplicate_order"
	CodeOrderGap        MalformedCode = "order_gap"
	CodeDuplicateStepID MalformedCode = "duplicate_step_id"
)

// MalformedError reports a tour whose steps violate the ordering invariant.
type MalformedError struct {
	TourID  string
	Code    MalformedCode
	Message string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("tour %q malformed (%s): %s", e.TourID, e.Code, e.Message)
}

// IsMalformed reports whether err is a MalformedError.
func IsMalformed(err error) bool {
	var me *MalformedError
	return errors.As(err, &me)
}
