package tour

import (
	"fmt"
	"sort"
)

// Validate checks that step orders form the dense range [0, N) and that step
// ids are unique. On success the steps are sorted by order.
func Validate(d *Definition) error {
	if d.ID == "" {
		return &MalformedError{Code: CodeMissingID, Message: "id is required"}
	}
	if len(d.Steps) == 0 {
		return &MalformedError{TourID: d.ID, Code: CodeEmptySteps, Message: "tour has no steps"}
	}

	n := len(d.Steps)
	seenOrder := make(map[int]string, n)
	seenID := make(map[string]struct{}, n)
	for i, s := range d.Steps {
		if s.ID == "" {
			return &MalformedError{TourID: d.ID, Code: CodeMissingID,
				Message: fmt.Sprintf("step %d has no id", i)}
		}
		if _, dup := seenID[s.ID]; dup {
			return &MalformedError{TourID: d.ID, Code: CodeDuplicateStepID,
				Message: fmt.Sprintf("step id %q used twice", s.ID)}
		}
		seenID[s.ID] = struct{}{}

		if other, dup := seenOrder[s.Order]; dup {
			return &MalformedError{TourID: d.ID, Code: CodeDuplicateOrder,
				Message: fmt.Sprintf("steps %q and %q share order %d", other, s.ID, s.Order)}
		}
		if s.Order < 0 || s.Order >= n {
			return &MalformedError{TourID: d.ID, Code: CodeOrderGap,
				Message: fmt.Sprintf("step %q order %d outside [0, %d)", s.ID, s.Order, n)}
		}
		seenOrder[s.Order] = s.ID
	}

	sort.Slice(d.Steps, func(i, j int) bool { return d.Steps[i].Order < d.Steps[j].Order })
	return nil
}
