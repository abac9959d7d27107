// Package capacity computes engineer allocation totals and enforces the
// maximum-capacity rule. It is pure: it never touches storage, so callers can
// run it speculatively inside a transaction before committing anything.
package capacity

import (
	"fmt"

	"github.com/garnizeh/resource/pkg/models"
)

// Error reports a rejected allocation together with the numbers that caused
// the rejection.
type Error struct {
	Allocated int // total across the engineer's other assignments
	Requested int // candidate allocation under evaluation
	Limit     int // engineer's maximum capacity
}

func (e *Error) Error() string {
	return fmt.Sprintf("capacity exceeded: allocated %d%% + requested %d%% > limit %d%%", e.Allocated, e.Requested, e.Limit)
}

// Allocated sums allocation across assignments, skipping the entry for
// excludeProjectID (pass 0 to sum everything). Excluding the project under
// evaluation lets an in-place update be checked against the engineer's other
// commitments instead of double-counting itself.
func Allocated(assignments []models.Assignment, excludeProjectID int64) int {
	total := 0
	for _, a := range assignments {
		if excludeProjectID != 0 && a.ProjectID == excludeProjectID {
			continue
		}
		total += a.Allocation
	}
	return total
}

// Check validates that adding requested percent on excludeProjectID keeps the
// engineer within maxCapacity. It returns nil on success and *Error on
// rejection.
func Check(assignments []models.Assignment, excludeProjectID int64, requested, maxCapacity int) error {
	allocated := Allocated(assignments, excludeProjectID)
	if allocated+requested > maxCapacity {
		return &Error{Allocated: allocated, Requested: requested, Limit: maxCapacity}
	}
	return nil
}
