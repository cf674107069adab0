// Package schedule holds the project schedule: an ordered list of valued
// work activities that the cash-flow engine projects into payments.
package schedule

import (
	"fmt"
	"sync"

	"github.com/warp/cashflow-engine/generic"
)

// =============================================================================
// ACTIVITY
// =============================================================================

// ActivityID identifies one schedule row. Names are display-only and may repeat.
type ActivityID string

// Activity is one line item of schedule work with a gross claimable value.
type Activity struct {
	ID    ActivityID
	Name  string
	Span  generic.Period
	Value generic.Amount
}

// NewActivity builds an activity from a name, a date span and a value.
func NewActivity(id ActivityID, name string, start, end generic.Date, value generic.Amount) Activity {
	return Activity{
		ID:    id,
		Name:  name,
		Span:  generic.Period{Start: start, End: end},
		Value: value,
	}
}

func (a Activity) Start() generic.Date { return a.Span.Start }
func (a Activity) End() generic.Date   { return a.Span.End }

// Validate reports data-entry errors: an inverted span or a negative value.
// Both are returned when both apply.
func (a Activity) Validate() error {
	var errs generic.ValidationErrors
	if err := a.Span.Validate(); err != nil {
		errs = append(errs, err)
	}
	if a.Value.IsNegative() {
		errs = append(errs, fmt.Errorf("%w: %s", generic.ErrNegativeValue, a.Value.StringFixed()))
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// =============================================================================
// SCHEDULE - Ordered, editable collection
// =============================================================================

// Schedule is an ordered collection of activities, safe for concurrent use.
// Edits are validated at entry time; Snapshot hands the engine an immutable
// copy for one forecast run.
type Schedule struct {
	mu         sync.RWMutex
	activities []Activity
}

// New returns a schedule seeded with the given activities, in order.
func New(activities ...Activity) *Schedule {
	s := &Schedule{}
	s.activities = append(s.activities, activities...)
	return s
}

// Add appends an activity after validating it. IDs must be unique.
func (s *Schedule) Add(a Activity) error {
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(a.ID) >= 0 {
		return fmt.Errorf("%w: activity %s", generic.ErrDuplicateID, a.ID)
	}
	s.activities = append(s.activities, a)
	return nil
}

// Update replaces the activity with the same ID in place, keeping its position.
func (s *Schedule) Update(a Activity) error {
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(a.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", generic.ErrActivityNotFound, a.ID)
	}
	s.activities[i] = a
	return nil
}

// Remove deletes the activity with the given ID.
func (s *Schedule) Remove(id ActivityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", generic.ErrActivityNotFound, id)
	}
	s.activities = append(s.activities[:i], s.activities[i+1:]...)
	return nil
}

// Get returns the activity with the given ID.
func (s *Schedule) Get(id ActivityID) (Activity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(id)
	if i < 0 {
		return Activity{}, false
	}
	return s.activities[i], true
}

func (s *Schedule) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.activities)
}

// Snapshot returns a copy of the activities in schedule order.
func (s *Schedule) Snapshot() []Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Activity, len(s.activities))
	copy(out, s.activities)
	return out
}

// TotalValue is the contract value: the sum of activity values, negatives
// counted as zero.
func TotalValue(currency generic.Currency, activities []Activity) generic.Amount {
	total := generic.Sum(currency)
	for _, a := range activities {
		total = total.Add(a.Value.ClampZero())
	}
	return total
}

func (s *Schedule) indexLocked(id ActivityID) int {
	for i, a := range s.activities {
		if a.ID == id {
			return i
		}
	}
	return -1
}
