package booking

import (
	"fmt"
	"time"
)

// SlotLayout describes how slots are carved out of each day of a
// resource's date window. The default matches the platform convention:
// two-hour slots from 09:00 to 17:00.
type SlotLayout struct {
	DayStartHour int
	DayEndHour   int
	SlotLength   time.Duration
}

// DefaultSlotLayout returns the standard 09:00-17:00 / 2h layout.
func DefaultSlotLayout() SlotLayout {
	return SlotLayout{DayStartHour: 9, DayEndHour: 17, SlotLength: 2 * time.Hour}
}

// Validate checks the layout is usable.
func (l SlotLayout) Validate() error {
	if l.SlotLength <= 0 {
		return fmt.Errorf("slot length must be positive, got %s", l.SlotLength)
	}
	if l.DayStartHour < 0 || l.DayEndHour > 24 || l.DayStartHour >= l.DayEndHour {
		return fmt.Errorf("invalid day window %d:00-%d:00", l.DayStartHour, l.DayEndHour)
	}
	return nil
}

// Generate produces the slots for every day of the resource's window,
// inclusive on both ends. Each slot inherits the resource's capacity
// policy and starts fully open.
func (l SlotLayout) Generate(res Resource) ([]Slot, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if res.SlotCapacity <= 0 {
		return nil, fmt.Errorf("resource %s: slot capacity must be positive, got %d", res.ID, res.SlotCapacity)
	}
	if res.EndDate.Before(res.StartDate) {
		return nil, fmt.Errorf("resource %s: end date before start date", res.ID)
	}

	var slots []Slot
	start := res.StartDate.Truncate(24 * time.Hour)
	end := res.EndDate.Truncate(24 * time.Hour)

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		dayStart := day.Add(time.Duration(l.DayStartHour) * time.Hour)
		dayEnd := day.Add(time.Duration(l.DayEndHour) * time.Hour)

		for at := dayStart; at.Add(l.SlotLength).Before(dayEnd) || at.Add(l.SlotLength).Equal(dayEnd); at = at.Add(l.SlotLength) {
			slots = append(slots, Slot{
				ID:         NewSlotID(),
				ResourceID: res.ID,
				StartTime:  at,
				EndTime:    at.Add(l.SlotLength),
				Capacity:   res.SlotCapacity,
				Open:       true,
			})
		}
	}
	return slots, nil
}
