package duedate

import "time"

// Calendar supplies per-jurisdiction working-day information for the
// NEXT_WORKING_DAY adjustment.
type Calendar interface {
	IsWorkingDay(jurisdiction string, day time.Time) bool
}

// StaticCalendar is a Calendar built from configured holiday lists. The
// weekend defaults to Saturday and Sunday; a jurisdiction can override it.
type StaticCalendar struct {
	weekend   map[time.Weekday]bool
	overrides map[string]map[time.Weekday]bool
	holidays  map[string]map[string]bool // jurisdiction -> "2006-01-02"
}

func NewStaticCalendar() *StaticCalendar {
	return &StaticCalendar{
		weekend: map[time.Weekday]bool{
			time.Saturday: true,
			time.Sunday:   true,
		},
		overrides: make(map[string]map[time.Weekday]bool),
		holidays:  make(map[string]map[string]bool),
	}
}

// AddHolidays registers holidays for a jurisdiction. The empty jurisdiction
// applies everywhere (national holidays).
func (c *StaticCalendar) AddHolidays(jurisdiction string, days ...time.Time) {
	m := c.holidays[jurisdiction]
	if m == nil {
		m = make(map[string]bool)
		c.holidays[jurisdiction] = m
	}
	for _, d := range days {
		m[d.Format("2006-01-02")] = true
	}
}

// SetWeekend overrides the weekend days for a jurisdiction.
func (c *StaticCalendar) SetWeekend(jurisdiction string, days ...time.Weekday) {
	m := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		m[d] = true
	}
	c.overrides[jurisdiction] = m
}

func (c *StaticCalendar) IsWorkingDay(jurisdiction string, day time.Time) bool {
	weekend := c.weekend
	if ov, ok := c.overrides[jurisdiction]; ok {
		weekend = ov
	}
	if weekend[day.Weekday()] {
		return false
	}

	key := day.Format("2006-01-02")
	if c.holidays[""][key] {
		return false
	}
	if c.holidays[jurisdiction][key] {
		return false
	}
	return true
}
