package projection

import (
	"slices"

	"patrimonio/internal/core"
)

// ApplicationMonth is the month of each simulated year (1-12) in which the
// life events of that year hit the path.
const ApplicationMonth = 6

// Overlay nets life events by calendar year. It copies what it needs and
// never retains the caller's slice.
type Overlay struct {
	net map[int]float64
}

func NewOverlay(events []core.LifeEvent) Overlay {
	o := Overlay{net: make(map[int]float64, len(events))}
	for _, e := range events {
		o.net[e.CalendarYear] += e.Signed()
	}
	return o
}

// NetFor returns the summed signed amount of the events dated in year.
// The flag is false when no event falls in that year.
func (o Overlay) NetFor(year int) (float64, bool) {
	v, ok := o.net[year]
	return v, ok
}

// Years returns how many calendar years carry at least one event.
func (o Overlay) Years() int {
	return len(o.net)
}

// Outside returns, in order, the event years that fall outside [first, last].
// Events of those years never reach a path.
func (o Overlay) Outside(first, last int) []int {
	var years []int
	for y := range o.net {
		if y < first || y > last {
			years = append(years, y)
		}
	}
	slices.Sort(years)
	return years
}
