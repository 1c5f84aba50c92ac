package rituals

import (
	"sort"
	"time"

	"github.com/deskhub/deskhub/internal/calendar"
)

// Generate expands the enabled rituals over HorizonDays days starting today in
// the settings' timezone. Slots that start before now are skipped. The result
// is ordered by start.
func Generate(s Settings, now time.Time) ([]*calendar.Task, error) {
	loc, err := s.Location()
	if err != nil {
		return nil, err
	}
	local := now.In(loc)
	y, m, d := local.Date()

	var out []*calendar.Task
	for _, rr := range s.rituals() {
		r := rr.r
		if !r.Enabled {
			continue
		}
		hour, minute, err := clock(r.Time)
		if err != nil {
			return nil, err
		}
		var days [7]bool
		for _, wd := range r.Weekdays {
			if wd >= 0 && wd <= 6 {
				days[wd] = true
			}
		}
		for i := 0; i < s.HorizonDays; i++ {
			start := time.Date(y, m, d+i, hour, minute, 0, 0, loc)
			if !days[start.Weekday()] || start.Before(now) {
				continue
			}
			out = append(out, &calendar.Task{
				OwnerID:  s.OwnerID,
				Title:    r.Title,
				Kind:     calendar.KindRitual,
				Ritual:   rr.name,
				Priority: calendar.PriorityMedium,
				Start:    start.UTC(),
				End:      start.Add(time.Duration(r.DurationMinutes) * time.Minute).UTC(),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}
