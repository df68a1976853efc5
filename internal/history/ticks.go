package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/gudang/internal/shared"
)

// Granularity selects the reporting grid.
type Granularity string

const (
	Hourly  Granularity = "hour"
	Daily   Granularity = "day"
	Monthly Granularity = "month"
)

// DateLayout is the calendar date format used in queries.
const DateLayout = "2006-01-02"

const (
	defaultDailyDays     = 7
	defaultMonthlyMonths = 6
	maxDailyTicks        = 366
	maxMonthlyTicks      = 120
)

// ParseGranularity accepts hour, day or month in any case. Blank means daily.
func ParseGranularity(raw string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(raw))); g {
	case "":
		return Daily, nil
	case Hourly, Daily, Monthly:
		return g, nil
	default:
		return "", fmt.Errorf("%w: granularity must be hour, day or month", shared.ErrValidation)
	}
}

// Query describes a balance-history request. Date, StartHour and EndHour
// apply to the hourly grid; From and To to the daily and monthly grids. Blank
// dates take the defaults relative to now. Hours are taken literally, so a
// full day is StartHour 0 and EndHour 23.
type Query struct {
	ProductCodes []string
	Granularity  Granularity
	Date         string
	StartHour    int
	EndHour      int
	From         string
	To           string
}

// Tick is one grid position. Lookup is the instant whose balance is
// reported: Start itself for hourly ticks, the end of the bucket for daily
// and monthly ticks.
type Tick struct {
	Start  time.Time
	Lookup time.Time
}

// Ticks builds the grid for q in loc. Ticks whose day is after today are
// discarded.
func Ticks(q Query, now time.Time, loc *time.Location) ([]Tick, error) {
	if loc == nil {
		loc = time.UTC
	}
	today := startOfDay(now.In(loc))
	var ticks []Tick
	switch q.Granularity {
	case Hourly:
		day := today
		if q.Date != "" {
			d, err := parseDate(q.Date, loc)
			if err != nil {
				return nil, err
			}
			day = d
		}
		if q.StartHour < 0 || q.EndHour > 23 || q.StartHour > q.EndHour {
			return nil, fmt.Errorf("%w: hours must satisfy 0 <= startHour <= endHour <= 23", shared.ErrValidation)
		}
		for h := q.StartHour; h <= q.EndHour; h++ {
			at := time.Date(day.Year(), day.Month(), day.Day(), h, 0, 0, 0, loc)
			ticks = append(ticks, Tick{Start: at, Lookup: at})
		}
	case Daily:
		from, to, err := dateRange(q, loc, today.AddDate(0, 0, -defaultDailyDays), today)
		if err != nil {
			return nil, err
		}
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			if len(ticks) == maxDailyTicks {
				return nil, fmt.Errorf("%w: daily range exceeds %d days", shared.ErrValidation, maxDailyTicks)
			}
			ticks = append(ticks, Tick{Start: d, Lookup: endOfDay(d)})
		}
	case Monthly:
		from, to, err := dateRange(q, loc, startOfMonth(today).AddDate(0, -defaultMonthlyMonths, 0), today)
		if err != nil {
			return nil, err
		}
		last := startOfMonth(to)
		for m := startOfMonth(from); !m.After(last); m = m.AddDate(0, 1, 0) {
			if len(ticks) == maxMonthlyTicks {
				return nil, fmt.Errorf("%w: monthly range exceeds %d months", shared.ErrValidation, maxMonthlyTicks)
			}
			ticks = append(ticks, Tick{Start: m, Lookup: endOfMonth(m)})
		}
	default:
		return nil, fmt.Errorf("%w: granularity must be hour, day or month", shared.ErrValidation)
	}

	endOfToday := endOfDay(today)
	kept := ticks[:0]
	for _, t := range ticks {
		if startOfDay(t.Start).After(endOfToday) {
			continue
		}
		kept = append(kept, t)
	}
	return kept, nil
}

func dateRange(q Query, loc *time.Location, defaultFrom, defaultTo time.Time) (time.Time, time.Time, error) {
	from, to := defaultFrom, defaultTo
	if q.From != "" {
		d, err := parseDate(q.From, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = d
	}
	if q.To != "" {
		d, err := parseDate(q.To, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = d
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from must not be after to", shared.ErrValidation)
	}
	return from, to, nil
}

func parseDate(raw string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", shared.ErrValidation, raw)
	}
	return d, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func endOfMonth(t time.Time) time.Time {
	return startOfMonth(t).AddDate(0, 1, 0).Add(-time.Nanosecond)
}
