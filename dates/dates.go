// Package dates holds the calendar arithmetic for yearless birthdays and
// fixed UTC offsets. Nothing here reads the wall clock; callers pass "now".
//
// Offsets are whole hours with no daylight saving. Feb 29 birthdays are
// observed on Feb 28 in non-leap years.
package dates

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	"birthdaybot/models"
)

const day = 24 * time.Hour

var dateToken = regexp.MustCompile(`^(\d{1,2})[-/ ](\d{1,2})$`)

// Parse reads a "M-D", "M/D" or "M D" token. It checks the shape only; use
// Date.Valid for calendar validity.
func Parse(token string) (models.Date, bool) {
	m := dateToken.FindStringSubmatch(token)
	if m == nil {
		return models.Date{}, false
	}
	month, _ := strconv.Atoi(m[1])
	d, _ := strconv.Atoi(m[2])
	return models.Date{Month: time.Month(month), Day: d}, true
}

// IsValid reports whether month/day is a real calendar date, Feb 29 included.
func IsValid(month, d int) bool {
	return models.Date{Month: time.Month(month), Day: d}.Valid()
}

// Zone returns the fixed location for a UTC offset in hours.
func Zone(offset int) *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", offset), offset*int(time.Hour/time.Second))
}

// LocalNow shifts now into the community's local time.
func LocalNow(now time.Time, offset int) time.Time {
	return now.In(Zone(offset))
}

// LocalHour maps a configured announce hour (1-24) onto a clock hour (0-23).
func LocalHour(announceHour int) int {
	return announceHour % 24
}

// IsLeapYear reports whether year has a Feb 29.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func observed(d models.Date, year int) (time.Month, int) {
	if d.IsLeapDay() && !IsLeapYear(year) {
		return time.February, 28
	}
	return d.Month, d.Day
}

// OccurrenceIn returns local midnight of the birthday in the given year.
func OccurrenceIn(d models.Date, year int, loc *time.Location) time.Time {
	month, dd := observed(d, year)
	return time.Date(year, month, dd, 0, 0, 0, 0, loc)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NextOccurrence returns local midnight of the first occurrence of d on or
// after the local date of after.
func NextOccurrence(d models.Date, after time.Time, offset int) time.Time {
	local := LocalNow(after, offset)
	today := midnight(local)
	next := OccurrenceIn(d, local.Year(), local.Location())
	if next.Before(today) {
		next = OccurrenceIn(d, local.Year()+1, local.Location())
	}
	return next
}

// DaysUntil counts whole local days from today to the next occurrence. It
// is zero on the birthday itself.
func DaysUntil(d models.Date, now time.Time, offset int) int {
	today := midnight(LocalNow(now, offset))
	return int(NextOccurrence(d, now, offset).Sub(today) / day)
}

// OccursOn reports whether the birthday falls on local's calendar date.
func OccursOn(d models.Date, local time.Time) bool {
	month, dd := observed(d, local.Year())
	return local.Month() == month && local.Day() == dd
}

// WakeDelay returns how long to sleep so the wake lands offset past the top
// of an hour, strictly after now.
func WakeDelay(now time.Time, offset time.Duration) time.Duration {
	next := now.Truncate(time.Hour).Add(offset)
	if !next.After(now) {
		next = next.Add(time.Hour)
	}
	return next.Sub(now)
}

// Entry is one member in an upcoming birthdays list.
type Entry struct {
	MemberID  string
	Record    models.BirthdayRecord
	Next      time.Time
	DaysUntil int
}

// Upcoming lists members whose next birthday is fewer than window days away,
// sorted by occurrence then member id. Unreadable records are returned
// separately so the caller can report them.
func Upcoming(
	members map[string]models.BirthdayRecord,
	now time.Time,
	offset int,
	window int,
) (entries []Entry, unreadable []string) {
	for id, record := range members {
		if !record.Readable() {
			unreadable = append(unreadable, id)
			continue
		}
		days := DaysUntil(record.Date, now, offset)
		if days >= window {
			continue
		}
		entries = append(entries, Entry{
			MemberID:  id,
			Record:    record,
			Next:      NextOccurrence(record.Date, now, offset),
			DaysUntil: days,
		})
	}
	SortEntries(entries)
	sort.Strings(unreadable)
	return
}

// SortEntries orders entries by next occurrence, ties broken by member id.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Next.Equal(entries[j].Next) {
			return entries[i].Next.Before(entries[j].Next)
		}
		return entries[i].MemberID < entries[j].MemberID
	})
}
