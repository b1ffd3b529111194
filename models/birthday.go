package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DateResponseExample is the layout used when a birthday is shown to users.
const DateResponseExample = "January 2"

// referenceYear is a leap year so that Feb 29 counts as a valid birthday.
const referenceYear = 2000

// Date is a calendar day without a year. The year is never captured.
type Date struct {
	Month time.Month
	Day   int
}

// Valid reports whether the date exists in a leap year.
func (d Date) Valid() bool {
	if d.Month < time.January || d.Month > time.December || d.Day < 1 {
		return false
	}
	t := time.Date(referenceYear, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	return t.Month() == d.Month && t.Day() == d.Day
}

// IsLeapDay reports whether the date is Feb 29.
func (d Date) IsLeapDay() bool {
	return d.Month == time.February && d.Day == 29
}

// String returns the persisted "M-D" form.
func (d Date) String() string {
	return fmt.Sprintf("%d-%d", int(d.Month), d.Day)
}

// Format renders the date for humans, e.g. "July 4".
func (d Date) Format() string {
	return time.Date(referenceYear, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Format(DateResponseExample)
}

// BirthdayRecord is a member's birthday within one community.
type BirthdayRecord struct {
	// Name is the member's display name at the time of the last write.
	Name string
	Date Date
	// Raw holds stored date text that could not be parsed. It is only used
	// for legacy data and is written back untouched.
	Raw string
}

// Readable reports whether the stored date could be parsed.
func (r BirthdayRecord) Readable() bool {
	return r.Date.Valid()
}

// StoredDate returns the date text as it is persisted.
func (r BirthdayRecord) StoredDate() string {
	if !r.Date.Valid() {
		return r.Raw
	}
	return r.Date.String()
}

// Birthday is the sqlite row for a member's birthday.
type Birthday struct {
	gorm.Model
	GuildID string `gorm:"uniqueIndex:idx_guild_user"`
	UserID  string `gorm:"uniqueIndex:idx_guild_user"`
	Name    string
	Date    string
}
