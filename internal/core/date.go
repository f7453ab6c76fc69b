package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of a Date.
const DateLayout = "2006-01-02"

// MonthLayout is the format of a selected month in query strings.
const MonthLayout = "2006-01"

var ErrInvalidDate = errors.New("invalid date")

// Date is a calendar day. Values built with NewDate or DateOf are always
// midnight UTC so that comparisons ignore time of day.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day. Out of range values are
// normalized the way time.Date does (day 0 is the last day of the previous month).
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// Today returns the current calendar day in the local timezone.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp, truncated to its day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// ParseMonth parses YYYY-MM (or a full date) into the first day of that month.
func ParseMonth(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(MonthLayout, s); err == nil {
		return DateOf(t), nil
	}
	d, err := ParseDate(s)
	if err != nil {
		return Date{}, err
	}
	return d.StartOfMonth(), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time.Format(DateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON overrides the promoted time.Time encoding.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(b))
	}
	return d.UnmarshalText([]byte(s))
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrMissingDate
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// StartOfDay strips any time of day carried by a hand-built Date.
func (d Date) StartOfDay() Date {
	return DateOf(d.Time)
}

// OnOrBefore reports whether d falls on or before other, by calendar day.
func (d Date) OnOrBefore(other Date) bool {
	return !d.StartOfDay().Time.After(other.StartOfDay().Time)
}

// SameDay reports whether d and other are the same calendar day.
func (d Date) SameDay(other Date) bool {
	return d.StartOfDay().Time.Equal(other.StartOfDay().Time)
}

// SameMonth reports whether d and other fall in the same calendar month.
func (d Date) SameMonth(other Date) bool {
	return d.Year() == other.Year() && d.Month() == other.Month()
}

// StartOfMonth returns the first day of d's month.
func (d Date) StartOfMonth() Date {
	return NewDate(d.Year(), d.Month(), 1)
}

// EndOfMonth returns the last day of d's month.
func (d Date) EndOfMonth() Date {
	return NewDate(d.Year(), d.Month()+1, 0)
}

// AddMonths steps whole months from the first day of d's month.
func (d Date) AddMonths(n int) Date {
	return NewDate(d.Year(), d.Month()+n, 1)
}

// MonthBefore reports whether d's month is strictly earlier than other's.
func (d Date) MonthBefore(other Date) bool {
	if d.Year() != other.Year() {
		return d.Year() < other.Year()
	}
	return d.Month() < other.Month()
}

// MonthKey formats the month as YYYY-MM.
func (d Date) MonthKey() string {
	return d.Time.Format(MonthLayout)
}
