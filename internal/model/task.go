package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTask is returned when a task fails validation.
var ErrInvalidTask = errors.New("invalid task")

// Status tracks progress of a task. It is independent of IsCompleted.
type Status string

const (
	StatusNotStarted Status = "Not Started"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusNotStarted, StatusInProgress, StatusDone}

// Months are the period labels of the top level of the planner.
var Months = []string{"Month 1", "Month 2", "Month 3", "Month 4", "Month 5", "Month 6"}

// DaysOfWeek are the day labels, Monday first.
var DaysOfWeek = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// WeeksPerMonth is the number of weeks every month is split into.
const WeeksPerMonth = 4

// Week is a 1-based week number inside a month.
// The spreadsheet endpoint may serialize it as a string, so decoding accepts
// both `2` and `"2"` and always yields a number.
type Week int

func (w *Week) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*w = 0
		return nil
	}
	raw = strings.TrimSpace(strings.Trim(raw, `"`))
	if raw == "" {
		*w = 0
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("parse week %s: %w", data, err)
	}
	if f != math.Trunc(f) {
		return fmt.Errorf("parse week %s: not a whole number", data)
	}
	*w = Week(f)
	return nil
}

// Valid reports whether w is inside 1..WeeksPerMonth.
func (w Week) Valid() bool {
	return w >= 1 && w <= WeeksPerMonth
}

// Task is a single item on a day of the planner.
type Task struct {
	ID          string    `json:"id" yaml:"id"`
	Month       string    `json:"month" yaml:"month"`
	Week        Week      `json:"week" yaml:"week"`
	Day         string    `json:"day" yaml:"day"`
	Title       string    `json:"task" yaml:"task"`
	IsCompleted bool      `json:"is_completed" yaml:"is_completed"`
	Status      Status    `json:"status" yaml:"status"`
	Notes       string    `json:"notes" yaml:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UserEmail   string    `json:"user_email" yaml:"user_email"`
}

// Validate checks the calendar position, status and title of the task.
func (t Task) Validate() error {
	switch {
	case strings.TrimSpace(t.ID) == "":
		return fmt.Errorf("%w: id is required", ErrInvalidTask)
	case strings.TrimSpace(t.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidTask)
	case !ValidMonth(t.Month):
		return fmt.Errorf("%w: unknown month %q", ErrInvalidTask, t.Month)
	case !t.Week.Valid():
		return fmt.Errorf("%w: week %d out of range", ErrInvalidTask, t.Week)
	case !ValidDay(t.Day):
		return fmt.Errorf("%w: unknown day %q", ErrInvalidTask, t.Day)
	case !ValidStatus(t.Status):
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTask, t.Status)
	}
	return nil
}

// Filter selects tasks by calendar position. Month is required;
// a zero Week or empty Day matches any value.
type Filter struct {
	Month string
	Week  Week
	Day   string
}

// Match reports whether t falls inside the filter.
func (f Filter) Match(t Task) bool {
	if t.Month != f.Month {
		return false
	}
	if f.Week != 0 && t.Week != f.Week {
		return false
	}
	if f.Day != "" && t.Day != f.Day {
		return false
	}
	return true
}

func ValidMonth(month string) bool {
	return contains(Months, month)
}

func ValidDay(day string) bool {
	return contains(DaysOfWeek, day)
}

func ValidStatus(status Status) bool {
	for _, s := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// ParseStatus matches a status label case-insensitively.
func ParseStatus(raw string) (Status, error) {
	for _, s := range Statuses {
		if strings.EqualFold(strings.TrimSpace(raw), string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// ParseDay matches a weekday label case-insensitively, also accepting the
// three letter abbreviation.
func ParseDay(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	for _, d := range DaysOfWeek {
		if strings.EqualFold(raw, d) || (len(raw) == 3 && strings.EqualFold(raw, d[:3])) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown day %q", raw)
}

// ParseMonth accepts either a full label ("Month 2") or its number ("2").
func ParseMonth(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	for i, m := range Months {
		if strings.EqualFold(raw, m) || raw == strconv.Itoa(i+1) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown month %q", raw)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
