// Package planner builds the day-by-day study calendar leading up to the exam.
package planner

import (
	"time"

	"github.com/p-n-ai/pai-studio/internal/progress"
)

// DeepReview fills review days once every unfinished topic has been scheduled.
const DeepReview = "Ripasso approfondito"

// MinReviewDays is the minimum length of the review tail.
const MinReviewDays = 7

// CalendarDay is one day of the plan.
type CalendarDay struct {
	Date   time.Time `json:"date"`
	Topics []string  `json:"topics"`
	Review bool      `json:"review"`
}

// Split returns how many of totalDays are reserved for review and how many
// for first-pass study.
func Split(totalDays int) (reviewDays, studyDays int) {
	if totalDays <= 0 {
		return 0, 0
	}
	reviewDays = max(MinReviewDays, totalDays/10)
	reviewDays = min(reviewDays, totalDays)
	return reviewDays, totalDays - reviewDays
}

// Build lays out totalDays days starting at start. Topics are spread
// round-robin over the study days in catalog order; each review day then
// takes the next topic that is not completed, falling back to DeepReview.
// The result depends only on its arguments.
func Build(topics []string, state map[string]progress.Status, totalDays int, start time.Time) []CalendarDay {
	if totalDays <= 0 {
		return []CalendarDay{}
	}
	_, studyDays := Split(totalDays)

	first := DateOf(start)
	plan := make([]CalendarDay, totalDays)
	for k := range plan {
		plan[k] = CalendarDay{
			Date:   first.AddDate(0, 0, k),
			Topics: []string{},
			Review: k >= studyDays,
		}
	}

	if studyDays > 0 {
		for i, topic := range topics {
			d := i % studyDays
			plan[d].Topics = append(plan[d].Topics, topic)
		}
	}

	var pending []string
	for _, topic := range topics {
		if state[topic] != progress.Completed {
			pending = append(pending, topic)
		}
	}
	for k := studyDays; k < totalDays; k++ {
		if i := k - studyDays; i < len(pending) {
			plan[k].Topics = []string{pending[i]}
		} else {
			plan[k].Topics = []string{DeepReview}
		}
	}
	return plan
}

// DateOf returns the calendar date of t as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysUntil returns the number of calendar days from today to exam. It is
// zero or negative once the exam day has arrived.
func DaysUntil(today, exam time.Time) int {
	return int(DateOf(exam).Sub(DateOf(today)).Hours() / 24)
}

// Day returns the plan entry for the calendar date of date.
func Day(plan []CalendarDay, date time.Time) (CalendarDay, bool) {
	want := DateOf(date)
	for _, d := range plan {
		if d.Date.Equal(want) {
			return d, true
		}
	}
	return CalendarDay{}, false
}

// Month identifies a calendar month covered by a plan.
type Month struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// Months lists the months spanned by plan, in order.
func Months(plan []CalendarDay) []Month {
	var out []Month
	for _, d := range plan {
		m := Month{Year: d.Date.Year(), Month: d.Date.Month()}
		if len(out) == 0 || out[len(out)-1] != m {
			out = append(out, m)
		}
	}
	return out
}

// InMonth returns the plan days that fall in m.
func InMonth(plan []CalendarDay, m Month) []CalendarDay {
	var out []CalendarDay
	for _, d := range plan {
		if d.Date.Year() == m.Year && d.Date.Month() == m.Month {
			out = append(out, d)
		}
	}
	return out
}
