// Package progress summarizes attempt history for the progress report.
package progress

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/LorenzoCecattoPaim/Math/internal/model"
)

// DefaultSubject is assumed for attempts whose exercise is unknown.
const DefaultSubject = "algebra"

// Day aggregates the attempts of one calendar day.
type Day struct {
	Date    time.Time
	Total   int
	Correct int
}

// Subject aggregates the attempts on one subject.
type Subject struct {
	Subject    string
	Name       string
	Total      int
	Correct    int
	Percentage int
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Streak counts consecutive days with at least one attempt, starting today
// or yesterday. Days are taken in now's location.
func Streak(attempts []model.Attempt, now time.Time) int {
	loc := now.Location()

	seen := make(map[time.Time]struct{}, len(attempts))
	days := make([]time.Time, 0, len(attempts))
	for _, a := range attempts {
		day := startOfDay(a.CreatedAt, loc)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	slices.SortFunc(days, func(a, b time.Time) int { return b.Compare(a) })

	streak := 0
	check := startOfDay(now, loc)
	for _, day := range days {
		if !day.Equal(check) && !day.Equal(check.AddDate(0, 0, -1)) {
			break
		}
		streak++
		check = day
	}

	return streak
}

// LastDays returns one entry per day for the n days ending today, oldest
// first.
func LastDays(attempts []model.Attempt, now time.Time, n int) []Day {
	if n <= 0 {
		return nil
	}
	loc := now.Location()
	today := startOfDay(now, loc)

	out := make([]Day, n)
	index := make(map[time.Time]int, n)
	for i := range out {
		day := today.AddDate(0, 0, i-n+1)
		out[i].Date = day
		index[day] = i
	}

	for _, a := range attempts {
		i, ok := index[startOfDay(a.CreatedAt, loc)]
		if !ok {
			continue
		}
		out[i].Total++
		if a.IsCorrect {
			out[i].Correct++
		}
	}

	return out
}

// BySubject groups attempts by the subject of their exercise, most
// practiced first.
func BySubject(attempts []model.Attempt) []Subject {
	bySlug := make(map[string]*Subject)
	for _, a := range attempts {
		slug := DefaultSubject
		if a.Exercise != nil && a.Exercise.Subject != "" {
			slug = a.Exercise.Subject
		}
		s, ok := bySlug[slug]
		if !ok {
			s = &Subject{Subject: slug, Name: model.SubjectName(slug)}
			bySlug[slug] = s
		}
		s.Total++
		if a.IsCorrect {
			s.Correct++
		}
	}

	out := make([]Subject, 0, len(bySlug))
	for _, s := range bySlug {
		s.Percentage = int(math.Round(float64(s.Correct) / float64(s.Total) * 100))
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b Subject) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Subject, b.Subject)
	})

	return out
}
