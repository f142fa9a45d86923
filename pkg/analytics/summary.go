package analytics

import (
	"sort"
	"time"
)

// Metrics are the headline counters of a report.
type Metrics struct {
	TotalEvents     int `json:"totalEvents"`
	TourStarts      int `json:"tourStarts"`
	TourCompletions int `json:"tourCompletions"`
	TourSkips       int `json:"tourSkips"`
	StepCompletions int `json:"stepCompletions"`
	UniqueSessions  int `json:"uniqueSessions"`
}

// StepStats is the funnel entry for one step.
type StepStats struct {
	Views       int     `json:"views"`
	Completions int     `json:"completions"`
	DropOff     float64 `json:"dropOff"`
}

// DailyPoint counts starts and completions for one UTC day.
type DailyPoint struct {
	Date        string `json:"date"`
	Views       int    `json:"views"`
	Completions int    `json:"completions"`
}

// Report is the dashboard view of a set of events.
type Report struct {
	Metrics        Metrics              `json:"metrics"`
	Steps          map[string]StepStats `json:"stepAnalytics"`
	TimeSeries     []DailyPoint         `json:"timeSeries"`
	CompletionRate float64              `json:"completionRate"`
}

// Summarize aggregates events the way the dashboard reports them.
//
// A step's views are counted when the event right before one of its
// session's step_completed events names it, so the first step of a tour
// never gets views and its drop-off reads 0. Dashboards depend on these
// exact numbers.
func Summarize(events []Event) Report {
	r := Report{Steps: make(map[string]StepStats)}
	r.Metrics.TotalEvents = len(events)

	sessions := make(map[string][]Event)
	var order []string
	daily := make(map[string]*DailyPoint)

	for _, ev := range events {
		switch ev.Type {
		case TourStarted:
			r.Metrics.TourStarts++
		case TourCompleted:
			r.Metrics.TourCompletions++
		case TourSkipped:
			r.Metrics.TourSkips++
		case StepCompleted:
			r.Metrics.StepCompletions++
		}

		if _, ok := sessions[ev.SessionID]; !ok {
			order = append(order, ev.SessionID)
		}
		sessions[ev.SessionID] = append(sessions[ev.SessionID], ev)

		date := ev.Timestamp.UTC().Format(time.DateOnly)
		p, ok := daily[date]
		if !ok {
			p = &DailyPoint{Date: date}
			daily[date] = p
		}
		switch ev.Type {
		case TourStarted:
			p.Views++
		case TourCompleted:
			p.Completions++
		}
	}
	r.Metrics.UniqueSessions = len(sessions)

	for _, id := range order {
		evs := sessions[id]
		sort.SliceStable(evs, func(i, j int) bool { return evs[i].Timestamp.Before(evs[j].Timestamp) })

		for i, ev := range evs {
			if ev.Type != StepCompleted || ev.StepID == "" {
				continue
			}
			s := r.Steps[ev.StepID]
			s.Completions++
			r.Steps[ev.StepID] = s

			if i > 0 && evs[i-1].StepID != "" {
				prev := r.Steps[evs[i-1].StepID]
				prev.Views++
				r.Steps[evs[i-1].StepID] = prev
			}
		}
	}

	for id, s := range r.Steps {
		if s.Views > 0 {
			s.DropOff = float64(s.Views-s.Completions) / float64(s.Views) * 100
		}
		r.Steps[id] = s
	}

	r.TimeSeries = make([]DailyPoint, 0, len(daily))
	for _, p := range daily {
		r.TimeSeries = append(r.TimeSeries, *p)
	}
	sort.Slice(r.TimeSeries, func(i, j int) bool { return r.TimeSeries[i].Date < r.TimeSeries[j].Date })

	if r.Metrics.TourStarts > 0 {
		r.CompletionRate = float64(r.Metrics.TourCompletions) / float64(r.Metrics.TourStarts) * 100
	}
	return r
}
