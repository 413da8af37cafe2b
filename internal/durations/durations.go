// Package durations derives how long a deed spent in each status from the
// status-changed entries of its ledger. Nothing here is stored.
package durations

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/mortgage-deed-signing/internal/domain/audit"
	"github.com/mortgage-deed-signing/internal/domain/deed"
	"github.com/mortgage-deed-signing/internal/domain/shared"
	"github.com/mortgage-deed-signing/internal/ledger"
)

// Interval is one continuous stay in a status. End is nil while the deed is
// still in it.
type Interval struct {
	Status deed.Status `json:"status"`
	Start  time.Time   `json:"entered_at"`
	End    *time.Time  `json:"exited_at"`
}

func (i Interval) Open() bool { return i.End == nil }

// Duration measures a closed interval, or an open one up to now.
func (i Interval) Duration(now time.Time) time.Duration {
	end := now
	if i.End != nil {
		end = *i.End
	}
	if end.Before(i.Start) {
		return 0
	}
	return end.Sub(i.Start)
}

// Intervals replays a deed's history. The deed starts in CREATED at
// createdAt; every status-changed entry closes the current interval and opens
// the next. Entries must be ordered by timestamp; others are skipped.
func Intervals(createdAt time.Time, entries []*audit.Entry) []Interval {
	current := Interval{Status: deed.StatusCreated, Start: createdAt}
	out := make([]Interval, 0, len(entries)+1)
	for _, e := range entries {
		if e.Action != audit.ActionStatusChanged || e.NewStatus == "" {
			continue
		}
		end := e.CreatedAt
		current.End = &end
		out = append(out, current)
		current = Interval{Status: deed.Status(e.NewStatus), Start: e.CreatedAt}
	}
	return append(out, current)
}

// Totals sums the time spent per status, measuring open intervals up to now.
func Totals(intervals []Interval, now time.Time) map[deed.Status]time.Duration {
	totals := make(map[deed.Status]time.Duration, len(intervals))
	for _, i := range intervals {
		totals[i.Status] += i.Duration(now)
	}
	return totals
}

type DeedReader interface {
	GetByID(ctx context.Context, id int64) (*deed.Deed, error)
}

type Accumulator struct {
	deeds  DeedReader
	ledger *ledger.Ledger
	now    func() time.Time
}

func NewAccumulator(deeds DeedReader, l *ledger.Ledger, now func() time.Time) *Accumulator {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Accumulator{deeds: deeds, ledger: l, now: now}
}

type Report struct {
	DeedID        int64                         `json:"deed_id"`
	CurrentStatus deed.Status                   `json:"current_status"`
	Intervals     []Interval                    `json:"intervals"`
	Durations     map[deed.Status]time.Duration `json:"-"`
	ComputedAt    time.Time                     `json:"computed_at"`
}

// StatusDurations walks the deed's ledger lazily and reports the time spent
// in every status it has entered, the current one up to now.
func (a *Accumulator) StatusDurations(ctx context.Context, deedID int64) (*Report, error) {
	d, err := a.deeds.GetByID(ctx, deedID)
	if err != nil {
		var notFound deed.ErrDeedNotFound
		if errors.As(err, &notFound) {
			return nil, shared.ErrNotFound{Resource: "deed", Key: strconv.FormatInt(deedID, 10)}
		}
		return nil, shared.ErrStorage{Op: "load deed", Err: err}
	}

	var changes []*audit.Entry
	for e, err := range a.ledger.ListForDeed(ctx, deedID) {
		if err != nil {
			return nil, err
		}
		if e.Action == audit.ActionStatusChanged {
			changes = append(changes, e)
		}
	}

	now := a.now()
	intervals := Intervals(d.CreatedAt, changes)
	return &Report{
		DeedID:        deedID,
		CurrentStatus: d.Status,
		Intervals:     intervals,
		Durations:     Totals(intervals, now),
		ComputedAt:    now,
	}, nil
}
