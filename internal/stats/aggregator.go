// Package stats produces read-only snapshots over all deeds: counts per
// status and the time deeds spend in each status.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/mortgage-deed-signing/internal/domain/audit"
	"github.com/mortgage-deed-signing/internal/domain/deed"
	"github.com/mortgage-deed-signing/internal/domain/shared"
	"github.com/mortgage-deed-signing/internal/durations"
	"github.com/mortgage-deed-signing/internal/platform/metrics"
)

// DeedCounter is the part of deed.Repository the aggregator reads.
type DeedCounter interface {
	CountByStatus(ctx context.Context) (map[deed.Status]int64, error)
	CountCooperatives(ctx context.Context) (int64, error)
	CountBorrowers(ctx context.Context) (int64, error)
	ListLifecycles(ctx context.Context) ([]deed.Lifecycle, error)
}

type StatusChangeLister interface {
	ListStatusChanges(ctx context.Context) ([]*audit.Entry, error)
}

// Cache holds recent snapshots. A nil Cache disables caching.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
}

type Aggregator struct {
	deeds   DeedCounter
	changes StatusChangeLister
	cache   Cache
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Aggregator)

func WithCache(c Cache, ttl time.Duration) Option {
	return func(a *Aggregator) {
		a.cache = c
		a.ttl = ttl
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func NewAggregator(deeds DeedCounter, changes StatusChangeLister, logger *slog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		deeds:   deeds,
		changes: changes,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type Summary struct {
	TotalDeeds              int64            `json:"total_deeds"`
	ByStatus                map[string]int64 `json:"by_status"`
	TotalCooperatives       int64            `json:"total_cooperatives"`
	AverageBorrowersPerDeed float64          `json:"average_borrowers_per_deed"`
	GeneratedAt             time.Time        `json:"generated_at"`
}

// Summary counts deeds per current status. Every status is present, zero
// counts included.
func (a *Aggregator) Summary(ctx context.Context) (*Summary, error) {
	var cached Summary
	if a.lookup(ctx, "summary", &cached) {
		return &cached, nil
	}

	counts, err := a.deeds.CountByStatus(ctx)
	if err != nil {
		return nil, storageError("count deeds by status", err)
	}
	coops, err := a.deeds.CountCooperatives(ctx)
	if err != nil {
		return nil, storageError("count cooperatives", err)
	}
	borrowers, err := a.deeds.CountBorrowers(ctx)
	if err != nil {
		return nil, storageError("count borrowers", err)
	}

	s := &Summary{
		ByStatus:          make(map[string]int64, len(deed.Statuses)),
		TotalCooperatives: coops,
		GeneratedAt:       a.now(),
	}
	for _, status := range deed.Statuses {
		s.ByStatus[string(status)] = counts[status]
		s.TotalDeeds += counts[status]
	}
	if s.TotalDeeds > 0 {
		s.AverageBorrowersPerDeed = round2(float64(borrowers) / float64(s.TotalDeeds))
	}

	a.store(ctx, "summary", s)
	return s, nil
}

// StatusDuration aggregates the closed intervals spent in one status.
type StatusDuration struct {
	Status       string  `json:"status"`
	AverageHours float64 `json:"average_hours"`
	MinHours     float64 `json:"min_hours"`
	MaxHours     float64 `json:"max_hours"`
	Samples      int     `json:"samples"`
}

// AverageStatusDurations averages, per status, the intervals deeds have
// already left. Open intervals of in-flight deeds are excluded.
func (a *Aggregator) AverageStatusDurations(ctx context.Context) ([]StatusDuration, error) {
	var cached []StatusDuration
	if a.lookup(ctx, "status-durations", &cached) {
		return cached, nil
	}

	histories, err := a.histories(ctx)
	if err != nil {
		return nil, err
	}

	type acc struct {
		total, min, max time.Duration
		n               int
	}
	byStatus := make(map[deed.Status]*acc, len(deed.Statuses))
	for _, h := range histories {
		for _, i := range durations.Intervals(h.createdAt, h.changes) {
			if i.Open() {
				continue
			}
			d := i.Duration(time.Time{})
			x, ok := byStatus[i.Status]
			if !ok {
				x = &acc{min: d, max: d}
				byStatus[i.Status] = x
			}
			x.total += d
			x.n++
			x.min = min(x.min, d)
			x.max = max(x.max, d)
		}
	}

	out := make([]StatusDuration, 0, len(deed.Statuses))
	for _, status := range deed.Statuses {
		sd := StatusDuration{Status: string(status)}
		if x, ok := byStatus[status]; ok {
			sd.Samples = x.n
			sd.AverageHours = hours(x.total / time.Duration(x.n))
			sd.MinHours = hours(x.min)
			sd.MaxHours = hours(x.max)
		}
		out = append(out, sd)
	}

	a.store(ctx, "status-durations", out)
	return out, nil
}

// TimelinePoint counts deeds created and completed on one UTC day.
type TimelinePoint struct {
	Date      string `json:"date"`
	Created   int64  `json:"created"`
	Completed int64  `json:"completed"`
}

const (
	DefaultTimelineDays = 30
	MaxTimelineDays     = 365
)

// Timeline returns one point per day for the last days days, today included,
// oldest first.
func (a *Aggregator) Timeline(ctx context.Context, days int) ([]TimelinePoint, error) {
	if days < 1 || days > MaxTimelineDays {
		return nil, shared.ErrValidation{Field: "days", Message: fmt.Sprintf("must be between 1 and %d", MaxTimelineDays)}
	}
	key := "timeline:" + strconv.Itoa(days)
	var cached []TimelinePoint
	if a.lookup(ctx, key, &cached) {
		return cached, nil
	}

	today := a.now().UTC().Truncate(24 * time.Hour)
	first := today.AddDate(0, 0, -(days - 1))
	points := make([]TimelinePoint, days)
	index := make(map[string]int, days)
	for i := range points {
		date := first.AddDate(0, 0, i).Format(time.DateOnly)
		points[i].Date = date
		index[date] = i
	}
	bump := func(at time.Time, completed bool) {
		i, ok := index[at.UTC().Format(time.DateOnly)]
		if !ok {
			return
		}
		if completed {
			points[i].Completed++
		} else {
			points[i].Created++
		}
	}

	lifecycles, err := a.deeds.ListLifecycles(ctx)
	if err != nil {
		return nil, storageError("list deed lifecycles", err)
	}
	for _, l := range lifecycles {
		bump(l.CreatedAt, false)
	}
	changes, err := a.changes.ListStatusChanges(ctx)
	if err != nil {
		return nil, storageError("list status changes", err)
	}
	for _, e := range changes {
		if e.NewStatus == string(deed.StatusCompleted) {
			bump(e.CreatedAt, true)
		}
	}

	a.store(ctx, key, points)
	return points, nil
}

type history struct {
	createdAt time.Time
	changes   []*audit.Entry
}

// histories groups the status changes of every deed, oldest first.
func (a *Aggregator) histories(ctx context.Context) ([]history, error) {
	lifecycles, err := a.deeds.ListLifecycles(ctx)
	if err != nil {
		return nil, storageError("list deed lifecycles", err)
	}
	changes, err := a.changes.ListStatusChanges(ctx)
	if err != nil {
		return nil, storageError("list status changes", err)
	}

	byDeed := make(map[int64][]*audit.Entry, len(lifecycles))
	for _, e := range changes {
		if e.DeedID != nil {
			byDeed[*e.DeedID] = append(byDeed[*e.DeedID], e)
		}
	}
	out := make([]history, 0, len(lifecycles))
	for _, l := range lifecycles {
		out = append(out, history{createdAt: l.CreatedAt, changes: byDeed[l.DeedID]})
	}
	return out, nil
}

func (a *Aggregator) lookup(ctx context.Context, key string, dst any) bool {
	if a.cache == nil {
		return false
	}
	hit, err := a.cache.Get(ctx, key, dst)
	if err != nil {
		a.logger.Warn("Stats cache read failed", "key", key, "error", err)
		return false
	}
	a.metrics.ObserveCacheLookup(hit)
	return hit
}

func (a *Aggregator) store(ctx context.Context, key string, v any) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Set(ctx, key, v, a.ttl); err != nil {
		a.logger.Warn("Stats cache write failed", "key", key, "error", err)
	}
}

func storageError(op string, err error) error {
	if _, ok := err.(shared.ErrStorage); ok {
		return err
	}
	return shared.ErrStorage{Op: op, Err: err}
}

func hours(d time.Duration) float64 {
	return round2(d.Hours())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
