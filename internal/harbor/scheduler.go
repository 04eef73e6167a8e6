package harbor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TaskPost is the only refresh task implemented. Comment and author
// refresh are recognized names but not built, and asking for them is a
// configuration error rather than a silent no-op.
const TaskPost = "post"

// ParseRefreshWindow converts a duration keyword into a total running
// time for the refresh loop. Accepted keywords are minute, hour, day,
// week and month, optionally counted like "3.day". Empty means no
// bound: the loop runs until every post archives or the context is
// canceled.
func ParseRefreshWindow(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	count := 1
	keyword := s
	if before, after, found := strings.Cut(s, "."); found {
		n, err := strconv.Atoi(before)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("bad duration count in %q", s)
		}
		count = n
		keyword = after
	}
	var unit time.Duration
	switch keyword {
	case "minute":
		unit = time.Minute
	case "hour":
		unit = time.Hour
	case "day":
		unit = 24 * time.Hour
	case "week":
		unit = 7 * 24 * time.Hour
	case "month":
		unit = 30 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("unknown duration keyword %q", keyword)
	}
	return time.Duration(count) * unit, nil
}

// refreshInterval sizes the pause between metric passes by how many
// live posts the next pass has to visit. Small datasets refresh every
// few minutes; large ones back off to a daily cadence so a pass
// finishes before the next one is due.
func refreshInterval(activePosts int) time.Duration {
	switch {
	case activePosts <= 1000:
		return 10 * time.Minute
	case activePosts <= 3000:
		return 30 * time.Minute
	case activePosts <= 6000:
		return time.Hour
	case activePosts <= 36000:
		return 6 * time.Hour
	case activePosts <= 72000:
		return 12 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Scheduler runs metric refresh passes in a loop, re-sizing the pause
// after every pass from the number of posts still live.
type Scheduler struct {
	collector *Collector
	logger    Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewScheduler(collector *Collector, logger Logger) *Scheduler {
	return &Scheduler{
		collector: collector,
		logger:    logger,
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// Run refreshes the given task kind until the window elapses, the
// context is canceled, or every stored post has been archived or
// removed, and reports the number of completed passes. A pass already
// underway always finishes before a stop takes effect. Time spent in a
// pass counts toward the interval, so only the remainder is slept.
// window <= 0 means no time bound.
func (s *Scheduler) Run(ctx context.Context, kind string, window time.Duration) (int, error) {
	if kind != TaskPost {
		return 0, fmt.Errorf("unknown refresh task %q: only %q is implemented", kind, TaskPost)
	}

	var deadline time.Time
	if window > 0 {
		deadline = s.now().Add(window)
	}

	passes := 0
	for {
		passStart := s.now()
		remaining, stats, err := s.collector.RefreshPosts(ctx)
		if err != nil {
			return passes, err
		}
		passes++
		s.logger.Info("refresh pass complete", "pass", passes,
			"refreshed", stats.Inserted, "failed", stats.Failed, "remaining", remaining)
		if remaining == 0 {
			s.logger.Info("no live posts left, stopping refresh loop", "passes", passes)
			return passes, nil
		}

		interval := refreshInterval(remaining)
		pause := interval - s.now().Sub(passStart)
		if pause < 0 {
			pause = 0
		}
		if !deadline.IsZero() && !s.now().Add(pause).Before(deadline) {
			s.logger.Info("refresh window elapsed", "passes", passes)
			return passes, nil
		}
		s.logger.Debug("next refresh pass scheduled", "pause", pause.String())
		if pause > 0 {
			if err := s.sleep(ctx, pause); err != nil {
				return passes, err
			}
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
