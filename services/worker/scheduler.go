package worker

import (
	"context"
	mathrand "math/rand"
	"time"

	"mkobal/avtowatch/logger"
)

// Mode is the scheduling regime for a moment in time.
type Mode string

const (
	// ModeNight polls hourly between 00:00 and 06:00 local time, when
	// dealers list almost nothing.
	ModeNight Mode = "night"
	// ModeDay polls every few minutes, randomized so the site never
	// sees a fixed beat.
	ModeDay Mode = "day"
)

// nightEndHour is the local hour at which day mode begins.
const nightEndHour = 6

// SchedulerOptions tune a Scheduler. Zero values fall back to hourly
// nights and 2 to 5 minute days in UTC.
type SchedulerOptions struct {
	Location      *time.Location
	NightInterval time.Duration
	DayMin        time.Duration
	DayMax        time.Duration
	Rand          *mathrand.Rand
	Now           func() time.Time
}

// Scheduler decides how long to wait between cycles. The delay is
// recomputed after every cycle completion, so a cycle finishing right
// at the day/night boundary always gets the new regime's delay.
type Scheduler struct {
	location      *time.Location
	nightInterval time.Duration
	dayMin        time.Duration
	dayMax        time.Duration
	rnd           *mathrand.Rand
	now           func() time.Time
	log           *logger.Logger
}

// NewScheduler creates a scheduler from opts.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.NightInterval <= 0 {
		opts.NightInterval = time.Hour
	}
	if opts.DayMin <= 0 {
		opts.DayMin = 2 * time.Minute
	}
	if opts.DayMax < opts.DayMin {
		opts.DayMax = 5 * time.Minute
	}
	if opts.Rand == nil {
		opts.Rand = mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Scheduler{
		location:      opts.Location,
		nightInterval: opts.NightInterval,
		dayMin:        opts.DayMin,
		dayMax:        opts.DayMax,
		rnd:           opts.Rand,
		now:           opts.Now,
		log:           logger.ForScheduler(),
	}
}

// NextDelay returns the wait before the next cycle for the given
// moment. Night hours get exactly the night interval; day hours get a
// uniformly drawn whole number of minutes from the day window.
func (s *Scheduler) NextDelay(now time.Time) (time.Duration, Mode) {
	if now.In(s.location).Hour() < nightEndHour {
		return s.nightInterval, ModeNight
	}

	minMinutes := int(s.dayMin / time.Minute)
	maxMinutes := int(s.dayMax / time.Minute)
	if minMinutes < 1 {
		minMinutes = 1
	}
	if maxMinutes < minMinutes {
		maxMinutes = minMinutes
	}

	minutes := minMinutes + s.rnd.Intn(maxMinutes-minMinutes+1)
	return time.Duration(minutes) * time.Minute, ModeDay
}

// Next is NextDelay at the scheduler's current clock.
func (s *Scheduler) Next() (time.Duration, Mode) {
	return s.NextDelay(s.now())
}

// Run executes cycles until ctx is canceled: one right away, then one
// after each freshly computed delay. Cycles never overlap, and
// cancellation during the wait stops scheduling without touching the
// finished cycle.
func (w *Worker) Run(ctx context.Context, sched *Scheduler) {
	for {
		if ctx.Err() != nil {
			w.log.Info().Msg("Worker loop stopped")
			return
		}

		w.RunCycle(ctx)

		delay, mode := sched.Next()
		sched.log.Info().
			Dur("delay", delay).
			Str("mode", string(mode)).
			Msg("Next cycle scheduled")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			w.log.Info().Msg("Worker loop stopped")
			return
		case <-timer.C:
		}
	}
}
