// Package worker runs monitoring cycles: it snapshots the active users,
// scrapes each user's search, detects new listings against the seen set
// and hands them to the notification dispatcher and event publisher.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mkobal/avtowatch/helpers"
	"mkobal/avtowatch/internal/detect"
	"mkobal/avtowatch/internal/model"
	"mkobal/avtowatch/internal/scraper"
	"mkobal/avtowatch/logger"
	"mkobal/avtowatch/pkg/errors"
	"mkobal/avtowatch/services/cache"
	"mkobal/avtowatch/services/notify"
	"mkobal/avtowatch/services/publisher"
	"mkobal/avtowatch/services/store"
)

// cooldownKey gates scraping site-wide after the site rate-limits us.
const cooldownKey = "cooldown:avtonet"

// Scraper fetches one user's current listings across all brand passes.
type Scraper interface {
	FetchAll(ctx context.Context, filters *model.FilterSpec) (*scraper.Result, error)
}

// Dispatcher delivers a batch of listings to one user's push channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID string, creds model.Credentials, listings []model.Listing) (notify.Result, error)
}

// Options bundles the injected dependencies of a Worker.
type Options struct {
	Store      store.Store
	Scraper    Scraper
	Dispatcher Dispatcher
	Publisher  publisher.Publisher
	Cache      cache.CacheService

	// Cooldown is how long scraping stays gated after a rate limit.
	Cooldown time.Duration

	// Concurrency bounds how many user pipelines run at once.
	Concurrency int

	// ErrorLog receives the persistent error trail.
	ErrorLog helpers.LoggerInterface
}

// Worker runs cycles over all active users.
type Worker struct {
	store       store.Store
	scraper     Scraper
	dispatcher  Dispatcher
	publisher   publisher.Publisher
	cache       cache.CacheService
	cooldown    time.Duration
	concurrency int
	errlog      helpers.LoggerInterface
	log         *logger.Logger

	mu         sync.Mutex
	lastReport *model.CycleReport
}

// New creates a worker from its dependencies.
func New(opts Options) *Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 5 * time.Minute
	}
	if opts.Publisher == nil {
		opts.Publisher = publisher.Noop{}
	}
	if opts.ErrorLog == nil {
		opts.ErrorLog = nopLogger{}
	}

	return &Worker{
		store:       opts.Store,
		scraper:     opts.Scraper,
		dispatcher:  opts.Dispatcher,
		publisher:   opts.Publisher,
		cache:       opts.Cache,
		cooldown:    opts.Cooldown,
		concurrency: opts.Concurrency,
		errlog:      opts.ErrorLog,
		log:         logger.ForWorker(),
	}
}

// RunCycle processes every active user once and reports the outcomes.
// The user snapshot is taken at the start; registrations landing midway
// wait for the next cycle. Once ctx is canceled no further user starts,
// but users already in flight run to completion.
func (w *Worker) RunCycle(ctx context.Context) *model.CycleReport {
	report := &model.CycleReport{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}
	defer func() {
		report.FinishedAt = time.Now()
		w.mu.Lock()
		w.lastReport = report
		w.mu.Unlock()
	}()

	users, err := w.store.ActiveUsers(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Listing active users failed")
		w.errlog.LogError("cycle", err)
		return report
	}
	report.Users = len(users)

	if len(users) == 0 {
		w.log.Debug().Msg("No active users")
		return report
	}

	w.log.Info().
		Str("cycle_id", report.ID).
		Int("users", len(users)).
		Msg("Cycle started")

	outcomes := make([]model.UserOutcome, len(users))

	if w.concurrency == 1 {
		// Sequential in snapshot order, the default against a
		// rate-sensitive site.
		for i := range users {
			if ctx.Err() != nil {
				outcomes[i] = canceledOutcome(users[i].UserID)
				continue
			}
			// An in-flight user finishes even during shutdown, so a
			// notified listing is never left unrecorded.
			outcomes[i] = w.processUser(context.WithoutCancel(ctx), users[i])
		}
	} else {
		sem := make(chan struct{}, w.concurrency)
		var wg sync.WaitGroup
		for i := range users {
			wg.Add(1)
			go func(i int, user model.User) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				if ctx.Err() != nil {
					outcomes[i] = canceledOutcome(user.UserID)
					return
				}
				outcomes[i] = w.processUser(context.WithoutCancel(ctx), user)
			}(i, users[i])
		}
		wg.Wait()
	}

	report.Outcomes = outcomes

	ok, failed, skipped := report.Counts()
	w.log.Info().
		Str("cycle_id", report.ID).
		Int("ok", ok).
		Int("failed", failed).
		Int("skipped", skipped).
		Int("notified", report.TotalNotified()).
		Dur("elapsed", time.Since(report.StartedAt)).
		Msg("Cycle complete")

	return report
}

// LastReport returns the report of the most recently finished cycle,
// or nil before the first one completes.
func (w *Worker) LastReport() *model.CycleReport {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastReport
}

// processUser runs one user's pipeline: scrape, detect, dispatch,
// record. Notifications go out before the seen set is written, and a
// listing detected as new is recorded even when its notification
// failed.
func (w *Worker) processUser(ctx context.Context, user model.User) (out model.UserOutcome) {
	out = model.UserOutcome{UserID: user.UserID, Status: model.OutcomeOK}

	defer func() {
		if r := recover(); r != nil {
			out.Status = model.OutcomeFailed
			out.Error = fmt.Sprintf("panic: %v", r)
			w.log.Error().Str("user_id", user.UserID).Interface("panic", r).Msg("User pipeline panicked")
			w.errlog.LogError(user.UserID, fmt.Errorf("panic: %v", r))
		}
	}()

	filters := user.Filters
	filters.Normalize()
	if err := filters.Validate(); err != nil {
		return w.fail(out, user.UserID, err)
	}

	if !filters.HasCriteria() {
		w.log.Debug().Str("user_id", user.UserID).Msg("No meaningful filters, skipping user")
		out.Status = model.OutcomeSkipped
		return out
	}

	if w.coolingDown() {
		return w.fail(out, user.UserID,
			errors.New(errors.ErrorTypeRateLimit, "worker", "site cooldown active, skipping scrape", nil))
	}

	res, err := w.scraper.FetchAll(ctx, &filters)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeRateLimit) {
			w.startCooldown()
		}
		return w.fail(out, user.UserID, err)
	}
	out.Scraped = len(res.Listings)
	out.Incomplete = res.Incomplete

	if len(res.Listings) == 0 {
		w.log.Info().Str("user_id", user.UserID).Msg("No listings matched the filters")
		return out
	}

	seen, err := w.store.SeenHashes(ctx, user.UserID)
	if err != nil {
		return w.fail(out, user.UserID, err)
	}

	part := detect.Diff(res.Listings, seen)
	out.New = len(part.New)
	out.Vanished = len(part.Vanished)

	if !user.Seeded {
		return w.seedUser(ctx, user, res.Listings, part, out)
	}

	if len(part.New) == 0 {
		w.log.Info().
			Str("user_id", user.UserID).
			Int("listings", len(res.Listings)).
			Msg("No new listings")
		return out
	}

	dispatchErr := w.dispatchAndPublish(ctx, user, part.New, &out)

	if err := w.store.RecordSeen(ctx, user.UserID, part.New); err != nil {
		return w.fail(out, user.UserID, err)
	}

	if dispatchErr != nil {
		return w.fail(out, user.UserID, dispatchErr)
	}
	return out
}

// seedUser handles a user's first completed cycle: the whole batch
// becomes the baseline, and it is announced only when the user asked
// for that with the first-cycle flag.
func (w *Worker) seedUser(ctx context.Context, user model.User, batch []model.Listing, part detect.Partition, out model.UserOutcome) model.UserOutcome {
	var dispatchErr error
	if user.NotifyOnFirstCycle {
		dispatchErr = w.dispatchAndPublish(ctx, user, part.New, &out)

		if err := w.store.SetNotifyOnFirstCycle(ctx, user.UserID, false); err != nil {
			w.log.Error().Str("user_id", user.UserID).Err(err).Msg("Clearing first-cycle flag failed")
			w.errlog.LogError(user.UserID, err)
		}
	}

	if err := w.store.RecordSeen(ctx, user.UserID, batch); err != nil {
		return w.fail(out, user.UserID, err)
	}
	if err := w.store.MarkSeeded(ctx, user.UserID); err != nil {
		return w.fail(out, user.UserID, err)
	}

	w.log.Info().
		Str("user_id", user.UserID).
		Int("listings", len(batch)).
		Bool("notified", user.NotifyOnFirstCycle).
		Msg("Seeded user baseline")

	if dispatchErr != nil {
		return w.fail(out, user.UserID, dispatchErr)
	}
	return out
}

// dispatchAndPublish notifies the user about listings and mirrors them
// to the event stream. A publish failure is logged and swallowed; a
// dispatch error is returned for the outcome but never blocks the
// caller from recording the listings as seen.
func (w *Worker) dispatchAndPublish(ctx context.Context, user model.User, listings []model.Listing, out *model.UserOutcome) error {
	res, err := w.dispatcher.Dispatch(ctx, user.UserID, user.Credentials, listings)
	out.Notified += res.Sent
	out.FailedNotifications += res.Failed

	if perr := w.publisher.PublishNew(ctx, user.UserID, listings); perr != nil {
		w.log.Warn().Str("user_id", user.UserID).Err(perr).Msg("Publishing new listings failed")
		w.errlog.LogError(user.UserID, perr)
	}

	return err
}

func canceledOutcome(userID string) model.UserOutcome {
	return model.UserOutcome{
		UserID: userID,
		Status: model.OutcomeSkipped,
		Error:  "cycle canceled before user started",
	}
}

func (w *Worker) fail(out model.UserOutcome, userID string, err error) model.UserOutcome {
	out.Status = model.OutcomeFailed
	out.Error = err.Error()
	out.ErrorType = string(errors.GetType(err))
	w.log.Error().Str("user_id", userID).Err(err).Msg("User pipeline failed")
	w.errlog.LogError(userID, err)
	return out
}

// coolingDown reports whether the site-wide cooldown key is set.
func (w *Worker) coolingDown() bool {
	if w.cache == nil {
		return false
	}
	_, err := w.cache.Get(cooldownKey)
	return err == nil
}

// startCooldown gates scraping for the configured window.
func (w *Worker) startCooldown() {
	if w.cache == nil {
		return
	}
	if err := w.cache.Set(cooldownKey, []byte("1"), w.cooldown); err != nil {
		w.log.Warn().Err(err).Msg("Setting cooldown key failed")
		return
	}
	w.log.Warn().Dur("cooldown", w.cooldown).Msg("Site rate limit hit, cooling down")
}

type nopLogger struct{}

func (nopLogger) LogError(string, error)         {}
func (nopLogger) LogInfo(string, ...interface{}) {}
