// Package collector orchestrates incremental collection: paginated activity
// fetches, kudos backfill, and the progress metadata that makes re-runs
// idempotent.
//
// OWNERSHIP:
// The collector is the only writer of the cached dataset. The analyzer and
// the report server read the same files but never touch them.
//
// IDEMPOTENCY:
// Every operation loads the current cache, diffs fetched data against it by
// natural key, and only then rewrites the files. Running the same fetch
// twice with no new remote data leaves the dataset unchanged.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/kudoscope/internal/apperror"
	"github.com/sakif/kudoscope/internal/model"
	"github.com/sakif/kudoscope/internal/store"
	"github.com/sakif/kudoscope/internal/strava"
)

// API is the slice of the HTTP client the collector needs. A fake
// implementation drives the tests.
type API interface {
	Activities(ctx context.Context, page, perPage int) ([]model.Activity, error)
	Activity(ctx context.Context, id int64) (*model.Activity, error)
	Kudos(ctx context.Context, id int64) ([]model.Giver, error)
}

// Config tunes the collection loops. Zero values fall back to the original
// collection parameters.
type Config struct {
	PerPage        int           // activities per list page (default 50)
	PageDelay      time.Duration // pause between list pages and detail fetches (default 500ms)
	KudosDelay     time.Duration // pause between kudos fetches (default 1s)
	KudosBatchSize int           // default kudos backfill batch (default 20)
}

func (c *Config) applyDefaults() {
	if c.PerPage <= 0 {
		c.PerPage = 50
	}
	if c.PageDelay <= 0 {
		c.PageDelay = 500 * time.Millisecond
	}
	if c.KudosDelay <= 0 {
		c.KudosDelay = time.Second
	}
	if c.KudosBatchSize <= 0 {
		c.KudosBatchSize = 20
	}
}

// Collector runs the collection operations against one data directory.
type Collector struct {
	api     API
	store   store.Store
	sleeper strava.Sleeper
	logger  *slog.Logger
	cfg     Config
	runID   string
}

// Option configures optional behaviour for the Collector.
type Option func(*Collector)

// WithSleeper overrides the politeness-delay sleeper (tests pass a no-op).
func WithSleeper(s strava.Sleeper) Option {
	return func(c *Collector) { c.sleeper = s }
}

// New creates a Collector. Each Collector carries a run id that tags its
// log lines and the metadata it writes, so overlapping runs can be told
// apart after the fact.
func New(api API, st store.Store, logger *slog.Logger, cfg Config, opts ...Option) *Collector {
	cfg.applyDefaults()
	c := &Collector{
		api:     api,
		store:   st,
		sleeper: strava.RealSleeper{},
		cfg:     cfg,
		runID:   xid.New().String(),
	}
	c.logger = logger.With(slog.String("run_id", c.runID))
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchActivities crawls the activity list from page 1 until the remote
// returns an empty page (or maxNew caps the accumulation), keeps only
// activities not already cached, and rewrites the table sorted newest
// first. Returns the number of activities added.
func (c *Collector) FetchActivities(ctx context.Context, maxNew int) (int, error) {
	existing, err := c.store.LoadActivities()
	if err != nil {
		return 0, fmt.Errorf("loading cached activities: %w", err)
	}

	existingIDs := make(map[int64]bool, len(existing))
	for _, a := range existing {
		existingIDs[a.ID] = true
	}
	c.logger.Info("starting activity fetch", slog.Int("cached", len(existing)))

	fetched, err := c.crawlActivities(ctx, maxNew)
	if err != nil {
		return 0, err
	}

	// The idempotency diff: only ids the cache has never seen survive.
	var fresh []model.Activity
	for _, a := range fetched {
		if !existingIDs[a.ID] {
			fresh = append(fresh, a)
		}
	}
	if len(fresh) == 0 {
		c.logger.Info("no new activities found", slog.Int("fetched", len(fetched)))
		return 0, nil
	}

	combined := dedupeActivities(append(existing, fresh...))
	sortActivitiesNewestFirst(combined)

	if err := c.store.SaveActivities(combined); err != nil {
		return 0, fmt.Errorf("saving activities: %w", err)
	}
	cachedActivities.Set(float64(len(combined)))

	meta, err := c.store.LoadMetadata()
	if err != nil {
		return 0, fmt.Errorf("loading metadata: %w", err)
	}
	newest := combined[0]
	newestID := newest.ID
	newestStart := newest.StartDate.UTC().Format(time.RFC3339)
	meta.LastActivityID = &newestID
	meta.LastActivityFetch = &newestStart
	meta.TotalActivities = len(combined)
	meta.Touch(c.runID)
	if err := c.store.SaveMetadata(meta); err != nil {
		return 0, fmt.Errorf("saving metadata: %w", err)
	}

	c.logger.Info("activity fetch complete",
		slog.Int("added", len(fresh)),
		slog.Int("total", len(combined)),
	)
	return len(fresh), nil
}

// crawlActivities walks the paginated list endpoint. maxNew <= 0 means no
// cap; otherwise the accumulation is truncated to the cap.
func (c *Collector) crawlActivities(ctx context.Context, maxNew int) ([]model.Activity, error) {
	var all []model.Activity
	for page := 1; ; page++ {
		activities, err := c.api.Activities(ctx, page, c.cfg.PerPage)
		if err != nil {
			return nil, fmt.Errorf("fetching page %d: %w", page, err)
		}
		if len(activities) == 0 {
			break // exhausted
		}
		all = append(all, activities...)
		c.logger.Info("fetched activity page",
			slog.Int("page", page),
			slog.Int("total", len(all)),
		)

		if maxNew > 0 && len(all) >= maxNew {
			all = all[:maxNew] // capped
			break
		}
		if err := c.sleeper.Sleep(ctx, c.cfg.PageDelay); err != nil {
			return nil, err
		}
	}
	return all, nil
}

// FetchKudos backfills kudos for a batch of activities. With no explicit
// ids it picks cached activities that have no kudos rows yet, most-kudoed
// first — popular activities carry the most signal, so they are backfilled
// before quiet ones. Per-activity failures are skipped; collected records
// are merged and persisted even when a later fetch aborts the batch.
func (c *Collector) FetchKudos(ctx context.Context, ids []int64, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = c.cfg.KudosBatchSize
	}

	activities, err := c.store.LoadActivities()
	if err != nil {
		return 0, fmt.Errorf("loading cached activities: %w", err)
	}
	if len(activities) == 0 {
		c.logger.Warn("no cached activities — run an activity fetch first")
		return 0, nil
	}

	existing, err := c.store.LoadKudos()
	if err != nil {
		return 0, fmt.Errorf("loading cached kudos: %w", err)
	}

	if len(ids) == 0 {
		ids = c.selectBackfillTargets(activities, existing, batchSize)
		if len(ids) == 0 {
			c.logger.Info("all cached activities already have kudos data")
			return 0, nil
		}
	} else if len(ids) > batchSize {
		ids = ids[:batchSize]
	}
	c.logger.Info("starting kudos backfill", slog.Int("batch", len(ids)))

	collected, fetchErr := c.fetchKudosBatch(ctx, ids)
	if len(collected) == 0 {
		if fetchErr != nil {
			return 0, fetchErr
		}
		c.logger.Info("no kudos retrieved for batch")
		return 0, nil
	}

	combined := dedupeKudos(append(existing, collected...))
	if err := c.store.SaveKudos(combined); err != nil {
		return 0, fmt.Errorf("saving kudos: %w", err)
	}
	cachedKudos.Set(float64(len(combined)))

	if err := c.updateKudosMetadata(activities, combined); err != nil {
		return 0, err
	}

	added := len(combined) - len(existing)
	c.logger.Info("kudos backfill complete",
		slog.Int("added", added),
		slog.Int("total", len(combined)),
	)
	// A fatal error mid-batch still persisted the earlier activities; the
	// caller decides whether to abort the run.
	return added, fetchErr
}

// selectBackfillTargets returns up to batchSize activity ids lacking kudos
// rows, ordered by kudos count descending.
func (c *Collector) selectBackfillTargets(activities []model.Activity, existing []model.KudosRecord, batchSize int) []int64 {
	have := make(map[int64]bool, len(existing))
	for _, rec := range existing {
		have[rec.ActivityID] = true
	}

	var candidates []model.Activity
	for _, a := range activities {
		if !have[a.ID] {
			candidates = append(candidates, a)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].KudosCount != candidates[j].KudosCount {
			return candidates[i].KudosCount > candidates[j].KudosCount
		}
		return candidates[i].ID > candidates[j].ID
	})

	if len(candidates) > batchSize {
		candidates = candidates[:batchSize]
	}
	ids := make([]int64, len(candidates))
	for i, a := range candidates {
		ids[i] = a.ID
	}
	return ids
}

// fetchKudosBatch fetches givers for each id, skipping per-resource
// failures. An auth failure or cancellation stops the batch and is
// returned alongside whatever was already collected. Every successful
// fetch is followed by the politeness delay; skipped activities are not.
func (c *Collector) fetchKudosBatch(ctx context.Context, ids []int64) ([]model.KudosRecord, error) {
	var collected []model.KudosRecord

	for _, id := range ids {
		givers, err := c.api.Kudos(ctx, id)
		if err != nil {
			if errors.Is(err, apperror.ErrForbidden) {
				c.logger.Info("skipping forbidden activity (may be private)", slog.Int64("activity_id", id))
				continue
			}
			if strava.IsSkippable(err) {
				c.logger.Warn("skipping activity after fetch error",
					slog.Int64("activity_id", id),
					slog.String("error", err.Error()),
				)
				continue
			}
			// Auth failures and cancellations can't be recovered by
			// moving on to the next activity.
			return collected, fmt.Errorf("fetching kudos for activity %d: %w", id, err)
		}

		for _, g := range givers {
			collected = append(collected, model.NewKudosRecord(id, g))
		}

		if err := c.sleeper.Sleep(ctx, c.cfg.KudosDelay); err != nil {
			return collected, err
		}
	}
	return collected, nil
}

// updateKudosMetadata records which activities now have kudos rows and
// whether the backfill has covered the whole activity table.
func (c *Collector) updateKudosMetadata(activities []model.Activity, combined []model.KudosRecord) error {
	meta, err := c.store.LoadMetadata()
	if err != nil {
		return fmt.Errorf("loading metadata: %w", err)
	}

	withKudos := make(map[int64]bool)
	for _, rec := range combined {
		withKudos[rec.ActivityID] = true
	}
	idList := make([]int64, 0, len(withKudos))
	for id := range withKudos {
		idList = append(idList, id)
	}
	sort.Slice(idList, func(i, j int) bool { return idList[i] < idList[j] })
	meta.ActivitiesWithKudos = idList

	completed := true
	for _, a := range activities {
		if !withKudos[a.ID] {
			completed = false
			break
		}
	}
	meta.KudosFetchCompleted = completed

	meta.Touch(c.runID)
	if err := c.store.SaveMetadata(meta); err != nil {
		return fmt.Errorf("saving metadata: %w", err)
	}
	return nil
}

// FetchDetails fetches full detail records for the given activities,
// sequentially with the page delay after each successful fetch, skipping
// per-resource failures.
func (c *Collector) FetchDetails(ctx context.Context, ids []int64) ([]model.Activity, error) {
	var details []model.Activity
	for _, id := range ids {
		detail, err := c.api.Activity(ctx, id)
		if err != nil {
			if strava.IsSkippable(err) {
				c.logger.Warn("skipping activity detail",
					slog.Int64("activity_id", id),
					slog.String("error", err.Error()),
				)
				continue
			}
			return details, fmt.Errorf("fetching detail for activity %d: %w", id, err)
		}
		details = append(details, *detail)

		if err := c.sleeper.Sleep(ctx, c.cfg.PageDelay); err != nil {
			return details, err
		}
	}
	return details, nil
}

func dedupeActivities(activities []model.Activity) []model.Activity {
	seen := make(map[int64]bool, len(activities))
	out := activities[:0]
	for _, a := range activities {
		if seen[a.ID] {
			continue // cached row wins over a refetched copy
		}
		seen[a.ID] = true
		out = append(out, a)
	}
	return out
}

func dedupeKudos(records []model.KudosRecord) []model.KudosRecord {
	type key struct {
		activity int64
		athlete  int64
	}
	seen := make(map[key]bool, len(records))
	out := records[:0]
	for _, rec := range records {
		k := key{rec.ActivityID, rec.AthleteID}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, rec)
	}
	return out
}

func sortActivitiesNewestFirst(activities []model.Activity) {
	sort.SliceStable(activities, func(i, j int) bool {
		if !activities[i].StartDate.Equal(activities[j].StartDate) {
			return activities[i].StartDate.After(activities[j].StartDate)
		}
		return activities[i].ID > activities[j].ID
	})
}
