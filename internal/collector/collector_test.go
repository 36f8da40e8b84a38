package collector

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sakif/kudoscope/internal/apperror"
	"github.com/sakif/kudoscope/internal/model"
	"github.com/sakif/kudoscope/internal/store"
)

// =========================================================================
// FAKE API
// =========================================================================
//
// fakeAPI implements the API interface with scripted responses, so the
// collector's merge/dedupe/metadata logic is tested without HTTP.

type fakeAPI struct {
	pages       [][]model.Activity // page N serves pages[N-1]; beyond that, empty
	kudos       map[int64][]model.Giver
	kudosErr    map[int64]error
	activityErr map[int64]error
	kudosCalls  []int64 // order of kudos fetches, for priority assertions
}

func (f *fakeAPI) Activities(_ context.Context, page, _ int) ([]model.Activity, error) {
	if page < 1 || page > len(f.pages) {
		return nil, nil
	}
	return f.pages[page-1], nil
}

func (f *fakeAPI) Activity(_ context.Context, id int64) (*model.Activity, error) {
	if err := f.activityErr[id]; err != nil {
		return nil, err
	}
	for _, page := range f.pages {
		for _, a := range page {
			if a.ID == id {
				found := a
				return &found, nil
			}
		}
	}
	return nil, apperror.Forbidden("not visible")
}

func (f *fakeAPI) Kudos(_ context.Context, id int64) ([]model.Giver, error) {
	f.kudosCalls = append(f.kudosCalls, id)
	if err := f.kudosErr[id]; err != nil {
		return nil, err
	}
	return f.kudos[id], nil
}

// noopSleeper keeps the politeness delays out of test runtime.
type noopSleeper struct{}

func (noopSleeper) Sleep(_ context.Context, _ time.Duration) error { return nil }

// recordingSleeper records requested sleeps and returns instantly.
type recordingSleeper struct {
	slept []time.Duration
}

func (r *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	r.slept = append(r.slept, d)
	return nil
}

func newTestCollector(t *testing.T, api API) (*Collector, *store.Dir, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.New(dir)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(api, st, logger, Config{}, WithSleeper(noopSleeper{})), st, dir
}

func activity(id int64, start time.Time, kudosCount int) model.Activity {
	a := model.Activity{
		ID:         id,
		Name:       "Activity",
		Type:       "Ride",
		StartDate:  start,
		Distance:   10000,
		MovingTime: 3600,
		KudosCount: kudosCount,
	}
	a.Derive()
	return a
}

var day = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

// =========================================================================
// ACTIVITY FETCH
// =========================================================================

func TestFetchActivitiesFirstRun(t *testing.T) {
	api := &fakeAPI{pages: [][]model.Activity{
		{activity(103, day.AddDate(0, 0, 3), 5), activity(102, day.AddDate(0, 0, 2), 2)},
		{activity(101, day.AddDate(0, 0, 1), 9)},
	}}
	c, st, _ := newTestCollector(t, api)

	added, err := c.FetchActivities(context.Background(), 0)
	if err != nil {
		t.Fatalf("FetchActivities() error = %v", err)
	}
	if added != 3 {
		t.Errorf("added = %d, want 3", added)
	}

	got, err := st.LoadActivities()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("cached %d activities, want 3", len(got))
	}
	// Newest first.
	if got[0].ID != 103 || got[2].ID != 101 {
		t.Errorf("order = [%d %d %d], want newest first", got[0].ID, got[1].ID, got[2].ID)
	}

	meta, err := st.LoadMetadata()
	if err != nil {
		t.Fatal(err)
	}
	if meta.TotalActivities != 3 {
		t.Errorf("TotalActivities = %d, want 3", meta.TotalActivities)
	}
	if meta.LastActivityID == nil || *meta.LastActivityID != 103 {
		t.Errorf("LastActivityID = %v, want 103", meta.LastActivityID)
	}
	if meta.LastUpdated == nil {
		t.Error("LastUpdated not set after a successful fetch")
	}
	if meta.LastRunID == "" {
		t.Error("LastRunID not recorded")
	}
}

func TestFetchActivitiesIdempotent(t *testing.T) {
	api := &fakeAPI{pages: [][]model.Activity{
		{activity(102, day.AddDate(0, 0, 2), 2), activity(101, day, 9)},
	}}
	c, _, dir := newTestCollector(t, api)

	if _, err := c.FetchActivities(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(filepath.Join(dir, "activities.csv"))
	if err != nil {
		t.Fatal(err)
	}

	added, err := c.FetchActivities(context.Background(), 0)
	if err != nil {
		t.Fatalf("second FetchActivities() error = %v", err)
	}
	if added != 0 {
		t.Errorf("second run added = %d, want 0", added)
	}

	second, err := os.ReadFile(filepath.Join(dir, "activities.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Error("re-running an up-to-date fetch changed the activity table")
	}
}

func TestFetchActivitiesDedupesOverlap(t *testing.T) {
	api := &fakeAPI{pages: [][]model.Activity{
		{activity(101, day, 9)},
	}}
	c, st, _ := newTestCollector(t, api)
	if _, err := c.FetchActivities(context.Background(), 0); err != nil {
		t.Fatal(err)
	}

	// Remote now returns the overlapping 101 plus a new 102.
	api.pages = [][]model.Activity{
		{activity(102, day.AddDate(0, 0, 1), 3), activity(101, day, 9)},
	}
	added, err := c.FetchActivities(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if added != 1 {
		t.Errorf("added = %d, want 1 (only the unseen id)", added)
	}

	got, _ := st.LoadActivities()
	count := 0
	for _, a := range got {
		if a.ID == 101 {
			count++
		}
	}
	if count != 1 {
		t.Errorf("activity 101 appears %d times, want exactly 1", count)
	}
}

func TestFetchActivitiesCap(t *testing.T) {
	api := &fakeAPI{pages: [][]model.Activity{
		{activity(104, day.AddDate(0, 0, 4), 0), activity(103, day.AddDate(0, 0, 3), 0)},
		{activity(102, day.AddDate(0, 0, 2), 0), activity(101, day, 0)},
	}}
	c, st, _ := newTestCollector(t, api)

	added, err := c.FetchActivities(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if added != 3 {
		t.Errorf("added = %d, want 3 (capped)", added)
	}
	got, _ := st.LoadActivities()
	if len(got) != 3 {
		t.Errorf("cached %d activities, want 3", len(got))
	}
}

func TestFetchActivitiesEmptyRemote(t *testing.T) {
	api := &fakeAPI{}
	c, _, dir := newTestCollector(t, api)

	added, err := c.FetchActivities(context.Background(), 0)
	if err != nil {
		t.Fatalf("FetchActivities() error = %v", err)
	}
	if added != 0 {
		t.Errorf("added = %d, want 0", added)
	}

	// Nothing was fetched, so nothing was written.
	if _, err := os.Stat(filepath.Join(dir, "activities.csv")); !os.IsNotExist(err) {
		t.Error("activity table created despite empty remote")
	}
	status, err := c.Status()
	if err != nil {
		t.Fatal(err)
	}
	if status.TotalActivities != 0 || status.Metadata.TotalActivities != 0 {
		t.Errorf("status reports %d activities, want 0", status.TotalActivities)
	}
}

func TestMetadataTotalNeverDecreases(t *testing.T) {
	api := &fakeAPI{pages: [][]model.Activity{
		{activity(102, day.AddDate(0, 0, 2), 0), activity(101, day, 0)},
	}}
	c, st, _ := newTestCollector(t, api)
	if _, err := c.FetchActivities(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	meta, _ := st.LoadMetadata()
	if meta.TotalActivities != 2 {
		t.Fatalf("TotalActivities = %d, want 2", meta.TotalActivities)
	}

	// Remote later returns fewer rows (e.g. an activity went private).
	// The cache is append-only, so the total holds.
	api.pages = [][]model.Activity{{activity(103, day.AddDate(0, 0, 3), 0)}}
	if _, err := c.FetchActivities(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	meta, _ = st.LoadMetadata()
	if meta.TotalActivities != 3 {
		t.Errorf("TotalActivities = %d, want 3 (monotonic)", meta.TotalActivities)
	}
}

// =========================================================================
// KUDOS BACKFILL
// =========================================================================

func seedActivities(t *testing.T, c *Collector, api *fakeAPI, activities ...model.Activity) {
	t.Helper()
	api.pages = [][]model.Activity{activities}
	if _, err := c.FetchActivities(context.Background(), 0); err != nil {
		t.Fatalf("seeding activities: %v", err)
	}
}

func TestFetchKudosPrioritizesPopularActivities(t *testing.T) {
	api := &fakeAPI{kudos: map[int64][]model.Giver{}}
	c, _, _ := newTestCollector(t, api)
	seedActivities(t, c, api,
		activity(1, day.AddDate(0, 0, 1), 5),
		activity(2, day.AddDate(0, 0, 2), 10),
		activity(3, day.AddDate(0, 0, 3), 1),
	)

	api.kudosCalls = nil
	if _, err := c.FetchKudos(context.Background(), nil, 2); err != nil {
		t.Fatal(err)
	}
	// Highest kudos_count first, bounded to the batch size.
	if len(api.kudosCalls) != 2 || api.kudosCalls[0] != 2 || api.kudosCalls[1] != 1 {
		t.Errorf("kudos fetch order = %v, want [2 1]", api.kudosCalls)
	}
}

func TestFetchKudosForbiddenSkipsOneActivity(t *testing.T) {
	api := &fakeAPI{
		kudos: map[int64][]model.Giver{
			1: {{Firstname: "Jane", Lastname: "D."}},
			3: {{Firstname: "Bob", Lastname: "S."}, {Firstname: "Amy", Lastname: "W."}},
		},
		kudosErr: map[int64]error{2: apperror.Forbidden("activity 2 is private")},
	}
	c, st, _ := newTestCollector(t, api)
	seedActivities(t, c, api,
		activity(1, day.AddDate(0, 0, 1), 3),
		activity(2, day.AddDate(0, 0, 2), 2),
		activity(3, day.AddDate(0, 0, 3), 1),
	)

	added, err := c.FetchKudos(context.Background(), nil, 10)
	if err != nil {
		t.Fatalf("FetchKudos() error = %v (a 403 must not abort the batch)", err)
	}
	if added != 3 {
		t.Errorf("added = %d, want 3", added)
	}

	records, _ := st.LoadKudos()
	for _, rec := range records {
		if rec.ActivityID == 2 {
			t.Error("forbidden activity 2 has kudos rows")
		}
	}

	meta, _ := st.LoadMetadata()
	if len(meta.ActivitiesWithKudos) != 2 {
		t.Errorf("ActivitiesWithKudos = %v, want two ids", meta.ActivitiesWithKudos)
	}
	if meta.KudosFetchCompleted {
		t.Error("KudosFetchCompleted = true with an uncovered activity")
	}
}

func TestFetchKudosMergeKey(t *testing.T) {
	api := &fakeAPI{kudos: map[int64][]model.Giver{
		1: {{Firstname: "Jane", Lastname: "D."}},
	}}
	c, st, _ := newTestCollector(t, api)
	seedActivities(t, c, api, activity(1, day, 1))

	if _, err := c.FetchKudos(context.Background(), []int64{1}, 0); err != nil {
		t.Fatal(err)
	}
	added, err := c.FetchKudos(context.Background(), []int64{1}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if added != 0 {
		t.Errorf("refetch added = %d, want 0 (same (activity, athlete) pair)", added)
	}

	records, _ := st.LoadKudos()
	if len(records) != 1 {
		t.Errorf("kudos table has %d rows, want 1", len(records))
	}
}

func TestFetchKudosCompletedFlag(t *testing.T) {
	api := &fakeAPI{kudos: map[int64][]model.Giver{
		1: {{Firstname: "Jane", Lastname: "D."}},
		2: {{Firstname: "Bob", Lastname: "S."}},
	}}
	c, st, _ := newTestCollector(t, api)
	seedActivities(t, c, api, activity(1, day, 1), activity(2, day.AddDate(0, 0, 1), 2))

	if _, err := c.FetchKudos(context.Background(), nil, 10); err != nil {
		t.Fatal(err)
	}
	meta, _ := st.LoadMetadata()
	if !meta.KudosFetchCompleted {
		t.Error("KudosFetchCompleted = false after covering every activity")
	}
}

func TestFetchKudosWithoutActivities(t *testing.T) {
	api := &fakeAPI{}
	c, _, dir := newTestCollector(t, api)

	added, err := c.FetchKudos(context.Background(), nil, 0)
	if err != nil {
		t.Fatalf("FetchKudos() error = %v", err)
	}
	if added != 0 {
		t.Errorf("added = %d, want 0", added)
	}
	if _, err := os.Stat(filepath.Join(dir, "kudos.csv")); !os.IsNotExist(err) {
		t.Error("kudos table created with no activities cached")
	}
}

func TestFetchKudosFatalErrorKeepsEarlierWork(t *testing.T) {
	api := &fakeAPI{
		kudos: map[int64][]model.Giver{
			2: {{Firstname: "Jane", Lastname: "D."}},
		},
		kudosErr: map[int64]error{1: apperror.Auth("refresh token burned")},
	}
	c, st, _ := newTestCollector(t, api)
	seedActivities(t, c, api, activity(1, day, 1), activity(2, day.AddDate(0, 0, 1), 5))

	// Priority order is [2 1]: activity 2 succeeds, then 1 hits a fatal
	// auth error. The error surfaces, but 2's records are persisted.
	_, err := c.FetchKudos(context.Background(), nil, 10)
	if !errors.Is(err, apperror.ErrAuth) {
		t.Fatalf("FetchKudos() error = %v, want ErrAuth", err)
	}
	records, _ := st.LoadKudos()
	if len(records) != 1 || records[0].ActivityID != 2 {
		t.Errorf("records = %+v, want activity 2's kudos persisted", records)
	}
}

func TestFetchKudosDelayFollowsEachSuccessfulFetch(t *testing.T) {
	api := &fakeAPI{
		kudos: map[int64][]model.Giver{
			1: {{Firstname: "Jane", Lastname: "D."}},
			3: {{Firstname: "Bob", Lastname: "S."}},
		},
		kudosErr: map[int64]error{2: apperror.Forbidden("activity 2 is private")},
	}
	c, st, _ := newTestCollector(t, api)
	seedActivities(t, c, api,
		activity(1, day.AddDate(0, 0, 1), 3),
		activity(2, day.AddDate(0, 0, 2), 2),
		activity(3, day.AddDate(0, 0, 3), 1),
	)

	sleeper := &recordingSleeper{}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	throttled := New(api, st, logger, Config{KudosDelay: 250 * time.Millisecond}, WithSleeper(sleeper))

	if _, err := throttled.FetchKudos(context.Background(), nil, 10); err != nil {
		t.Fatal(err)
	}
	// Two successful fetches each followed by the delay; the forbidden
	// skip is not throttled.
	if len(sleeper.slept) != 2 {
		t.Fatalf("slept %d times, want 2", len(sleeper.slept))
	}
	for _, d := range sleeper.slept {
		if d != 250*time.Millisecond {
			t.Errorf("slept %v, want the configured kudos delay", d)
		}
	}
}

// =========================================================================
// DETAIL FETCH
// =========================================================================

func TestFetchDetails(t *testing.T) {
	api := &fakeAPI{pages: [][]model.Activity{
		{activity(101, day, 3), activity(102, day.AddDate(0, 0, 1), 5)},
	}}
	c, _, _ := newTestCollector(t, api)

	details, err := c.FetchDetails(context.Background(), []int64{102, 101})
	if err != nil {
		t.Fatalf("FetchDetails() error = %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("got %d details, want 2", len(details))
	}
	// Requested order is preserved.
	if details[0].ID != 102 || details[1].ID != 101 {
		t.Errorf("detail order = [%d %d], want [102 101]", details[0].ID, details[1].ID)
	}
}

func TestFetchDetailsSkipsForbidden(t *testing.T) {
	api := &fakeAPI{pages: [][]model.Activity{
		{activity(101, day, 3), activity(102, day.AddDate(0, 0, 1), 5)},
	}}
	c, _, _ := newTestCollector(t, api)

	// 999 is not visible to the fake and yields ErrForbidden.
	details, err := c.FetchDetails(context.Background(), []int64{101, 999, 102})
	if err != nil {
		t.Fatalf("FetchDetails() error = %v (a 403 must not abort the batch)", err)
	}
	if len(details) != 2 || details[0].ID != 101 || details[1].ID != 102 {
		t.Errorf("details = %+v, want 101 and 102 with 999 skipped", details)
	}
}

func TestFetchDetailsFatalErrorKeepsEarlierWork(t *testing.T) {
	api := &fakeAPI{
		pages:       [][]model.Activity{{activity(101, day, 3)}},
		activityErr: map[int64]error{102: apperror.Auth("refresh token burned")},
	}
	c, _, _ := newTestCollector(t, api)

	details, err := c.FetchDetails(context.Background(), []int64{101, 102})
	if !errors.Is(err, apperror.ErrAuth) {
		t.Fatalf("FetchDetails() error = %v, want ErrAuth", err)
	}
	if len(details) != 1 || details[0].ID != 101 {
		t.Errorf("details = %+v, want the record fetched before the failure", details)
	}
}

func TestStatusSummarizesCache(t *testing.T) {
	api := &fakeAPI{kudos: map[int64][]model.Giver{
		1: {{Firstname: "Jane", Lastname: "D."}, {Firstname: "Bob", Lastname: "S."}},
	}}
	c, _, _ := newTestCollector(t, api)
	seedActivities(t, c, api, activity(1, day, 2), activity(2, day.AddDate(0, 0, 5), 0))
	if _, err := c.FetchKudos(context.Background(), []int64{1}, 0); err != nil {
		t.Fatal(err)
	}

	status, err := c.Status()
	if err != nil {
		t.Fatal(err)
	}
	if status.TotalActivities != 2 {
		t.Errorf("TotalActivities = %d, want 2", status.TotalActivities)
	}
	if status.ActivitiesWithKudos != 1 {
		t.Errorf("ActivitiesWithKudos = %d, want 1", status.ActivitiesWithKudos)
	}
	if status.TotalKudos != 2 {
		t.Errorf("TotalKudos = %d, want 2", status.TotalKudos)
	}
	if len(status.TopTypes) != 1 || status.TopTypes[0].Type != "Ride" || status.TopTypes[0].Count != 2 {
		t.Errorf("TopTypes = %+v", status.TopTypes)
	}
	if status.NewestActivity == "" || status.OldestActivity == "" {
		t.Error("date range missing from status")
	}
}
