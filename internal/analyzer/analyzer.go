// Package analyzer computes the kudos analysis over the cached dataset: does
// attaching photos to an activity earn more kudos, or do longer efforts
// simply attract both photos and kudos?
//
// The analyzer is strictly read-side. Every section degrades to an
// explanatory message when the data is too thin for the statistic, so a
// partial cache still produces a useful report.
package analyzer

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sakif/kudoscope/internal/model"
	"github.com/sakif/kudoscope/internal/store"
)

const significanceLevel = 0.05

// Analyzer renders the analysis report to a writer.
type Analyzer struct {
	store  store.Store
	out    io.Writer
	logger *slog.Logger
	topN   int
}

// Option configures optional analyzer behaviour.
type Option func(*Analyzer)

// WithTopGivers sets how many rows the top-givers ranking prints.
func WithTopGivers(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.topN = n
		}
	}
}

func New(st store.Store, out io.Writer, logger *slog.Logger, opts ...Option) *Analyzer {
	a := &Analyzer{store: st, out: out, logger: logger, topN: 30}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Dataset is the loaded cache the report sections work from.
type Dataset struct {
	Activities []model.Activity
	Kudos      []model.KudosRecord
}

// Load reads the cached tables. Missing files yield an empty dataset, not
// an error.
func (a *Analyzer) Load() (*Dataset, error) {
	activities, err := a.store.LoadActivities()
	if err != nil {
		return nil, fmt.Errorf("loading activities: %w", err)
	}
	kudos, err := a.store.LoadKudos()
	if err != nil {
		return nil, fmt.Errorf("loading kudos: %w", err)
	}
	a.logger.Info("dataset loaded",
		slog.Int("activities", len(activities)),
		slog.Int("kudos_records", len(kudos)),
	)
	return &Dataset{Activities: activities, Kudos: kudos}, nil
}

// RunAll loads the cache and renders every report section in order.
func (a *Analyzer) RunAll() (*Dataset, error) {
	ds, err := a.Load()
	if err != nil {
		return nil, err
	}
	a.BasicStats(ds)
	a.PhotoImpact(ds)
	a.DistanceControlled(ds)
	a.Correlations(ds)
	a.Timing(ds)
	a.TopGivers(ds)
	return ds, nil
}

func (a *Analyzer) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *Analyzer) section(title string) {
	a.printf("\n=== %s ===\n", title)
}

// splitByPhotos returns the kudos counts of activities with and without
// photos.
func splitByPhotos(activities []model.Activity) (with, without []float64) {
	for _, act := range activities {
		if act.HasPhotos {
			with = append(with, float64(act.KudosCount))
		} else {
			without = append(without, float64(act.KudosCount))
		}
	}
	return with, without
}

// BasicStats prints dataset totals, the raw photo/no-photo kudos means, and
// the activity type breakdown.
func (a *Analyzer) BasicStats(ds *Dataset) {
	a.section("BASIC STATISTICS")
	if len(ds.Activities) == 0 {
		a.printf("No cached activities. Run a collection first.\n")
		return
	}

	with, without := splitByPhotos(ds.Activities)
	all := make([]float64, 0, len(ds.Activities))
	for _, act := range ds.Activities {
		all = append(all, float64(act.KudosCount))
	}

	a.printf("Total activities: %d\n", len(ds.Activities))
	a.printf("Activities with photos: %d\n", len(with))
	a.printf("Activities without photos: %d\n", len(without))
	a.printf("Average kudos per activity: %.1f\n", mean(all))
	if len(with) > 0 {
		a.printf("Average kudos (with photos): %.1f\n", mean(with))
	}
	if len(without) > 0 {
		a.printf("Average kudos (without photos): %.1f\n", mean(without))
	}
	if len(with) > 0 && len(without) > 0 && mean(without) > 0 {
		a.printf("Raw photo effect: %.2fx\n", mean(with)/mean(without))
	}

	oldest, newest := ds.Activities[0].StartDate, ds.Activities[0].StartDate
	for _, act := range ds.Activities {
		if act.StartDate.Before(oldest) {
			oldest = act.StartDate
		}
		if act.StartDate.After(newest) {
			newest = act.StartDate
		}
	}
	a.printf("Date range: %s to %s\n",
		oldest.UTC().Format(time.DateOnly), newest.UTC().Format(time.DateOnly))

	a.printf("\nActivity types:\n")
	for _, tc := range typeCounts(ds.Activities, 10) {
		a.printf("  %-20s %d\n", tc.name, tc.count)
	}
}

// PhotoImpact runs the central hypothesis tests: Welch's t-test and the
// Mann-Whitney U on kudos with vs without photos, overall and per activity
// type.
func (a *Analyzer) PhotoImpact(ds *Dataset) {
	a.section("PHOTO IMPACT ANALYSIS")
	with, without := splitByPhotos(ds.Activities)
	if len(with) == 0 || len(without) == 0 {
		a.printf("Need both photo and no-photo activities for a comparison.\n")
		return
	}

	a.printf("With photos:    %d activities, mean %.2f kudos (median %.1f)\n",
		len(with), mean(with), median(with))
	a.printf("Without photos: %d activities, mean %.2f kudos (median %.1f)\n",
		len(without), mean(without), median(without))

	if res, ok := welchTTest(with, without); ok {
		a.printf("Welch t-test: t=%.3f, df=%.1f, p=%.6f\n", res.T, res.DF, res.P)
		a.printf("Photos significantly change kudos: %s\n", yesNo(res.P < significanceLevel))
	} else {
		a.printf("Samples too small for a t-test.\n")
	}
	if res, ok := mannWhitneyU(with, without); ok {
		a.printf("Mann-Whitney U: U=%.1f, z=%.3f, p=%.6f\n", res.U, res.Z, res.P)
	}

	a.printf("\n--- By activity type ---\n")
	printed := false
	for _, tc := range typeCounts(ds.Activities, 5) {
		if tc.count <= 10 {
			continue // not enough data for a per-type test
		}
		var subset []model.Activity
		for _, act := range ds.Activities {
			if act.Type == tc.name {
				subset = append(subset, act)
			}
		}
		w, wo := splitByPhotos(subset)
		if len(w) == 0 || len(wo) == 0 {
			continue
		}
		printed = true
		a.printf("%s:\n", tc.name)
		a.printf("  With photos: %.1f kudos (n=%d)\n", mean(w), len(w))
		a.printf("  Without photos: %.1f kudos (n=%d)\n", mean(wo), len(wo))
		if res, ok := welchTTest(w, wo); ok {
			a.printf("  P-value: %.4f\n", res.P)
		}
	}
	if !printed {
		a.printf("No activity type has enough of both groups.\n")
	}
}

// DistanceControlled bins the dominant activity type by distance and
// compares photo vs no-photo kudos within each bin. If the raw photo effect
// disappears here, distance — not photos — drives kudos.
func (a *Analyzer) DistanceControlled(ds *Dataset) {
	a.section("DISTANCE-CONTROLLED COMPARISON")
	types := typeCounts(ds.Activities, 1)
	if len(types) == 0 {
		a.printf("No cached activities.\n")
		return
	}
	mainType := types[0].name

	var subset []model.Activity
	for _, act := range ds.Activities {
		if act.Type == mainType {
			subset = append(subset, act)
		}
	}
	a.printf("Analyzing %s activities (n=%d)\n", mainType, len(subset))
	if len(subset) < 10 {
		a.printf("Not enough activities for a controlled comparison.\n")
		return
	}

	// Longer efforts tend to carry more photos; quantify the confounder
	// before controlling for it.
	dist := make([]float64, len(subset))
	photos := make([]float64, len(subset))
	for i, act := range subset {
		dist[i] = act.DistanceKm
		photos[i] = float64(act.TotalPhotoCount)
	}
	if r, ok := pearson(dist, photos); ok {
		a.printf("Correlation between distance and photo count: %.3f\n", r)
		if r > 0.3 {
			a.printf("Strong correlation: longer efforts do carry more photos.\n")
		}
	}

	bins := binByDistance(subset, min(10, len(subset)/5))
	var advantages []float64
	significant, compared := 0, 0

	a.printf("\nPer-bin comparison:\n")
	for _, bin := range bins {
		if len(bin.activities) < 4 {
			continue
		}
		with, without := splitByPhotos(bin.activities)
		if len(with) == 0 || len(without) == 0 {
			continue
		}
		compared++
		a.printf("\nDistance %.1f-%.1fkm:\n", bin.lo, bin.hi)
		a.printf("  With photos: %.1f kudos (n=%d)\n", mean(with), len(with))
		a.printf("  Without photos: %.1f kudos (n=%d)\n", mean(without), len(without))
		a.printf("  Difference: %.1f kudos\n", mean(with)-mean(without))
		if res, ok := welchTTest(with, without); ok {
			a.printf("  P-value: %.4f\n", res.P)
			if res.P < significanceLevel {
				significant++
			}
		}
		if m := mean(without); m > 0 {
			advantages = append(advantages, (mean(with)-m)/m*100)
		}
	}

	if compared == 0 {
		a.printf("No distance bin has both photo and no-photo activities.\n")
		return
	}
	a.printf("\nSummary:\n")
	a.printf("Distance-controlled photo advantage: %.1f%%\n", mean(advantages))
	a.printf("Significant bins (p<%.2f): %d of %d\n", significanceLevel, significant, compared)
	switch {
	case significant == 0:
		a.printf("No significant photo effect once distance is controlled for;\n")
		a.printf("distance, not photos, appears to drive kudos.\n")
	case significant*2 < compared:
		a.printf("Mixed results: the photo effect varies by distance range.\n")
	default:
		a.printf("Photos increase kudos even when controlling for distance.\n")
	}
}

// feature is one numeric column correlated against kudos_count. Nullable
// columns return ok=false for activities where the sensor was absent.
type feature struct {
	name  string
	value func(model.Activity) (float64, bool)
}

func always(f func(model.Activity) float64) func(model.Activity) (float64, bool) {
	return func(a model.Activity) (float64, bool) { return f(a), true }
}

func nullable(f func(model.Activity) *float64) func(model.Activity) (float64, bool) {
	return func(a model.Activity) (float64, bool) {
		if v := f(a); v != nil {
			return *v, true
		}
		return 0, false
	}
}

var features = []feature{
	{"distance_km", always(func(a model.Activity) float64 { return a.DistanceKm })},
	{"moving_time_hours", always(func(a model.Activity) float64 { return a.MovingTimeHours })},
	{"total_elevation_gain", always(func(a model.Activity) float64 { return a.TotalElevationGain })},
	{"average_speed", nullable(func(a model.Activity) *float64 { return a.AverageSpeed })},
	{"max_speed", nullable(func(a model.Activity) *float64 { return a.MaxSpeed })},
	{"average_heartrate", nullable(func(a model.Activity) *float64 { return a.AverageHeartrate })},
	{"max_heartrate", nullable(func(a model.Activity) *float64 { return a.MaxHeartrate })},
	{"pr_count", always(func(a model.Activity) float64 { return float64(a.PRCount) })},
	{"achievement_count", always(func(a model.Activity) float64 { return float64(a.AchievementCount) })},
	{"photo_count", always(func(a model.Activity) float64 { return float64(a.PhotoCount) })},
	{"total_photo_count", always(func(a model.Activity) float64 { return float64(a.TotalPhotoCount) })},
	{"comment_count", always(func(a model.Activity) float64 { return float64(a.CommentCount) })},
	{"athlete_count", always(func(a model.Activity) float64 { return float64(a.AthleteCount) })},
	{"day_of_week", always(func(a model.Activity) float64 { return float64(a.DayOfWeek) })},
	{"hour_of_day", always(func(a model.Activity) float64 { return float64(a.HourOfDay) })},
}

// Correlations prints the Pearson correlation of each numeric feature
// against kudos count, sorted strongest-positive first.
func (a *Analyzer) Correlations(ds *Dataset) {
	a.section("CORRELATION ANALYSIS")
	type row struct {
		name string
		r    float64
	}
	var rows []row
	for _, f := range features {
		var xs, ys []float64
		for _, act := range ds.Activities {
			if v, ok := f.value(act); ok {
				xs = append(xs, v)
				ys = append(ys, float64(act.KudosCount))
			}
		}
		if r, ok := pearson(xs, ys); ok {
			rows = append(rows, row{f.name, r})
		}
	}
	if len(rows) == 0 {
		a.printf("Not enough numeric data for correlation analysis.\n")
		return
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].r > rows[j].r })

	a.printf("Correlation with kudos count:\n")
	for _, r := range rows {
		a.printf("  %-22s %+.3f\n", r.name, r.r)
	}
}

var dayNames = [7]string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// Timing prints mean kudos grouped by posting day and hour.
func (a *Analyzer) Timing(ds *Dataset) {
	a.section("TIMING ANALYSIS")
	if len(ds.Activities) == 0 {
		a.printf("No cached activities.\n")
		return
	}

	byDay := make(map[int][]float64)
	byHour := make(map[int][]float64)
	for _, act := range ds.Activities {
		byDay[act.DayOfWeek] = append(byDay[act.DayOfWeek], float64(act.KudosCount))
		byHour[act.HourOfDay] = append(byHour[act.HourOfDay], float64(act.KudosCount))
	}

	a.printf("Average kudos by day of week:\n")
	for day := 0; day < 7; day++ {
		if vals, ok := byDay[day]; ok {
			a.printf("  %-10s %.1f\n", dayNames[day], mean(vals))
		}
	}

	type hourMean struct {
		hour int
		avg  float64
	}
	hours := make([]hourMean, 0, len(byHour))
	for h, vals := range byHour {
		hours = append(hours, hourMean{h, mean(vals)})
	}
	sort.SliceStable(hours, func(i, j int) bool {
		if hours[i].avg != hours[j].avg {
			return hours[i].avg > hours[j].avg
		}
		return hours[i].hour < hours[j].hour
	})
	if len(hours) > 5 {
		hours = hours[:5]
	}
	a.printf("\nBest hours for kudos:\n")
	for _, hm := range hours {
		a.printf("  %02d:00  %.1f avg kudos\n", hm.hour, hm.avg)
	}
}

// TopGivers ranks athletes by kudos given and reports how concentrated the
// kudos supply is.
func (a *Analyzer) TopGivers(ds *Dataset) {
	a.section(fmt.Sprintf("TOP %d KUDOS GIVERS", a.topN))
	if len(ds.Kudos) == 0 {
		a.printf("No kudos data available. Run a kudos backfill to enable this section.\n")
		return
	}

	// Group by full name: the remote API hides giver ids, so the synthetic
	// ids are name-derived and names are the real grouping key.
	counts := make(map[string]int)
	activitiesByGiver := make(map[string]map[int64]bool)
	for _, rec := range ds.Kudos {
		counts[rec.Fullname]++
		if activitiesByGiver[rec.Fullname] == nil {
			activitiesByGiver[rec.Fullname] = make(map[int64]bool)
		}
		activitiesByGiver[rec.Fullname][rec.ActivityID] = true
	}

	givers := make([]namedCount, 0, len(counts))
	for name, n := range counts {
		givers = append(givers, namedCount{name, n})
	}
	sort.SliceStable(givers, func(i, j int) bool {
		if givers[i].count != givers[j].count {
			return givers[i].count > givers[j].count
		}
		return givers[i].name < givers[j].name
	})

	a.printf("Total unique people who gave kudos: %d\n", len(givers))
	a.printf("Total kudos tracked: %d\n\n", len(ds.Kudos))

	shown := givers
	if len(shown) > a.topN {
		shown = shown[:a.topN]
	}
	for i, g := range shown {
		name := g.name
		if strings.TrimSpace(name) == "" {
			name = "Unknown Athlete"
		}
		a.printf("%2d. %-30s %3d kudos\n", i+1, name, g.count)
	}

	total := len(ds.Kudos)
	a.printf("\nTop 5 givers account for: %.1f%% of all kudos\n",
		concentration(givers, 5, total))
	a.printf("Top 10 givers account for: %.1f%% of all kudos\n",
		concentration(givers, 10, total))

	top := givers[0]
	topName := top.name
	if strings.TrimSpace(topName) == "" {
		topName = "Unknown Athlete"
	}
	a.printf("\n%s (your #1 supporter) gave kudos to %d of your activities\n",
		topName, len(activitiesByGiver[top.name]))
}

// concentration is the share of all kudos attributable to the first top
// entries of a ranking sorted by count descending.
func concentration(sorted []namedCount, top, total int) float64 {
	if total == 0 {
		return 0
	}
	if top > len(sorted) {
		top = len(sorted)
	}
	sum := 0
	for i := 0; i < top; i++ {
		sum += sorted[i].count
	}
	return float64(sum) / float64(total) * 100
}

type namedCount struct {
	name  string
	count int
}

func typeCounts(activities []model.Activity, n int) []namedCount {
	counts := make(map[string]int)
	for _, a := range activities {
		counts[a.Type]++
	}
	out := make([]namedCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, namedCount{name, count})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

type distanceBin struct {
	lo, hi     float64
	activities []model.Activity
}

// binByDistance splits activities into count equal-width distance bins.
func binByDistance(activities []model.Activity, count int) []distanceBin {
	if count < 1 || len(activities) == 0 {
		return nil
	}
	lo, hi := activities[0].DistanceKm, activities[0].DistanceKm
	for _, a := range activities {
		if a.DistanceKm < lo {
			lo = a.DistanceKm
		}
		if a.DistanceKm > hi {
			hi = a.DistanceKm
		}
	}
	if hi == lo {
		return []distanceBin{{lo: lo, hi: hi, activities: activities}}
	}

	width := (hi - lo) / float64(count)
	bins := make([]distanceBin, count)
	for i := range bins {
		bins[i].lo = lo + float64(i)*width
		bins[i].hi = lo + float64(i+1)*width
	}
	for _, a := range activities {
		idx := int((a.DistanceKm - lo) / width)
		if idx >= count {
			idx = count - 1 // max value lands in the last bin
		}
		bins[idx].activities = append(bins[idx].activities, a)
	}
	return bins
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
