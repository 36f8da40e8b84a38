package analyzer

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/kudoscope/internal/model"
	"github.com/sakif/kudoscope/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestAnalyzer(t *testing.T, opts ...Option) (*Analyzer, *bytes.Buffer, store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	return New(st, &out, testLogger(), opts...), &out, st
}

func act(id int64, typ string, distanceKm float64, kudos, photos int) model.Activity {
	a := model.Activity{
		ID:              id,
		Type:            typ,
		StartDate:       time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Hour),
		Distance:        distanceKm * 1000,
		MovingTime:      int64(distanceKm * 180), // ~20 km/h
		KudosCount:      kudos,
		TotalPhotoCount: photos,
	}
	a.Derive()
	return a
}

// sampleDataset builds rides where photo activities also earn more kudos,
// enough rows in both groups for every section to engage.
func sampleDataset() *Dataset {
	ds := &Dataset{}
	for i := int64(0); i < 15; i++ {
		ds.Activities = append(ds.Activities, act(100+i, "Ride", 20+float64(i), 5+int(i%3), 0))
		ds.Activities = append(ds.Activities, act(200+i, "Ride", 20+float64(i), 12+int(i%3), 2))
	}
	ds.Activities = append(ds.Activities, act(300, "Run", 8, 3, 0))
	ds.Kudos = []model.KudosRecord{
		{ActivityID: 200, AthleteID: 1, Fullname: "Jane D."},
		{ActivityID: 201, AthleteID: 1, Fullname: "Jane D."},
		{ActivityID: 202, AthleteID: 1, Fullname: "Jane D."},
		{ActivityID: 200, AthleteID: 2, Fullname: "Bob S."},
		{ActivityID: 201, AthleteID: 3, Fullname: ""},
	}
	return ds
}

func TestBasicStats(t *testing.T) {
	a, out, _ := newTestAnalyzer(t)
	a.BasicStats(sampleDataset())

	report := out.String()
	assert.Contains(t, report, "Total activities: 31")
	assert.Contains(t, report, "Activities with photos: 15")
	assert.Contains(t, report, "Activities without photos: 16")
	assert.Contains(t, report, "Ride")
	assert.Contains(t, report, "Date range:")
}

func TestBasicStatsEmptyDataset(t *testing.T) {
	a, out, _ := newTestAnalyzer(t)
	a.BasicStats(&Dataset{})
	assert.Contains(t, out.String(), "No cached activities")
}

func TestPhotoImpactReportsTests(t *testing.T) {
	a, out, _ := newTestAnalyzer(t)
	a.PhotoImpact(sampleDataset())

	report := out.String()
	assert.Contains(t, report, "Welch t-test")
	assert.Contains(t, report, "Mann-Whitney U")
	// Photo activities earn a flat +7 kudos, so the test must call it.
	assert.Contains(t, report, "Photos significantly change kudos: Yes")
	// Ride has over 10 samples in both groups; the per-type block engages.
	assert.Contains(t, report, "Ride:")
}

func TestPhotoImpactOneSidedDataDegrades(t *testing.T) {
	ds := &Dataset{}
	for i := int64(0); i < 5; i++ {
		ds.Activities = append(ds.Activities, act(i, "Ride", 10, 4, 0))
	}

	a, out, _ := newTestAnalyzer(t)
	a.PhotoImpact(ds)
	assert.Contains(t, out.String(), "Need both photo and no-photo activities")
}

func TestDistanceControlled(t *testing.T) {
	a, out, _ := newTestAnalyzer(t)
	a.DistanceControlled(sampleDataset())

	report := out.String()
	assert.Contains(t, report, "Analyzing Ride activities (n=30)")
	assert.Contains(t, report, "Distance-controlled photo advantage:")
	assert.Contains(t, report, "Significant bins")
}

func TestDistanceControlledThinData(t *testing.T) {
	ds := &Dataset{Activities: []model.Activity{act(1, "Hike", 5, 2, 1)}}
	a, out, _ := newTestAnalyzer(t)
	a.DistanceControlled(ds)
	assert.Contains(t, out.String(), "Not enough activities")
}

func TestCorrelationsSortedDescending(t *testing.T) {
	a, out, _ := newTestAnalyzer(t)
	a.Correlations(sampleDataset())

	report := out.String()
	assert.Contains(t, report, "Correlation with kudos count:")
	assert.Contains(t, report, "total_photo_count")
	// Photos drive kudos in the sample, distance does not, so the photo
	// feature must rank above distance in the descending table.
	photoIdx := bytes.Index(out.Bytes(), []byte("total_photo_count"))
	distIdx := bytes.Index(out.Bytes(), []byte("distance_km"))
	assert.Less(t, photoIdx, distIdx)
}

func TestCorrelationsEmptyDataset(t *testing.T) {
	a, out, _ := newTestAnalyzer(t)
	a.Correlations(&Dataset{})
	assert.Contains(t, out.String(), "Not enough numeric data")
}

func TestTiming(t *testing.T) {
	a, out, _ := newTestAnalyzer(t)
	a.Timing(sampleDataset())

	report := out.String()
	assert.Contains(t, report, "TIMING ANALYSIS")
	assert.Contains(t, report, "Average kudos by day of week:")
	assert.Contains(t, report, "Best hours for kudos:")
}

func TestTimingEmptyDataset(t *testing.T) {
	a, out, _ := newTestAnalyzer(t)
	a.Timing(&Dataset{})
	assert.Contains(t, out.String(), "No cached activities")
}

func TestTopGivers(t *testing.T) {
	a, out, _ := newTestAnalyzer(t, WithTopGivers(2))
	a.TopGivers(sampleDataset())

	report := out.String()
	assert.Contains(t, report, "TOP 2 KUDOS GIVERS")
	assert.Contains(t, report, "Total unique people who gave kudos: 3")
	assert.Contains(t, report, "Total kudos tracked: 5")
	assert.Contains(t, report, "Jane D.")
	// Jane gave 3 of 5 kudos: 60%.
	assert.Contains(t, report, "Top 5 givers account for: 100.0%")
	assert.Contains(t, report, "Jane D. (your #1 supporter) gave kudos to 3 of your activities")
	// The blank fullname renders with the fallback label.
	assert.NotContains(t, report, "2. \n")
}

func TestTopGiversNoData(t *testing.T) {
	a, out, _ := newTestAnalyzer(t)
	a.TopGivers(&Dataset{})
	assert.Contains(t, out.String(), "No kudos data available")
}

func TestTopGiversBlankNameFallback(t *testing.T) {
	ds := &Dataset{Kudos: []model.KudosRecord{
		{ActivityID: 1, AthleteID: 9, Fullname: "  "},
	}}
	a, out, _ := newTestAnalyzer(t)
	a.TopGivers(ds)
	assert.Contains(t, out.String(), "Unknown Athlete")
}

func TestRunAllOverEmptyCache(t *testing.T) {
	// A fresh data directory must produce a degraded report, not an error.
	a, out, _ := newTestAnalyzer(t)
	ds, err := a.RunAll()
	assert.NoError(t, err)
	assert.Empty(t, ds.Activities)
	assert.Contains(t, out.String(), "BASIC STATISTICS")
	assert.Contains(t, out.String(), "No cached activities")
}

func TestRunAllOverPersistedCache(t *testing.T) {
	a, out, st := newTestAnalyzer(t)
	sample := sampleDataset()
	assert.NoError(t, st.SaveActivities(sample.Activities))
	assert.NoError(t, st.SaveKudos(sample.Kudos))

	ds, err := a.RunAll()
	assert.NoError(t, err)
	assert.Len(t, ds.Activities, 31)
	assert.Contains(t, out.String(), "PHOTO IMPACT ANALYSIS")
	assert.Contains(t, out.String(), "TOP 30 KUDOS GIVERS")
}

func TestRenderChartsWritesFiles(t *testing.T) {
	a, _, _ := newTestAnalyzer(t)
	dir := filepath.Join(t.TempDir(), "charts")

	assert.NoError(t, a.RenderCharts(sampleDataset(), dir))
	for _, name := range []string{
		"kudos_by_photos.png",
		"kudos_by_type.png",
		"photos_vs_kudos.png",
		"kudos_histogram.png",
	} {
		info, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
		if err == nil {
			assert.NotZero(t, info.Size(), name)
		}
	}
}

func TestRenderChartsEmptyDatasetIsNoop(t *testing.T) {
	a, _, _ := newTestAnalyzer(t)
	dir := filepath.Join(t.TempDir(), "charts")
	assert.NoError(t, a.RenderCharts(&Dataset{}, dir))
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "no chart dir for an empty dataset")
}
