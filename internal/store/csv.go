package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sakif/kudoscope/internal/model"
)

// Column order matches the original dataset layout so existing files keep
// loading across versions. New columns go at the end only.
var activityHeader = []string{
	"id", "name", "type", "sport_type", "start_date",
	"distance", "moving_time", "elapsed_time", "total_elevation_gain",
	"kudos_count", "comment_count", "athlete_count",
	"photo_count", "total_photo_count", "has_photos",
	"average_speed", "max_speed", "average_heartrate", "max_heartrate",
	"pr_count", "achievement_count",
	"visibility", "commute", "manual", "private", "flagged",
	"day_of_week", "hour_of_day",
	"distance_km", "moving_time_hours", "pace_min_per_km", "speed_kmh",
}

var kudosHeader = []string{
	"activity_id", "athlete_id", "athlete_firstname", "athlete_lastname", "athlete_fullname",
}

// LoadActivities reads the activity table. A missing file is the first-run
// condition and returns an empty slice.
func (d *Dir) LoadActivities() ([]model.Activity, error) {
	rows, err := readTable(d.activitiesPath(), len(activityHeader))
	if err != nil {
		return nil, err
	}

	activities := make([]model.Activity, 0, len(rows))
	for i, row := range rows {
		a, err := decodeActivity(row)
		if err != nil {
			return nil, fmt.Errorf("activities.csv row %d: %w", i+2, err)
		}
		activities = append(activities, a)
	}
	return activities, nil
}

// SaveActivities rewrites the whole activity table.
func (d *Dir) SaveActivities(activities []model.Activity) error {
	rows := make([][]string, 0, len(activities))
	for _, a := range activities {
		rows = append(rows, encodeActivity(a))
	}
	return writeTable(d.activitiesPath(), activityHeader, rows)
}

// LoadKudos reads the kudos table; missing file means no kudos collected yet.
func (d *Dir) LoadKudos() ([]model.KudosRecord, error) {
	rows, err := readTable(d.kudosPath(), len(kudosHeader))
	if err != nil {
		return nil, err
	}

	records := make([]model.KudosRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := decodeKudos(row)
		if err != nil {
			return nil, fmt.Errorf("kudos.csv row %d: %w", i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// SaveKudos rewrites the whole kudos table.
func (d *Dir) SaveKudos(records []model.KudosRecord) error {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, encodeKudos(rec))
	}
	return writeTable(d.kudosPath(), kudosHeader, rows)
}

// readTable loads a CSV file and strips the header row.
func readTable(path string, wantFields int) ([][]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = wantFields
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[1:], nil
}

// writeTable rewrites a CSV file with a header row.
func writeTable(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("writing header to %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("writing rows to %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return f.Close()
}

func encodeActivity(a model.Activity) []string {
	return []string{
		strconv.FormatInt(a.ID, 10),
		a.Name,
		a.Type,
		a.SportType,
		a.StartDate.UTC().Format(time.RFC3339),
		formatFloat(a.Distance),
		strconv.FormatInt(a.MovingTime, 10),
		strconv.FormatInt(a.ElapsedTime, 10),
		formatFloat(a.TotalElevationGain),
		strconv.Itoa(a.KudosCount),
		strconv.Itoa(a.CommentCount),
		strconv.Itoa(a.AthleteCount),
		strconv.Itoa(a.PhotoCount),
		strconv.Itoa(a.TotalPhotoCount),
		strconv.FormatBool(a.HasPhotos),
		formatOptFloat(a.AverageSpeed),
		formatOptFloat(a.MaxSpeed),
		formatOptFloat(a.AverageHeartrate),
		formatOptFloat(a.MaxHeartrate),
		strconv.Itoa(a.PRCount),
		strconv.Itoa(a.AchievementCount),
		a.Visibility,
		strconv.FormatBool(a.Commute),
		strconv.FormatBool(a.Manual),
		strconv.FormatBool(a.Private),
		strconv.FormatBool(a.Flagged),
		strconv.Itoa(a.DayOfWeek),
		strconv.Itoa(a.HourOfDay),
		formatFloat(a.DistanceKm),
		formatFloat(a.MovingTimeHours),
		formatFloat(a.PaceMinPerKm),
		formatFloat(a.SpeedKmh),
	}
}

func decodeActivity(row []string) (model.Activity, error) {
	var a model.Activity
	var err error

	if a.ID, err = strconv.ParseInt(row[0], 10, 64); err != nil {
		return a, fmt.Errorf("id: %w", err)
	}
	a.Name = row[1]
	a.Type = row[2]
	a.SportType = row[3]
	if a.StartDate, err = time.Parse(time.RFC3339, row[4]); err != nil {
		return a, fmt.Errorf("start_date: %w", err)
	}
	if a.Distance, err = parseFloat(row[5]); err != nil {
		return a, fmt.Errorf("distance: %w", err)
	}
	if a.MovingTime, err = strconv.ParseInt(row[6], 10, 64); err != nil {
		return a, fmt.Errorf("moving_time: %w", err)
	}
	if a.ElapsedTime, err = strconv.ParseInt(row[7], 10, 64); err != nil {
		return a, fmt.Errorf("elapsed_time: %w", err)
	}
	if a.TotalElevationGain, err = parseFloat(row[8]); err != nil {
		return a, fmt.Errorf("total_elevation_gain: %w", err)
	}
	if a.KudosCount, err = strconv.Atoi(row[9]); err != nil {
		return a, fmt.Errorf("kudos_count: %w", err)
	}
	if a.CommentCount, err = strconv.Atoi(row[10]); err != nil {
		return a, fmt.Errorf("comment_count: %w", err)
	}
	if a.AthleteCount, err = strconv.Atoi(row[11]); err != nil {
		return a, fmt.Errorf("athlete_count: %w", err)
	}
	if a.PhotoCount, err = strconv.Atoi(row[12]); err != nil {
		return a, fmt.Errorf("photo_count: %w", err)
	}
	if a.TotalPhotoCount, err = strconv.Atoi(row[13]); err != nil {
		return a, fmt.Errorf("total_photo_count: %w", err)
	}
	if a.HasPhotos, err = strconv.ParseBool(row[14]); err != nil {
		return a, fmt.Errorf("has_photos: %w", err)
	}
	if a.AverageSpeed, err = parseOptFloat(row[15]); err != nil {
		return a, fmt.Errorf("average_speed: %w", err)
	}
	if a.MaxSpeed, err = parseOptFloat(row[16]); err != nil {
		return a, fmt.Errorf("max_speed: %w", err)
	}
	if a.AverageHeartrate, err = parseOptFloat(row[17]); err != nil {
		return a, fmt.Errorf("average_heartrate: %w", err)
	}
	if a.MaxHeartrate, err = parseOptFloat(row[18]); err != nil {
		return a, fmt.Errorf("max_heartrate: %w", err)
	}
	if a.PRCount, err = strconv.Atoi(row[19]); err != nil {
		return a, fmt.Errorf("pr_count: %w", err)
	}
	if a.AchievementCount, err = strconv.Atoi(row[20]); err != nil {
		return a, fmt.Errorf("achievement_count: %w", err)
	}
	a.Visibility = row[21]
	if a.Commute, err = strconv.ParseBool(row[22]); err != nil {
		return a, fmt.Errorf("commute: %w", err)
	}
	if a.Manual, err = strconv.ParseBool(row[23]); err != nil {
		return a, fmt.Errorf("manual: %w", err)
	}
	if a.Private, err = strconv.ParseBool(row[24]); err != nil {
		return a, fmt.Errorf("private: %w", err)
	}
	if a.Flagged, err = strconv.ParseBool(row[25]); err != nil {
		return a, fmt.Errorf("flagged: %w", err)
	}
	if a.DayOfWeek, err = strconv.Atoi(row[26]); err != nil {
		return a, fmt.Errorf("day_of_week: %w", err)
	}
	if a.HourOfDay, err = strconv.Atoi(row[27]); err != nil {
		return a, fmt.Errorf("hour_of_day: %w", err)
	}
	if a.DistanceKm, err = parseFloat(row[28]); err != nil {
		return a, fmt.Errorf("distance_km: %w", err)
	}
	if a.MovingTimeHours, err = parseFloat(row[29]); err != nil {
		return a, fmt.Errorf("moving_time_hours: %w", err)
	}
	if a.PaceMinPerKm, err = parseFloat(row[30]); err != nil {
		return a, fmt.Errorf("pace_min_per_km: %w", err)
	}
	if a.SpeedKmh, err = parseFloat(row[31]); err != nil {
		return a, fmt.Errorf("speed_kmh: %w", err)
	}

	return a, nil
}

func encodeKudos(rec model.KudosRecord) []string {
	return []string{
		strconv.FormatInt(rec.ActivityID, 10),
		strconv.FormatInt(rec.AthleteID, 10),
		rec.Firstname,
		rec.Lastname,
		rec.Fullname,
	}
}

func decodeKudos(row []string) (model.KudosRecord, error) {
	var rec model.KudosRecord
	var err error

	if rec.ActivityID, err = strconv.ParseInt(row[0], 10, 64); err != nil {
		return rec, fmt.Errorf("activity_id: %w", err)
	}
	if rec.AthleteID, err = strconv.ParseInt(row[1], 10, 64); err != nil {
		return rec, fmt.Errorf("athlete_id: %w", err)
	}
	rec.Firstname = row[2]
	rec.Lastname = row[3]
	rec.Fullname = row[4]
	return rec, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// Optional floats round-trip as an empty cell — 0 would be indistinguishable
// from a real measurement.
func formatOptFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

func parseOptFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
