package analyzer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/sakif/kudoscope/internal/model"
)

// RenderCharts writes the analysis charts as PNG files into dir. A chart
// with no underlying data is skipped with a log line rather than failing
// the run.
func (a *Analyzer) RenderCharts(ds *Dataset, dir string) error {
	if len(ds.Activities) == 0 {
		a.logger.Warn("no cached activities, skipping charts")
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating chart directory: %w", err)
	}

	charts := []struct {
		file   string
		render func() (*plot.Plot, error)
	}{
		{"kudos_by_photos.png", func() (*plot.Plot, error) { return kudosByPhotosBox(ds.Activities) }},
		{"kudos_by_type.png", func() (*plot.Plot, error) { return kudosByTypeBox(ds.Activities) }},
		{"photos_vs_kudos.png", func() (*plot.Plot, error) { return photosVsKudosScatter(ds.Activities) }},
		{"kudos_histogram.png", func() (*plot.Plot, error) { return kudosHistogram(ds.Activities) }},
	}

	for _, c := range charts {
		p, err := c.render()
		if err != nil {
			a.logger.Warn("skipping chart",
				slog.String("chart", c.file),
				slog.String("reason", err.Error()),
			)
			continue
		}
		path := filepath.Join(dir, c.file)
		if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
			return fmt.Errorf("saving %s: %w", c.file, err)
		}
		a.logger.Info("chart written", slog.String("path", path))
	}
	return nil
}

func kudosByPhotosBox(activities []model.Activity) (*plot.Plot, error) {
	with, without := splitByPhotos(activities)
	if len(with) == 0 || len(without) == 0 {
		return nil, fmt.Errorf("need both photo and no-photo activities")
	}

	p := plot.New()
	p.Title.Text = "Kudos by Photo Presence"
	p.Y.Label.Text = "Kudos"

	boxWithout, err := plotter.NewBoxPlot(vg.Points(40), 0, plotter.Values(without))
	if err != nil {
		return nil, err
	}
	boxWith, err := plotter.NewBoxPlot(vg.Points(40), 1, plotter.Values(with))
	if err != nil {
		return nil, err
	}
	p.Add(boxWithout, boxWith)
	p.NominalX("No Photos", "With Photos")
	return p, nil
}

func kudosByTypeBox(activities []model.Activity) (*plot.Plot, error) {
	types := typeCounts(activities, 5)
	if len(types) == 0 {
		return nil, fmt.Errorf("no activity types")
	}

	p := plot.New()
	p.Title.Text = "Kudos by Activity Type"
	p.Y.Label.Text = "Kudos"

	labels := make([]string, 0, len(types))
	for i, tc := range types {
		var values plotter.Values
		for _, a := range activities {
			if a.Type == tc.name {
				values = append(values, float64(a.KudosCount))
			}
		}
		box, err := plotter.NewBoxPlot(vg.Points(30), float64(i), values)
		if err != nil {
			return nil, err
		}
		p.Add(box)
		labels = append(labels, tc.name)
	}
	p.NominalX(labels...)
	return p, nil
}

func photosVsKudosScatter(activities []model.Activity) (*plot.Plot, error) {
	pts := make(plotter.XYs, len(activities))
	for i, a := range activities {
		pts[i].X = float64(a.TotalPhotoCount)
		pts[i].Y = float64(a.KudosCount)
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = "Photos vs Kudos"
	p.X.Label.Text = "Photo count"
	p.Y.Label.Text = "Kudos"
	p.Add(scatter)
	return p, nil
}

func kudosHistogram(activities []model.Activity) (*plot.Plot, error) {
	values := make(plotter.Values, len(activities))
	for i, a := range activities {
		values[i] = float64(a.KudosCount)
	}
	hist, err := plotter.NewHist(values, 20)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = "Kudos Distribution"
	p.X.Label.Text = "Kudos"
	p.Y.Label.Text = "Activities"
	p.Add(hist)
	return p, nil
}
