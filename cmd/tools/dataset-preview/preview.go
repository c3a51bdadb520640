package main

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/telemetry.replay/internal/datapath"
	"github.com/banshee-data/telemetry.replay/internal/dataset"
	"github.com/banshee-data/telemetry.replay/internal/fsutil"
	"github.com/banshee-data/telemetry.replay/internal/source"
	"github.com/banshee-data/telemetry.replay/internal/transform"
)

// Track is one pass of a flight log after the replay transforms.
type Track struct {
	Name     string
	T        []float64 // seconds since the first row
	RelLat   []float64
	RelLon   []float64
	Altitude []float64 // empty when the log has no height column
}

// BuildTrack replays ds once through the position channel, and the
// altitude channel when the log has a height column.
func BuildTrack(ds *dataset.Dataset, cfg source.ReplayConfig) (*Track, error) {
	replay, err := source.NewReplay(ds, cfg)
	if err != nil {
		return nil, err
	}
	channels := transform.FlightPositionChannels()
	hasAlt := ds.HasColumn(transform.ColumnHeight)
	if hasAlt {
		all := transform.FlightChannels()
		channels = append(channels, all[1])
	}
	stage, err := transform.NewStage(channels, replay.Origin())
	if err != nil {
		return nil, err
	}

	t0 := replay.Origin().Timestamp
	track := &Track{Name: ds.Name}
	for {
		raw, err := replay.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		samples, err := stage.Apply(raw)
		if err != nil {
			return nil, err
		}
		lat, _ := samples[0].Value("rel_lat")
		lon, _ := samples[0].Value("rel_lon")
		track.T = append(track.T, raw.Timestamp-t0)
		track.RelLat = append(track.RelLat, lat)
		track.RelLon = append(track.RelLon, lon)
		if hasAlt {
			alt, _ := samples[1].Value("altitude")
			track.Altitude = append(track.Altitude, alt)
		}
	}
	return track, nil
}

func xys(x, y []float64) plotter.XYs {
	pts := make(plotter.XYs, len(x))
	for i := range x {
		pts[i] = plotter.XY{X: x[i], Y: y[i]}
	}
	return pts
}

// OutputPrefix returns out, or a prefix derived from the dataset name
// when out is empty.
func OutputPrefix(out, datasetName string) string {
	if out != "" {
		return out
	}
	return datapath.SanitizeFilename(datasetName) + "_preview"
}

func savePlot(fsys fsutil.FileSystem, p *plot.Plot, w, h vg.Length, path string) error {
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return err
	}
	return writeFile(fsys, path, func(f io.Writer) error {
		_, err := wt.WriteTo(f)
		return err
	})
}

func writeFile(fsys fsutil.FileSystem, path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := fsys.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// RenderPNG writes <prefix>_track.png and, with altitude data,
// <prefix>_altitude.png. It returns the files written.
func RenderPNG(fsys fsutil.FileSystem, track *Track, prefix string) ([]string, error) {
	var files []string

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: relative track", track.Name)
	p.X.Label.Text = "rel_lon"
	p.Y.Label.Text = "rel_lat"
	p.Add(plotter.NewGrid())
	line, err := plotter.NewLine(xys(track.RelLon, track.RelLat))
	if err != nil {
		return nil, fmt.Errorf("track line: %w", err)
	}
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	line.Width = vg.Points(1)
	p.Add(line)
	trackFile := prefix + "_track.png"
	if err := savePlot(fsys, p, 8*vg.Inch, 8*vg.Inch, trackFile); err != nil {
		return nil, fmt.Errorf("save %s: %w", trackFile, err)
	}
	files = append(files, trackFile)

	if len(track.Altitude) == 0 {
		return files, nil
	}
	pa := plot.New()
	pa.Title.Text = fmt.Sprintf("%s: altitude", track.Name)
	pa.X.Label.Text = "time (s)"
	pa.Y.Label.Text = "altitude (m)"
	pa.Add(plotter.NewGrid())
	altLine, err := plotter.NewLine(xys(track.T, track.Altitude))
	if err != nil {
		return nil, fmt.Errorf("altitude line: %w", err)
	}
	altLine.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	altLine.Width = vg.Points(1)
	pa.Add(altLine)
	altFile := prefix + "_altitude.png"
	if err := savePlot(fsys, pa, 14*vg.Inch, 6*vg.Inch, altFile); err != nil {
		return nil, fmt.Errorf("save %s: %w", altFile, err)
	}
	return append(files, altFile), nil
}

// WriteHTML renders the page to <prefix>.html and returns the file name.
func WriteHTML(fsys fsutil.FileSystem, track *Track, prefix string) (string, error) {
	file := prefix + ".html"
	if err := writeFile(fsys, file, func(w io.Writer) error { return RenderHTML(track, w) }); err != nil {
		return "", fmt.Errorf("save %s: %w", file, err)
	}
	return file, nil
}

// RenderHTML writes an interactive page with the track scatter and, when
// present, the altitude line.
func RenderHTML(track *Track, w io.Writer) error {
	points := make([]opts.ScatterData, len(track.RelLon))
	for i := range track.RelLon {
		points[i] = opts.ScatterData{Value: []interface{}{track.RelLon[i], track.RelLat[i]}}
	}
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Flight preview", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: track.Name, Subtitle: fmt.Sprintf("rows=%d", len(points))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "rel_lon", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "rel_lat", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("flight_position", points, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	page := components.NewPage()
	page.PageTitle = "Flight preview"
	page.AddCharts(scatter)

	if len(track.Altitude) > 0 {
		x := make([]string, len(track.T))
		y := make([]opts.LineData, len(track.T))
		for i := range track.T {
			x[i] = fmt.Sprintf("%.2f", track.T[i])
			y[i] = opts.LineData{Value: track.Altitude[i]}
		}
		alt := charts.NewLine()
		alt.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "400px"}),
			charts.WithTitleOpts(opts.Title{Title: "Altitude (m)"}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		)
		alt.SetXAxis(x).AddSeries("flight_altitude", y)
		page.AddCharts(alt)
	}

	return page.Render(w)
}
