package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/suryavirkapur/DrivinData/internal/db"
	"github.com/suryavirkapur/DrivinData/internal/httputil"
	"github.com/suryavirkapur/DrivinData/internal/sensors"
	"github.com/suryavirkapur/DrivinData/internal/trip"
	"github.com/suryavirkapur/DrivinData/internal/units"
)

// showChart renders an HTML line chart of a session's speed and
// acceleration magnitude over time using go-echarts. This is a quick
// inspection view, not part of the JSON API.
func (s *Server) showChart(w http.ResponseWriter, id int64) {
	rows, err := s.db.TelemetryForSession(id)
	if err != nil {
		if errors.Is(err, db.ErrSessionNotFound) {
			httputil.NotFound(w, fmt.Sprintf("session %d not found", id))
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve telemetry: %v", err))
		return
	}
	if len(rows) == 0 {
		httputil.NotFound(w, fmt.Sprintf("no telemetry for session %d", id))
		return
	}

	var speedTimes []string
	var speeds []opts.LineData
	var accelTimes []string
	var accels []opts.LineData
	for _, row := range rows {
		ts := row.Timestamp.Format(time.TimeOnly)
		if row.Speed != nil {
			speedTimes = append(speedTimes, ts)
			speeds = append(speeds, opts.LineData{Value: units.ConvertSpeed(*row.Speed, s.units)})
		}
		if row.AccelerationX != nil {
			accelTimes = append(accelTimes, ts)
			mag := trip.Magnitude(sensors.MotionSample{
				X: *row.AccelerationX,
				Y: *row.AccelerationY,
				Z: *row.AccelerationZ,
			})
			accels = append(accels, opts.LineData{Value: mag})
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: fmt.Sprintf("Session %d", id),
			Theme:     "dark",
			Width:     "1200px",
			Height:    "500px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Session %d", id),
			Subtitle: fmt.Sprintf("speed (%s) and acceleration magnitude (g)", s.units),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	if len(speeds) > 0 {
		line.SetXAxis(speedTimes)
		line.AddSeries(fmt.Sprintf("speed (%s)", s.units), speeds)
	} else {
		line.SetXAxis(accelTimes)
	}
	if len(accels) > 0 {
		line.AddSeries("acceleration (g)", accels)
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
