package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/wesleyorama2/surge/internal/request"
	"github.com/wesleyorama2/surge/internal/stats"
)

// reportData contains all data needed to render the HTML report.
type reportData struct {
	*Summary
	Operations     []operationRow
	StatusCodes    []statusRow
	TimeSeriesJSON template.JS
}

type operationRow struct {
	Name string
	stats.OperationStats
}

type statusRow struct {
	Code  int
	Count int64
	Class string
}

// seriesPoint is a time series bucket as the report's chart reads it.
type seriesPoint struct {
	Second   float64 `json:"t"`
	RPS      float64 `json:"rps"`
	Failures int64   `json:"failures"`
	Bytes    int64   `json:"bytes"`
}

// WriteHTML renders a self-contained HTML report of s to w.
func WriteHTML(w io.Writer, s *Summary) error {
	if s == nil || s.Result == nil || s.Stats == nil {
		return fmt.Errorf("summary cannot be empty")
	}

	tmpl, err := template.New("report").Funcs(templateFuncs()).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	series, err := timeSeriesJSON(s.Stats.TimeSeries)
	if err != nil {
		return fmt.Errorf("failed to convert time series: %w", err)
	}

	data := reportData{
		Summary:        s,
		TimeSeriesJSON: template.JS(series),
	}
	for _, op := range request.Operations {
		if opStats, ok := s.Stats.Operations[op]; ok {
			data.Operations = append(data.Operations, operationRow{Name: string(op), OperationStats: opStats})
		}
	}
	for _, code := range s.Stats.SortedStatusCodes() {
		data.StatusCodes = append(data.StatusCodes, statusRow{
			Code:  code,
			Count: s.Stats.StatusCodes[code],
			Class: statusClass(code),
		})
	}

	// Render fully before writing so a template error leaves w untouched.
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	_, err = buf.WriteTo(w)
	return err
}

// timeSeriesJSON converts the time series buckets to JSON for the chart.
func timeSeriesJSON(buckets []stats.Bucket) (string, error) {
	if len(buckets) == 0 {
		return "[]", nil
	}

	interval := time.Second
	if len(buckets) > 1 {
		interval = buckets[1].Offset - buckets[0].Offset
	}

	points := make([]seriesPoint, len(buckets))
	for i, b := range buckets {
		points[i] = seriesPoint{
			Second:   b.Offset.Seconds(),
			RPS:      b.RPS(interval),
			Failures: b.Failures,
			Bytes:    b.Bytes,
		}
	}

	data, err := json.Marshal(points)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}

func statusClass(code int) string {
	switch {
	case code == request.StatusClientFailure:
		return "client"
	case code >= 200 && code < 300:
		return "ok"
	case code >= 400 && code < 500:
		return "warn"
	default:
		return "error"
	}
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"duration": formatDuration,
		"latency":  formatDurationShort,
		"number":   func(n int64) string { return humanize.Comma(n) },
		"bytes":    func(n int64) string { return humanize.IBytes(uint64(max(n, 0))) },
		"rate":     func(bps float64) string { return humanize.IBytes(uint64(max(bps, 0))) + "/s" },
		"percent":  func(f float64) string { return fmt.Sprintf("%.2f%%", f*100) },
		"successRate": func(o stats.OperationStats) string {
			if o.Requests == 0 {
				return "-"
			}
			return fmt.Sprintf("%.2f%%", float64(o.Success)/float64(o.Requests)*100)
		},
	}
}
