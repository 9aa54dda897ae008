package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/wesleyorama2/surge/internal/loadtest"
	"github.com/wesleyorama2/surge/internal/request"
	"github.com/wesleyorama2/surge/internal/stats"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{500 * time.Millisecond, "500ms"},
		{1 * time.Second, "1.0s"},
		{1*time.Minute + 30*time.Second, "1m 30s"},
		{1*time.Hour + 2*time.Minute + 3*time.Second, "1h 02m 03s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := formatDuration(tt.duration)
			if result != tt.expected {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.duration, result, tt.expected)
			}
		})
	}
}

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{0, "0ms"},
		{500 * time.Microsecond, "500µs"},
		{50 * time.Millisecond, "50ms"},
		{1500 * time.Millisecond, "1.50s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := formatDurationShort(tt.duration)
			if result != tt.expected {
				t.Errorf("formatDurationShort(%v) = %q, want %q", tt.duration, result, tt.expected)
			}
		})
	}
}

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		progress float64
		expected string
	}{
		{0, "[░░░░]"},
		{0.5, "[██░░]"},
		{1, "[████]"},
		{2, "[████]"},
		{-1, "[░░░░]"},
	}

	for _, tt := range tests {
		if got := renderProgressBar(tt.progress, 4); got != tt.expected {
			t.Errorf("renderProgressBar(%v) = %q, want %q", tt.progress, got, tt.expected)
		}
	}
}

func sampleSnapshot() *stats.Snapshot {
	s := stats.New()
	s.Record(request.OpWrite, &request.Response{StatusCode: 200, Latency: 10 * time.Millisecond, Bytes: 4096})
	s.Record(request.OpRead, &request.Response{StatusCode: 200, Latency: 5 * time.Millisecond, Bytes: 4096})
	s.Record(request.OpRead, &request.Response{StatusCode: 404, Latency: 2 * time.Millisecond})
	s.Record(request.OpRead, &request.Response{StatusCode: request.StatusClientFailure, Latency: time.Millisecond})
	return s.Snapshot()
}

func TestConsoleCreation(t *testing.T) {
	var buf bytes.Buffer

	c := NewConsole(ConsoleConfig{TestName: "bench", Writer: &buf})

	// Should not be TTY when writing to buffer
	if c.IsTTY() {
		t.Error("Expected non-TTY when writing to buffer")
	}
}

func TestConsole_PrintHeader(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{TestName: "bench", Target: "100 req/s", Writer: &buf})

	c.PrintHeader()

	out := buf.String()
	if !strings.Contains(out, "bench - Running") {
		t.Errorf("header missing test name: %q", out)
	}
	if !strings.Contains(out, "[100 req/s]") {
		t.Errorf("header missing target: %q", out)
	}
	if strings.Contains(out, "\033[") {
		t.Error("non-TTY output should not contain escape codes")
	}
}

func TestConsole_NonInteractiveUpdate(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{TestName: "bench", Writer: &buf})

	snap := sampleSnapshot()
	snap.Elapsed = 2 * time.Second
	c.Update(snap)

	out := buf.String()
	if !strings.Contains(out, "Reqs: 4") {
		t.Errorf("update missing request count: %q", out)
	}
	if !strings.Contains(out, "RPS: 2.0") {
		t.Errorf("update missing interval RPS: %q", out)
	}
	if strings.Count(out, "\n") != 1 {
		t.Errorf("non-TTY update should be a single line: %q", out)
	}
}

func TestConsole_LiveUpdateOverwrites(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{TestName: "bench", Writer: &buf, ForceTTY: true, Runtime: 10 * time.Second})

	snap := sampleSnapshot()
	snap.Elapsed = 5 * time.Second
	c.Update(snap)
	if !strings.Contains(buf.String(), "50%") {
		t.Errorf("live update missing progress: %q", buf.String())
	}

	buf.Reset()
	c.Update(snap)
	if !strings.Contains(buf.String(), "\033[3A") {
		t.Errorf("second update should move the cursor up: %q", buf.String())
	}
}

func TestConsole_PrintSummary(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{TestName: "bench", Writer: &buf})

	start := time.Now()
	c.PrintSummary(&Summary{
		Name:   "bench",
		Target: "100 req/s",
		Result: &loadtest.Result{
			Start:    start,
			Finish:   start.Add(90 * time.Second),
			Success:  false,
			Messages: []string{"client failures reached 1"},
			Requests: 4,
		},
		Stats: sampleSnapshot(),
	})

	out := buf.String()
	for _, want := range []string{
		"bench - Failed",
		"Duration:      1m 30s",
		"Reason:        client failures reached 1",
		"Client Errors: 1",
		"Operations:",
		"write",
		"read",
		"total",
		"Status Codes:",
		"599 (client)",
		"404",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestConsole_Quiet(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf, Quiet: true})

	c.PrintHeader()
	c.Update(sampleSnapshot())
	c.PrintSummary(&Summary{Result: &loadtest.Result{Success: true}})

	if got := strings.TrimSpace(buf.String()); got != "PASSED" {
		t.Errorf("quiet output = %q, want PASSED", got)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	err := WriteJSON(&buf, &Summary{
		Name:   "bench",
		Mode:   "rate",
		Result: &loadtest.Result{Success: true, Requests: 4},
		Stats:  sampleSnapshot(),
	})
	if err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	var decoded struct {
		Name   string `json:"name"`
		Result struct {
			Success  bool  `json:"success"`
			Requests int64 `json:"requests"`
		} `json:"result"`
		Stats struct {
			Total struct {
				Requests int64 `json:"requests"`
			} `json:"total"`
			Operations  map[string]json.RawMessage `json:"operations"`
			StatusCodes map[string]int64           `json:"statusCodes"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if decoded.Name != "bench" || !decoded.Result.Success || decoded.Result.Requests != 4 {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Stats.Total.Requests != 4 {
		t.Errorf("total requests = %d, want 4", decoded.Stats.Total.Requests)
	}
	if _, ok := decoded.Stats.Operations["read"]; !ok {
		t.Error("operations missing read")
	}
	if decoded.Stats.StatusCodes["599"] != 1 {
		t.Errorf("statusCodes = %v", decoded.Stats.StatusCodes)
	}
}

func TestWriteHTML(t *testing.T) {
	start := time.Now()
	var buf bytes.Buffer
	err := WriteHTML(&buf, &Summary{
		Name:   "bench <1>",
		Target: "100 req/s (bursty)",
		Result: &loadtest.Result{
			Start:    start,
			Finish:   start.Add(time.Minute),
			Success:  false,
			Messages: []string{"client failures reached 1"},
		},
		Stats: sampleSnapshot(),
	})
	if err != nil {
		t.Fatalf("WriteHTML() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"<!DOCTYPE html>",
		"bench &lt;1&gt;",
		"✗ FAILED",
		"client failures reached 1",
		"<td>write</td>",
		"<td>read</td>",
		"599 (client)",
		"const timeSeriesData = [",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestWriteHTML_EmptySummary(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, &Summary{}); err == nil {
		t.Error("WriteHTML() should reject a summary without results")
	}
	if buf.Len() != 0 {
		t.Error("nothing should be written on error")
	}
}
