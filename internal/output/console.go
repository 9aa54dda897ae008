// Package output renders load test progress and results for humans
// (console) and machines (JSON).
package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/wesleyorama2/surge/internal/loadtest"
	"github.com/wesleyorama2/surge/internal/request"
	"github.com/wesleyorama2/surge/internal/stats"
)

const (
	// Cursor control
	cursorUp  = "\033[%dA" // Move cursor up N lines
	clearLine = "\033[2K"  // Clear entire line

	boxHorizontal  = "━"
	progressFilled = "█"
	progressEmpty  = "░"
)

// Summary is everything reported about a finished test.
type Summary struct {
	Name   string           `json:"name"`
	Mode   string           `json:"mode"`
	Target string           `json:"target"`
	Result *loadtest.Result `json:"result"`
	Stats  *stats.Snapshot  `json:"stats"`
}

// Console writes live progress and the final summary to a terminal or log.
type Console struct {
	testName string
	target   string
	runtime  time.Duration
	writer   io.Writer
	isTTY    bool
	quiet    bool
	colors   *ColorScheme

	mu          sync.Mutex
	lastTotal   int64
	lastElapsed time.Duration
	linesOutput int // Number of lines in the live display
}

// ConsoleConfig contains configuration for Console.
type ConsoleConfig struct {
	TestName string
	// Target describes the load, e.g. "250 req/s"
	Target string
	// Runtime is the configured runtime, used for the progress bar
	Runtime     time.Duration
	Writer      io.Writer
	Quiet       bool
	ForceColors bool
	NoColors    bool
	ForceTTY    bool
}

// NewConsole creates a new console output handler.
func NewConsole(config ConsoleConfig) *Console {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}

	isTTY := config.ForceTTY || isTerminal(config.Writer)

	colors := NoColorScheme()
	if !config.NoColors && (config.ForceColors || (isTTY && supportsColors())) {
		colors = DefaultColorScheme()
		if config.ForceColors {
			for _, col := range colors.all() {
				col.EnableColor()
			}
		}
	}

	return &Console{
		testName: config.TestName,
		target:   config.Target,
		runtime:  config.Runtime,
		writer:   config.Writer,
		isTTY:    isTTY,
		quiet:    config.Quiet,
		colors:   colors,
	}
}

// IsTTY returns whether the output is a terminal.
func (c *Console) IsTTY() bool {
	return c.isTTY
}

// PrintHeader prints the test header.
func (c *Console) PrintHeader() {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	line := c.colors.Rule.Sprint(strings.Repeat(boxHorizontal, 56))
	target := ""
	if c.target != "" {
		target = " " + c.colors.Dim.Sprintf("[%s]", c.target)
	}

	c.writeln(line)
	c.writeln(c.colors.Title.Sprintf("%s - Running", c.testName) + target)
	c.writeln(line)
	c.writeln("")
}

// Update shows the current progress. On a terminal the previous update is
// overwritten; otherwise a single status line is printed.
func (c *Console) Update(snap *stats.Snapshot) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rps := c.intervalRPS(snap)

	if !c.isTTY {
		c.writeln(fmt.Sprintf("[%s] Reqs: %d | RPS: %.1f | Errors: %d (%.1f%%) | P95: %s | %s/s",
			formatDuration(snap.Elapsed),
			snap.Total.Requests,
			rps,
			snap.Total.Failed,
			snap.ErrorRate*100,
			formatDurationShort(snap.Total.Latency.P95),
			humanize.IBytes(uint64(snap.Throughput))))
		return
	}

	c.clearLive()

	lines := c.renderLive(snap, rps)
	c.linesOutput = len(lines)
	for _, line := range lines {
		c.writeln(line)
	}
}

// intervalRPS returns the request rate since the previous update.
func (c *Console) intervalRPS(snap *stats.Snapshot) float64 {
	defer func() {
		c.lastTotal = snap.Total.Requests
		c.lastElapsed = snap.Elapsed
	}()

	dt := (snap.Elapsed - c.lastElapsed).Seconds()
	if dt <= 0 {
		return snap.RPS
	}
	return float64(snap.Total.Requests-c.lastTotal) / dt
}

func (c *Console) renderLive(snap *stats.Snapshot, rps float64) []string {
	var lines []string

	if c.runtime > 0 {
		progress := float64(snap.Elapsed) / float64(c.runtime)
		lines = append(lines, fmt.Sprintf("Progress: %s %s | %s",
			c.colors.StatusOK.Sprint(renderProgressBar(progress, 40)),
			c.colors.Title.Sprintf("%.0f%%", clamp01(progress)*100),
			c.colors.Dim.Sprintf("%s / %s", formatDuration(snap.Elapsed), formatDuration(c.runtime))))
	} else {
		lines = append(lines, fmt.Sprintf("Elapsed:  %s", c.colors.Value.Sprint(formatDuration(snap.Elapsed))))
	}

	errColor := c.colors.Rate(snap.ErrorRate)
	lines = append(lines,
		fmt.Sprintf("Requests: %s   RPS: %s   Errors: %s",
			c.colors.Value.Sprint(humanize.Comma(snap.Total.Requests)),
			c.colors.StatusOK.Sprintf("%.1f", rps),
			errColor.Sprintf("%d (%.1f%%)", snap.Total.Failed, snap.ErrorRate*100)),
		fmt.Sprintf("P95:      %s   Avg: %s   Throughput: %s/s",
			c.colors.Value.Sprint(formatDurationShort(snap.Total.Latency.P95)),
			c.colors.Value.Sprint(formatDurationShort(snap.Total.Latency.Mean)),
			c.colors.Value.Sprint(humanize.IBytes(uint64(snap.Throughput)))),
	)
	return lines
}

func (c *Console) clearLive() {
	if c.linesOutput == 0 {
		return
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	for i := 0; i < c.linesOutput; i++ {
		c.write(clearLine + "\n")
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	c.linesOutput = 0
}

// PrintSummary prints the final test summary.
func (c *Console) PrintSummary(s *Summary) {
	if c.quiet {
		// In quiet mode, just print passed/failed status
		if s.Result != nil && s.Result.Success {
			c.writeln(c.colors.StatusOK.Sprint("PASSED"))
		} else {
			c.writeln(c.colors.StatusError.Sprint("FAILED"))
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isTTY {
		c.clearLive()
	}

	line := c.colors.Rule.Sprint(strings.Repeat(boxHorizontal, 56))
	status := c.colors.StatusOK.Sprint("Completed ✓")
	if s.Result != nil && !s.Result.Success {
		status = c.colors.StatusError.Sprint("Failed ✗")
	}

	c.writeln("")
	c.writeln(line)
	c.writeln(fmt.Sprintf("%s - %s", c.colors.Title.Sprint(s.Name), status))
	c.writeln(line)
	c.writeln("")

	if s.Result != nil {
		c.writeln(fmt.Sprintf("Duration:      %s", c.colors.Value.Sprint(formatDuration(s.Result.Duration()))))
		c.writeln(fmt.Sprintf("Issued:        %s", c.colors.Value.Sprint(humanize.Comma(s.Result.Requests))))
		for _, msg := range s.Result.Messages {
			c.writeln(fmt.Sprintf("Reason:        %s", c.colors.StatusError.Sprint(msg)))
		}
	}
	if s.Target != "" {
		c.writeln(fmt.Sprintf("Target:        %s", c.colors.Value.Sprint(s.Target)))
	}

	snap := s.Stats
	if snap == nil {
		return
	}

	successRate := 1.0 - snap.ErrorRate
	c.writeln(fmt.Sprintf("Completed:     %s", c.colors.Value.Sprint(humanize.Comma(snap.Total.Requests))))
	c.writeln(fmt.Sprintf("Success Rate:  %s", c.colors.Rate(snap.ErrorRate).Sprintf("%.1f%%", successRate*100)))
	c.writeln(fmt.Sprintf("Throughput:    %s", c.colors.Value.Sprintf("%.1f req/s, %s/s", snap.RPS, humanize.IBytes(uint64(snap.Throughput)))))
	if snap.ClientFailures > 0 {
		c.writeln(fmt.Sprintf("Client Errors: %s", c.colors.StatusError.Sprint(humanize.Comma(snap.ClientFailures))))
	}
	c.writeln("")

	if len(snap.Operations) > 0 {
		c.writeln(c.colors.Title.Sprint("Operations:"))
		c.renderOperations(snap)
		c.writeln("")
	}

	if len(snap.StatusCodes) > 0 {
		c.writeln(c.colors.Title.Sprint("Status Codes:"))
		c.renderStatusCodes(snap)
		c.writeln("")
	}
}

// renderOperations writes the per-operation table.
func (c *Console) renderOperations(snap *stats.Snapshot) {
	table := tablewriter.NewWriter(c.writer)
	table.SetHeader([]string{"Operation", "Requests", "Success", "Failed", "Bytes", "Avg", "P50", "P95", "P99", "Max"})
	table.SetBorder(true)
	table.SetAutoFormatHeaders(false)

	appendRow := func(name string, ops stats.OperationStats) {
		table.Append([]string{
			name,
			humanize.Comma(ops.Requests),
			humanize.Comma(ops.Success),
			humanize.Comma(ops.Failed),
			humanize.IBytes(uint64(ops.Bytes)),
			formatDurationShort(ops.Latency.Mean),
			formatDurationShort(ops.Latency.P50),
			formatDurationShort(ops.Latency.P95),
			formatDurationShort(ops.Latency.P99),
			formatDurationShort(ops.Latency.Max),
		})
	}

	for _, op := range request.Operations {
		if ops, ok := snap.Operations[op]; ok {
			appendRow(string(op), ops)
		}
	}
	if len(snap.Operations) > 1 {
		appendRow("total", snap.Total)
	}
	table.Render()
}

// renderStatusCodes writes the status code table.
func (c *Console) renderStatusCodes(snap *stats.Snapshot) {
	table := tablewriter.NewWriter(c.writer)
	table.SetHeader([]string{"Status", "Count", "Percentage"})
	table.SetBorder(true)

	for _, code := range snap.SortedStatusCodes() {
		n := snap.StatusCodes[code]
		label := strconv.Itoa(code)
		if code == request.StatusClientFailure {
			label += " (client)"
		}
		pct := 0.0
		if snap.Total.Requests > 0 {
			pct = float64(n) / float64(snap.Total.Requests) * 100
		}
		table.Append([]string{c.colors.Status(code).Sprint(label), humanize.Comma(n), fmt.Sprintf("%.1f%%", pct)})
	}
	table.Render()
}

// write writes to the output without a newline.
func (c *Console) write(s string) {
	fmt.Fprint(c.writer, s)
}

// writeln writes to the output with a newline.
func (c *Console) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

// Helper functions

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// renderProgressBar renders a progress bar.
func renderProgressBar(progress float64, width int) string {
	filled := int(clamp01(progress) * float64(width))
	return "[" + strings.Repeat(progressFilled, filled) + strings.Repeat(progressEmpty, width-filled) + "]"
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// formatDurationShort formats a duration in a short format.
func formatDurationShort(d time.Duration) string {
	if d < time.Microsecond {
		return "0ms"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}
