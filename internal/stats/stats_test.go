package stats

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/wesleyorama2/surge/internal/event"
	"github.com/wesleyorama2/surge/internal/request"
)

func response(status int, latency time.Duration, bytes int64) *request.Response {
	return &request.Response{StatusCode: status, Latency: latency, Bytes: bytes, Started: time.Now()}
}

func TestStats_Record(t *testing.T) {
	s := New()

	s.Record(request.OpWrite, response(http.StatusOK, 10*time.Millisecond, 1000))
	s.Record(request.OpWrite, response(http.StatusOK, 20*time.Millisecond, 2000))
	s.Record(request.OpRead, response(http.StatusNotFound, 30*time.Millisecond, 500))
	s.Record(request.OpRead, response(request.StatusClientFailure, time.Millisecond, 0))

	snap := s.Snapshot()

	if snap.Total.Requests != 4 {
		t.Errorf("Total.Requests = %d, want 4", snap.Total.Requests)
	}
	if snap.Total.Success != 2 {
		t.Errorf("Total.Success = %d, want 2", snap.Total.Success)
	}
	if snap.Total.Failed != 2 {
		t.Errorf("Total.Failed = %d, want 2", snap.Total.Failed)
	}
	if snap.Total.Bytes != 3500 {
		t.Errorf("Total.Bytes = %d, want 3500", snap.Total.Bytes)
	}
	if snap.ClientFailures != 1 {
		t.Errorf("ClientFailures = %d, want 1", snap.ClientFailures)
	}
	if snap.ErrorRate != 0.5 {
		t.Errorf("ErrorRate = %v, want 0.5", snap.ErrorRate)
	}

	if got := snap.Operations[request.OpWrite].Requests; got != 2 {
		t.Errorf("write requests = %d, want 2", got)
	}
	if got := snap.Operations[request.OpRead].Failed; got != 2 {
		t.Errorf("read failures = %d, want 2", got)
	}
	if _, ok := snap.Operations[request.OpDelete]; ok {
		t.Error("operations without requests should be omitted")
	}

	wantCodes := []int{http.StatusOK, http.StatusNotFound, request.StatusClientFailure}
	codes := snap.SortedStatusCodes()
	if len(codes) != len(wantCodes) {
		t.Fatalf("status codes = %v, want %v", codes, wantCodes)
	}
	for i, c := range wantCodes {
		if codes[i] != c {
			t.Errorf("codes[%d] = %d, want %d", i, codes[i], c)
		}
	}
	if snap.StatusCodes[http.StatusOK] != 2 {
		t.Errorf("200 count = %d, want 2", snap.StatusCodes[http.StatusOK])
	}
}

func TestStats_LatencyPercentiles(t *testing.T) {
	s := New()

	for i := 1; i <= 10; i++ {
		s.Record(request.OpRead, response(http.StatusOK, time.Duration(i)*10*time.Millisecond, 100))
	}

	lat := s.Snapshot().Operations[request.OpRead].Latency

	// P50 should be around 50ms (with some tolerance for HDR histogram binning)
	if lat.P50 < 40*time.Millisecond || lat.P50 > 60*time.Millisecond {
		t.Errorf("P50 = %v, want ~50ms (±10ms)", lat.P50)
	}
	if lat.P99 < 90*time.Millisecond || lat.P99 > 110*time.Millisecond {
		t.Errorf("P99 = %v, want ~100ms (±10ms)", lat.P99)
	}
	if lat.Min < 9*time.Millisecond || lat.Min > 11*time.Millisecond {
		t.Errorf("Min = %v, want ~10ms", lat.Min)
	}
	if lat.Count != 10 {
		t.Errorf("Count = %d, want 10", lat.Count)
	}
}

func TestStats_ClampsLatency(t *testing.T) {
	s := New()
	s.Record(request.OpRead, response(http.StatusOK, 0, 0))
	s.Record(request.OpRead, response(http.StatusOK, 2*time.Hour, 0))

	lat := s.Snapshot().Total.Latency
	if lat.Count != 2 {
		t.Fatalf("Count = %d, want 2", lat.Count)
	}
	if lat.Max > time.Hour+time.Hour/100 {
		t.Errorf("Max = %v, want clamped to ~1h", lat.Max)
	}
}

func TestStats_Elapsed(t *testing.T) {
	s := New()
	if snap := s.Snapshot(); snap.Elapsed != 0 || snap.RPS != 0 {
		t.Errorf("before start: Elapsed = %v, RPS = %v", snap.Elapsed, snap.RPS)
	}

	s.OnTestState(event.StateRunning)
	time.Sleep(20 * time.Millisecond)
	s.OnRequestResponse(request.New(request.OpWrite, "c", "o", 10), response(http.StatusOK, time.Millisecond, 10))
	s.OnTestState(event.StateCompleted)

	snap := s.Snapshot()
	if snap.Elapsed < 20*time.Millisecond {
		t.Errorf("Elapsed = %v, want >= 20ms", snap.Elapsed)
	}
	if snap.State != event.StateCompleted.String() {
		t.Errorf("State = %q, want %q", snap.State, event.StateCompleted.String())
	}
	if snap.RPS <= 0 || snap.Throughput <= 0 {
		t.Errorf("RPS = %v, Throughput = %v, want > 0", snap.RPS, snap.Throughput)
	}

	// Elapsed is frozen once the test has finished.
	time.Sleep(10 * time.Millisecond)
	if again := s.Snapshot(); again.Elapsed != snap.Elapsed {
		t.Errorf("Elapsed moved after finish: %v -> %v", snap.Elapsed, again.Elapsed)
	}
}

func TestStats_Concurrent(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				s.Record(request.OpWrite, response(http.StatusOK, time.Millisecond, 1))
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()

	if got := s.Snapshot().Total.Requests; got != 4000 {
		t.Errorf("Total.Requests = %d, want 4000", got)
	}
}

func TestSeries_Buckets(t *testing.T) {
	start := time.Unix(1000, 0)
	s := NewSeries(time.Second, 10)
	s.SetStart(start)

	s.Record(start.Add(100*time.Millisecond), true, 10)
	s.Record(start.Add(900*time.Millisecond), false, 0)
	s.Record(start.Add(2500*time.Millisecond), true, 5)

	buckets := s.Buckets()
	if len(buckets) != 3 {
		t.Fatalf("len(buckets) = %d, want 3 (gap included)", len(buckets))
	}

	tests := []struct {
		offset    time.Duration
		requests  int64
		successes int64
		failures  int64
		bytes     int64
	}{
		{0, 2, 1, 1, 10},
		{time.Second, 0, 0, 0, 0},
		{2 * time.Second, 1, 1, 0, 5},
	}
	for i, tt := range tests {
		b := buckets[i]
		if b.Offset != tt.offset || b.Requests != tt.requests || b.Successes != tt.successes ||
			b.Failures != tt.failures || b.Bytes != tt.bytes {
			t.Errorf("bucket %d = %+v, want %+v", i, b, tt)
		}
	}

	if rps := buckets[0].RPS(time.Second); rps != 2 {
		t.Errorf("RPS = %v, want 2", rps)
	}
}

func TestSeries_RingDiscardsOldest(t *testing.T) {
	start := time.Unix(1000, 0)
	s := NewSeries(time.Second, 3)
	s.SetStart(start)

	for i := 0; i < 5; i++ {
		s.Record(start.Add(time.Duration(i)*time.Second), true, 0)
	}
	// Too old for the ring.
	s.Record(start, true, 0)

	buckets := s.Buckets()
	if len(buckets) != 3 {
		t.Fatalf("len(buckets) = %d, want 3", len(buckets))
	}
	if buckets[0].Offset != 2*time.Second {
		t.Errorf("oldest offset = %v, want 2s", buckets[0].Offset)
	}
	for i, b := range buckets {
		if b.Requests != 1 {
			t.Errorf("bucket %d requests = %d, want 1", i, b.Requests)
		}
	}
}

func TestSeries_Empty(t *testing.T) {
	if b := NewSeries(0, 0).Buckets(); b != nil {
		t.Errorf("Buckets() = %v, want nil", b)
	}
}
