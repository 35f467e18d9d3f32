package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	runsStartedTotal   atomic.Uint64
	runsCompletedTotal atomic.Uint64
	runsAbortedTotal   atomic.Uint64

	applicationsSubmittedTotal      atomic.Uint64
	applicationsAppliedTotal        atomic.Uint64
	applicationsAlreadyAppliedTotal atomic.Uint64
	applicationsFailedTotal         atomic.Uint64

	jobsFetched = newLabeledCounter()

	runDuration = newHistogram([]float64{1000, 5000, 15000, 30000, 60000, 120000, 300000, 600000, 1800000})
)

// IncRunStarted increments the pipeline runs started counter.
func IncRunStarted() {
	runsStartedTotal.Add(1)
}

// IncRunCompleted increments the completed counter.
func IncRunCompleted() {
	runsCompletedTotal.Add(1)
}

// IncRunAborted counts runs that stopped before applying, e.g. on an
// authentication failure.
func IncRunAborted() {
	runsAbortedTotal.Add(1)
}

func IncApplicationsSubmitted() {
	applicationsSubmittedTotal.Add(1)
}

func IncApplicationsApplied() {
	applicationsAppliedTotal.Add(1)
}

func IncApplicationsAlreadyApplied() {
	applicationsAlreadyAppliedTotal.Add(1)
}

func IncApplicationsFailed() {
	applicationsFailedTotal.Add(1)
}

// AddJobsFetched adds n normalized jobs for the given source.
func AddJobsFetched(source string, n int) {
	if n <= 0 {
		return
	}
	jobsFetched.Add(source, uint64(n))
}

// ObserveRunDurationMs records a run duration in milliseconds.
func ObserveRunDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	runDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "autoapply_runs_started_total", "Total pipeline runs started", runsStartedTotal.Load())
	writeCounter(&buf, "autoapply_runs_completed_total", "Total pipeline runs completed", runsCompletedTotal.Load())
	writeCounter(&buf, "autoapply_runs_aborted_total", "Total pipeline runs aborted before applying", runsAbortedTotal.Load())
	writeCounter(&buf, "autoapply_applications_submitted_total", "Total application requests sent", applicationsSubmittedTotal.Load())
	writeCounter(&buf, "autoapply_applications_applied_total", "Total applications confirmed", applicationsAppliedTotal.Load())
	writeCounter(&buf, "autoapply_applications_already_applied_total", "Total submissions rejected as already applied", applicationsAlreadyAppliedTotal.Load())
	writeCounter(&buf, "autoapply_applications_failed_total", "Total submissions that failed", applicationsFailedTotal.Load())
	writeLabeledCounter(&buf, "autoapply_jobs_fetched_total", "Total normalized jobs fetched", "source", jobsFetched.Snapshot())
	writeHistogram(&buf, "autoapply_run_duration_ms", "Pipeline run duration in milliseconds", runDuration.Snapshot())
	return buf.String()
}

type labeledCounter struct {
	mu     sync.Mutex
	values map[string]uint64
}

func newLabeledCounter() *labeledCounter {
	return &labeledCounter{values: make(map[string]uint64)}
}

func (c *labeledCounter) Add(label string, n uint64) {
	c.mu.Lock()
	c.values[label] += n
	c.mu.Unlock()
}

func (c *labeledCounter) Snapshot() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe records value in the first bucket that holds it; Render makes the
// counts cumulative.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeledCounter(buf *bytes.Buffer, name, help, label string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// SinceMillis returns the milliseconds elapsed since start.
func SinceMillis(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
