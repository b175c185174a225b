package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	uploadsSyncTotal         atomic.Uint64
	uploadsAsyncTotal        atomic.Uint64
	pipelineCompletedTotal   atomic.Uint64
	pipelineFailedTotal      atomic.Uint64
	completionDuplicateTotal atomic.Uint64
	deadLetteredTotal        atomic.Uint64
	documentsFinalizedTotal  atomic.Uint64
	documentsDeletedTotal    atomic.Uint64
	questionsGeneratedTotal  atomic.Uint64

	workerReceivedTotal  atomic.Uint64
	workerCompletedTotal atomic.Uint64
	workerFailedTotal    atomic.Uint64
	workerDiscardedTotal atomic.Uint64

	pipelineDuration = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})
)

// IncUpload counts an upload by extraction path ("sync" or "async").
func IncUpload(path string) {
	if path == "sync" {
		uploadsSyncTotal.Add(1)
		return
	}
	uploadsAsyncTotal.Add(1)
}

func IncPipelineCompleted() { pipelineCompletedTotal.Add(1) }

func IncPipelineFailed() { pipelineFailedTotal.Add(1) }

func IncCompletionDuplicate() { completionDuplicateTotal.Add(1) }

func IncDeadLettered() { deadLetteredTotal.Add(1) }

func IncFinalized() { documentsFinalizedTotal.Add(1) }

func IncDeleted() { documentsDeletedTotal.Add(1) }

func IncWorkerReceived() { workerReceivedTotal.Add(1) }

func IncWorkerCompleted() { workerCompletedTotal.Add(1) }

func IncWorkerFailed() { workerFailedTotal.Add(1) }

// IncWorkerDiscarded counts queue messages deleted without processing.
func IncWorkerDiscarded() { workerDiscardedTotal.Add(1) }

// AddQuestionsGenerated counts persisted questions.
func AddQuestionsGenerated(n int) {
	if n > 0 {
		questionsGeneratedTotal.Add(uint64(n))
	}
}

// ObservePipelineDurationMs records the time from upload to cleaned.
func ObservePipelineDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	pipelineDuration.Observe(value)
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
	fmt.Fprintf(&buf, "# HELP uploads_total Uploads received by extraction path\n")
	fmt.Fprintf(&buf, "# TYPE uploads_total counter\n")
	fmt.Fprintf(&buf, "uploads_total{path=\"sync\"} %d\n", uploadsSyncTotal.Load())
	fmt.Fprintf(&buf, "uploads_total{path=\"async\"} %d\n", uploadsAsyncTotal.Load())
	writeCounter(&buf, "pipeline_completed_total", "Documents that reached cleaned", pipelineCompletedTotal.Load())
	writeCounter(&buf, "pipeline_failed_total", "Documents that moved to failed", pipelineFailedTotal.Load())
	writeCounter(&buf, "completion_duplicates_total", "Duplicate job completions ignored", completionDuplicateTotal.Load())
	writeCounter(&buf, "dead_lettered_total", "Completions that could not be correlated", deadLetteredTotal.Load())
	writeCounter(&buf, "documents_finalized_total", "Documents finalized", documentsFinalizedTotal.Load())
	writeCounter(&buf, "documents_deleted_total", "Documents deleted", documentsDeletedTotal.Load())
	writeCounter(&buf, "questions_generated_total", "Questions generated", questionsGeneratedTotal.Load())
	writeCounter(&buf, "worker_messages_received_total", "Completion messages received by the worker", workerReceivedTotal.Load())
	writeCounter(&buf, "worker_messages_completed_total", "Completion messages settled and deleted", workerCompletedTotal.Load())
	writeCounter(&buf, "worker_messages_failed_total", "Completion messages left for redelivery", workerFailedTotal.Load())
	writeCounter(&buf, "worker_messages_discarded_total", "Unrecoverable completion messages deleted", workerDiscardedTotal.Load())
	writeHistogram(&buf, "pipeline_duration_ms", "Upload to cleaned duration in milliseconds", pipelineDuration.Snapshot())
	return buf.String()
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

// Observe counts value in the first bucket that holds it; Render accumulates.
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
