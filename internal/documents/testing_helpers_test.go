package documents

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"docscan-backend/internal/cleanup"
	"docscan-backend/internal/ocr"
	"docscan-backend/internal/queue"
	"docscan-backend/internal/search"
	"docscan-backend/internal/shared/storage/object"
	"docscan-backend/internal/shared/storage/object/local"
	"docscan-backend/internal/shared/storage/record"
	"docscan-backend/internal/shared/storage/record/memory"
)

const (
	testBucket = "docs-test"
	testUser   = "user-1"
)

type fakeOCR struct {
	mu          sync.Mutex
	syncResult  ocr.Result
	syncErr     error
	jobID       string
	startErr    error
	asyncResult ocr.AsyncResult
	asyncErr    error
	syncCalls   int
	startCalls  int
	resultCalls int
	lastStart   ocr.AsyncRequest
}

func (f *fakeOCR) ExtractSync(ctx context.Context, body []byte) (ocr.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncCalls++
	return f.syncResult, f.syncErr
}

func (f *fakeOCR) StartAsync(ctx context.Context, req ocr.AsyncRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	f.lastStart = req
	return f.jobID, f.startErr
}

func (f *fakeOCR) GetAsyncResult(ctx context.Context, jobID string) (ocr.AsyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resultCalls++
	return f.asyncResult, f.asyncErr
}

type fakeCleaner struct {
	result cleanup.Result
	err    error
	calls  int
	paths  []string
}

func (f *fakeCleaner) Clean(ctx context.Context, rawText string, existingPaths []string, avgConfidence float64) (cleanup.Result, error) {
	f.calls++
	f.paths = existingPaths
	if f.err != nil {
		return cleanup.Result{}, f.err
	}
	return f.result, nil
}

type fakePurger struct {
	calls int
}

func (f *fakePurger) DeleteForDocument(ctx context.Context, documentID string) (int, error) {
	f.calls++
	return 0, nil
}

type recordingQueue struct {
	msgs []queue.DeadLetter
}

func (q *recordingQueue) Send(ctx context.Context, msg queue.DeadLetter) error {
	q.msgs = append(q.msgs, msg)
	return nil
}

// countingBackend counts mutating object calls.
type countingBackend struct {
	object.Backend
	mutations int
	tempKeys  []string
}

func (b *countingBackend) Put(ctx context.Context, bucket, key string, body []byte, contentType string, meta map[string]string) error {
	b.mutations++
	if strings.HasPrefix(key, "temp/") {
		b.tempKeys = append(b.tempKeys, key)
	}
	return b.Backend.Put(ctx, bucket, key, body, contentType, meta)
}

func (b *countingBackend) Copy(ctx context.Context, bucket, srcKey, dstKey string) error {
	b.mutations++
	return b.Backend.Copy(ctx, bucket, srcKey, dstKey)
}

func (b *countingBackend) Delete(ctx context.Context, bucket, key string) error {
	b.mutations++
	return b.Backend.Delete(ctx, bucket, key)
}

// countingStore counts mutating record calls.
type countingStore struct {
	record.Store
	mutations int
}

func (s *countingStore) Put(ctx context.Context, t record.Table, item record.Item) error {
	s.mutations++
	return s.Store.Put(ctx, t, item)
}

func (s *countingStore) Update(ctx context.Context, t record.Table, k record.Key, patch record.Item) error {
	s.mutations++
	return s.Store.Update(ctx, t, k, patch)
}

func (s *countingStore) Delete(ctx context.Context, t record.Table, k record.Key) error {
	s.mutations++
	return s.Store.Delete(ctx, t, k)
}

func (s *countingStore) Append(ctx context.Context, t record.Table, k record.Key, name string, values []string) error {
	s.mutations++
	return s.Store.Append(ctx, t, k, name, values)
}

// failingStore fails the next document update that sets status to failStatus.
type failingStore struct {
	record.Store
	failStatus Status
	failures   int
}

func (s *failingStore) Update(ctx context.Context, t record.Table, k record.Key, patch record.Item) error {
	if s.failures > 0 && t.Name == "documents" && patch[attrStatus] == string(s.failStatus) {
		s.failures--
		return errors.New("conditional write throttled")
	}
	return s.Store.Update(ctx, t, k, patch)
}

// failNextUpdateTo makes the next document update to status fail once.
func (e *testEnv) failNextUpdateTo(status Status) {
	e.records.Store = &failingStore{Store: e.records.Store, failStatus: status, failures: 1}
}

type failingIndex struct {
	search.Noop
	upserts int
}

func (f *failingIndex) Upsert(ctx context.Context, e search.Entry) error {
	f.upserts++
	return errors.New("meilisearch unavailable")
}

type testEnv struct {
	svc     *Service
	ocr     *fakeOCR
	cleaner *fakeCleaner
	purger  *fakePurger
	dlq     *recordingQueue
	objects *countingBackend
	records *countingStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	backend := &countingBackend{Backend: local.New(t.TempDir())}
	store := &countingStore{Store: memory.New()}
	repo := NewRepo(store, Tables{Documents: "documents", ExtractedTexts: "extracted_texts", OCRJobs: "ocr_jobs"})

	ocrClient := &fakeOCR{
		syncResult:  ocr.Result{Text: "Invoice 42\nTotal due 120.00", Confidence: 93.5},
		jobID:       "job-1",
		asyncResult: ocr.AsyncResult{Result: ocr.Result{Text: "Lease agreement page one", Confidence: 88}, Status: ocr.JobSucceeded},
	}
	cleaner := &fakeCleaner{result: cleanup.Result{
		CleanedText:       "Invoice 42\nTotal due: 120.00",
		Tags:              []string{"invoice", "finance", "2024", "utilities", "paid"},
		SuggestedFilePath: "finance/invoices/2024",
	}}
	purger := &fakePurger{}
	dlq := &recordingQueue{}

	svc := NewService(Config{Bucket: testBucket}, object.NewGateway(backend), repo, ocrClient, cleaner)
	svc.Questions = purger
	svc.DeadLetters = dlq
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}

	return &testEnv{svc: svc, ocr: ocrClient, cleaner: cleaner, purger: purger, dlq: dlq, objects: backend, records: store}
}

func (e *testEnv) objectExists(t *testing.T, key string) bool {
	t.Helper()
	_, err := e.objects.Head(context.Background(), testBucket, key)
	if err == nil {
		return true
	}
	if !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("head %s: %v", key, err)
	}
	return false
}
