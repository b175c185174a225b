package local

import (
	"context"
	"errors"
	"testing"

	"docscan-backend/internal/ocr"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

type fakeEngine struct {
	res   ocr.Result
	err   error
	calls int
}

func (f *fakeEngine) Recognize(ctx context.Context, image []byte) (ocr.Result, error) {
	f.calls++
	return f.res, f.err
}

type mapSource map[string][]byte

func (m mapSource) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	b, ok := m[bucket+"/"+key]
	if !ok {
		return nil, errors.New("missing")
	}
	return b, nil
}

func TestExtractSyncRoutesImagesToEngine(t *testing.T) {
	engine := &fakeEngine{res: ocr.Result{Text: "hello", Confidence: 91}}
	c := New(nil, engine)

	res, err := c.ExtractSync(context.Background(), pngHeader)
	if err != nil {
		t.Fatalf("ExtractSync: %v", err)
	}
	if res.Text != "hello" || engine.calls != 1 {
		t.Fatalf("unexpected result %+v calls=%d", res, engine.calls)
	}
}

func TestExtractSyncWithoutEngine(t *testing.T) {
	c := New(nil, nil)
	_, err := c.ExtractSync(context.Background(), pngHeader)
	if !errors.Is(err, ocr.ErrProvider) || !errors.Is(err, ErrNoImageEngine) {
		t.Fatalf("expected provider error wrapping ErrNoImageEngine, got %v", err)
	}
}

func TestExtractSyncRejectsUnknownContent(t *testing.T) {
	c := New(nil, &fakeEngine{})
	if _, err := c.ExtractSync(context.Background(), []byte("plain words")); !errors.Is(err, ocr.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestStartAsyncNotifiesWithJobTag(t *testing.T) {
	engine := &fakeEngine{res: ocr.Result{Text: "scanned", Confidence: 88}}
	c := New(mapSource{"docs/temp/u1/a_scan.png": pngHeader}, engine)

	got := make(chan ocr.Completion, 1)
	c.Notify = func(ctx context.Context, comp ocr.Completion) error {
		got <- comp
		return nil
	}

	jobID, err := c.StartAsync(context.Background(), ocr.AsyncRequest{
		Bucket: "docs", Key: "temp/u1/a_scan.png", UserID: "u1", DocumentID: "d1",
	})
	if err != nil {
		t.Fatalf("StartAsync: %v", err)
	}
	c.Wait()

	comp := <-got
	if comp.JobID != jobID || comp.Status != ocr.JobSucceeded {
		t.Fatalf("unexpected completion %+v", comp)
	}
	if comp.JobTag != ocr.EncodeJobTag("u1", "d1") {
		t.Fatalf("unexpected tag %q", comp.JobTag)
	}

	res, err := c.GetAsyncResult(context.Background(), jobID)
	if err != nil {
		t.Fatalf("GetAsyncResult: %v", err)
	}
	if res.Text != "scanned" || res.Status != ocr.JobSucceeded {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestStartAsyncRecordsFailedJob(t *testing.T) {
	c := New(mapSource{"docs/k": pngHeader}, &fakeEngine{err: errors.New("engine crashed")})
	jobID, err := c.StartAsync(context.Background(), ocr.AsyncRequest{Bucket: "docs", Key: "k", UserID: "u", DocumentID: "d"})
	if err != nil {
		t.Fatalf("StartAsync: %v", err)
	}
	res, err := c.GetAsyncResult(context.Background(), jobID)
	if err != nil {
		t.Fatalf("GetAsyncResult: %v", err)
	}
	if res.Status != ocr.JobFailed {
		t.Fatalf("expected failed job, got %+v", res)
	}
}

func TestGetAsyncResultUnknownJob(t *testing.T) {
	c := New(nil, nil)
	if _, err := c.GetAsyncResult(context.Background(), "nope"); !errors.Is(err, ocr.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
