package documents

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"docscan-backend/internal/cleanup"
	"docscan-backend/internal/ocr"
	"docscan-backend/internal/queue"
	"docscan-backend/internal/shared/errs"
)

func uploadAsync(t *testing.T, env *testEnv) UploadResult {
	t.Helper()
	body := bytes.Repeat([]byte("%PDF"), 5<<20) // 20MB
	res, err := env.svc.Upload(context.Background(), testUser, "lease.pdf", "application/pdf", body)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return res
}

func uploadSync(t *testing.T, env *testEnv) UploadResult {
	t.Helper()
	body := bytes.Repeat([]byte{0xFF}, 2<<20) // 2MB
	res, err := env.svc.Upload(context.Background(), testUser, "scan.jpg", "image/jpeg", body)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return res
}

func TestUploadSmallJPEGTakesSyncPath(t *testing.T) {
	env := newTestEnv(t)
	res := uploadSync(t, env)

	if res.Method != MethodSync {
		t.Fatalf("expected sync path, got %s", res.Method)
	}
	if strings.TrimSpace(res.CleanedText) == "" {
		t.Fatalf("expected cleaned text")
	}
	if n := len(res.Tags); n < 4 || n > 6 {
		t.Fatalf("expected 4-6 tags, got %d", n)
	}
	if res.SuggestedFilePath == "" {
		t.Fatalf("expected suggested file path")
	}
	if env.ocr.startCalls != 0 {
		t.Fatalf("async job should not start on the sync path")
	}

	doc, et, err := env.svc.Get(context.Background(), testUser, res.Document.DocumentID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Status != StatusCleaned {
		t.Fatalf("expected cleaned, got %s", doc.Status)
	}
	if et == nil || et.Verified {
		t.Fatalf("expected unverified extracted text, got %+v", et)
	}
	if et.ExtractedTextID != doc.ExtractedTextID || et.TextFileKey != et.ExtractedTextID {
		t.Fatalf("text id and key mismatch: doc=%s et=%+v", doc.ExtractedTextID, et)
	}
	if !strings.HasPrefix(doc.FileKey, "documents/"+testUser+"/"+doc.DocumentID+"/") {
		t.Fatalf("file not moved to final key: %s", doc.FileKey)
	}
	if doc.OriginalFilename != "scan.jpg" || doc.FileSize != 2<<20 || doc.ContentType != "image/jpeg" {
		t.Fatalf("unexpected metadata: %+v", doc)
	}
	if et.AverageConfidence != 93.5 || et.Tokens == 0 {
		t.Fatalf("unexpected text record: %+v", et)
	}
}

func TestUploadLargePDFTakesAsyncPathAndCompletes(t *testing.T) {
	env := newTestEnv(t)
	res := uploadAsync(t, env)

	if res.Method != MethodAsync || res.JobID != "job-1" {
		t.Fatalf("expected async job-1, got %s %q", res.Method, res.JobID)
	}
	if res.CleanedText != "" {
		t.Fatalf("async upload must not return cleaned text")
	}
	if env.ocr.syncCalls != 0 || env.cleaner.calls != 0 {
		t.Fatalf("nothing should run inline on the async path")
	}
	docID := res.Document.DocumentID
	tempKey := env.ocr.lastStart.Key
	if env.ocr.lastStart.DocumentID != docID || env.ocr.lastStart.UserID != testUser {
		t.Fatalf("unexpected start request: %+v", env.ocr.lastStart)
	}

	doc, _, err := env.svc.Get(context.Background(), testUser, docID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Status != StatusProcessing || doc.JobID != "job-1" || doc.ExtractedTextID != "" {
		t.Fatalf("unexpected document before completion: %+v", doc)
	}

	err = env.svc.HandleCompletion(context.Background(), ocr.Completion{
		JobID:  "job-1",
		Status: ocr.JobSucceeded,
		JobTag: ocr.EncodeJobTag(testUser, docID),
	})
	if err != nil {
		t.Fatalf("completion: %v", err)
	}

	doc, et, err := env.svc.Get(context.Background(), testUser, docID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Status != StatusCleaned {
		t.Fatalf("expected cleaned, got %s", doc.Status)
	}
	if doc.FilePath != "finance/invoices/2024" || len(doc.Tags) != 5 || doc.ExtractedTextID == "" {
		t.Fatalf("document fields not populated: %+v", doc)
	}
	if et == nil || et.AverageConfidence != 88 {
		t.Fatalf("unexpected text record: %+v", et)
	}
	if env.objectExists(t, tempKey) {
		t.Fatalf("temp object should be gone after the move")
	}
	if !env.objectExists(t, doc.FileKey) {
		t.Fatalf("final object missing")
	}
}

func TestCompletionFailedStatusMarksDocumentFailed(t *testing.T) {
	env := newTestEnv(t)
	res := uploadAsync(t, env)
	docID := res.Document.DocumentID

	err := env.svc.HandleCompletion(context.Background(), ocr.Completion{
		JobID:  "job-1",
		Status: ocr.JobFailed,
		JobTag: ocr.EncodeJobTag(testUser, docID),
	})
	if err != nil {
		t.Fatalf("completion: %v", err)
	}
	doc, et, err := env.svc.Get(context.Background(), testUser, docID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", doc.Status)
	}
	if doc.ExtractedTextID != "" || et != nil {
		t.Fatalf("failed document must not carry extracted text")
	}
	if doc.FailureReason == "" {
		t.Fatalf("expected failure reason")
	}
	if env.ocr.resultCalls != 0 {
		t.Fatalf("results should not be fetched for a failed job")
	}
}

func TestSyncCleanupFailureLeavesNoExtractedText(t *testing.T) {
	env := newTestEnv(t)
	env.cleaner.err = cleanup.ErrUnparsable

	body := bytes.Repeat([]byte{0x89}, 1024)
	_, err := env.svc.Upload(context.Background(), testUser, "receipt.png", "image/png", body)
	if !errors.Is(err, cleanup.ErrUnparsable) {
		t.Fatalf("expected unparsable error, got %v", err)
	}
	docs, err := env.svc.List(context.Background(), testUser)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected document persisted before failing, got %d", len(docs))
	}
	if docs[0].Status != StatusFailed || docs[0].ExtractedTextID != "" {
		t.Fatalf("unexpected failed document: %+v", docs[0])
	}
}

func TestDuplicateCompletionIsNoop(t *testing.T) {
	env := newTestEnv(t)
	res := uploadAsync(t, env)
	c := ocr.Completion{JobID: "job-1", Status: ocr.JobSucceeded, JobTag: ocr.EncodeJobTag(testUser, res.Document.DocumentID)}

	if err := env.svc.HandleCompletion(context.Background(), c); err != nil {
		t.Fatalf("first completion: %v", err)
	}
	first, _, _ := env.svc.Get(context.Background(), testUser, res.Document.DocumentID)

	if err := env.svc.HandleCompletion(context.Background(), c); err != nil {
		t.Fatalf("second completion: %v", err)
	}
	second, _, _ := env.svc.Get(context.Background(), testUser, res.Document.DocumentID)

	if env.cleaner.calls != 1 || env.ocr.resultCalls != 1 {
		t.Fatalf("pipeline ran twice: cleaner=%d results=%d", env.cleaner.calls, env.ocr.resultCalls)
	}
	if first.ExtractedTextID != second.ExtractedTextID {
		t.Fatalf("duplicate completion changed the document")
	}
}

func TestCompletionRetriesAfterMidPipelineError(t *testing.T) {
	env := newTestEnv(t)
	res := uploadAsync(t, env)
	c := ocr.Completion{JobID: "job-1", Status: ocr.JobSucceeded, JobTag: ocr.EncodeJobTag(testUser, res.Document.DocumentID)}

	env.cleaner.err = cleanup.ErrModelUnavailable
	if err := env.svc.HandleCompletion(context.Background(), c); !errors.Is(err, cleanup.ErrModelUnavailable) {
		t.Fatalf("expected model error to propagate, got %v", err)
	}
	doc, _, _ := env.svc.Get(context.Background(), testUser, res.Document.DocumentID)
	if doc.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", doc.Status)
	}

	env.cleaner.err = nil
	if err := env.svc.HandleCompletion(context.Background(), c); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	doc, _, _ = env.svc.Get(context.Background(), testUser, res.Document.DocumentID)
	if doc.Status != StatusCleaned || doc.FailureReason != "" {
		t.Fatalf("expected cleaned after redelivery, got %+v", doc)
	}
}

func TestCompletionWithUnknownTagIsDeadLettered(t *testing.T) {
	env := newTestEnv(t)

	err := env.svc.HandleCompletion(context.Background(), ocr.Completion{
		JobID:  "job-x",
		Status: ocr.JobSucceeded,
		JobTag: ocr.EncodeJobTag("ghost", "missing"),
	})
	if err != nil {
		t.Fatalf("unknown tag should settle, got %v", err)
	}
	err = env.svc.HandleCompletion(context.Background(), ocr.Completion{JobID: "job-y", Status: ocr.JobSucceeded, JobTag: "not a tag"})
	if err != nil {
		t.Fatalf("bad tag should settle, got %v", err)
	}

	if len(env.dlq.msgs) != 2 {
		t.Fatalf("expected 2 dead letters, got %d", len(env.dlq.msgs))
	}
	if env.dlq.msgs[0].Reason != queue.ReasonUnknownJob || env.dlq.msgs[1].Reason != queue.ReasonBadJobTag {
		t.Fatalf("unexpected reasons: %+v", env.dlq.msgs)
	}
	if env.ocr.resultCalls != 0 {
		t.Fatalf("no results should be fetched for uncorrelated jobs")
	}
}

func TestHandleNotificationParsesEnvelope(t *testing.T) {
	env := newTestEnv(t)
	res := uploadAsync(t, env)

	body, err := ocr.EncodeCompletion(ocr.Completion{
		JobID:  "job-1",
		Status: ocr.JobSucceeded,
		JobTag: ocr.EncodeJobTag(testUser, res.Document.DocumentID),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := env.svc.HandleNotification(context.Background(), body); err != nil {
		t.Fatalf("notification: %v", err)
	}
	doc, _, _ := env.svc.Get(context.Background(), testUser, res.Document.DocumentID)
	if doc.Status != StatusCleaned {
		t.Fatalf("expected cleaned, got %s", doc.Status)
	}

	if err := env.svc.HandleNotification(context.Background(), []byte(`{"hello":"world"}`)); err != nil {
		t.Fatalf("bad body should settle, got %v", err)
	}
	if len(env.dlq.msgs) != 1 || env.dlq.msgs[0].Reason != queue.ReasonBadNotification {
		t.Fatalf("expected one bad_notification dead letter, got %+v", env.dlq.msgs)
	}
}

func TestReplayedUploadEventIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	res := uploadSync(t, env)

	// The original temp key no longer exists, but the same event replayed must
	// resolve to the same document and return it untouched.
	again, err := env.svc.HandleUpload(context.Background(), testBucket, tempKeyFor(t, env, res))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !again.Duplicate || again.Document.DocumentID != res.Document.DocumentID {
		t.Fatalf("expected duplicate of %s, got %+v", res.Document.DocumentID, again)
	}
	if env.ocr.syncCalls != 1 {
		t.Fatalf("ocr ran again on replay")
	}
}

func tempKeyFor(t *testing.T, env *testEnv, res UploadResult) string {
	t.Helper()
	if len(env.objects.tempKeys) != 1 {
		t.Fatalf("expected one temp upload, got %v", env.objects.tempKeys)
	}
	if DocumentID(testBucket, env.objects.tempKeys[0]) != res.Document.DocumentID {
		t.Fatalf("temp key does not map to %s", res.Document.DocumentID)
	}
	return env.objects.tempKeys[0]
}

func TestFinalizeMissingDocumentIsNotFoundWithoutMutations(t *testing.T) {
	env := newTestEnv(t)
	objBefore, recBefore := env.objects.mutations, env.records.mutations

	_, _, err := env.svc.Finalize(context.Background(), testUser, "does-not-exist", FinalizeInput{Text: "edited"})
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if env.objects.mutations != objBefore || env.records.mutations != recBefore {
		t.Fatalf("finalize mutated state: objects %d->%d records %d->%d",
			objBefore, env.objects.mutations, recBefore, env.records.mutations)
	}
}

func TestFinalizeVerifiesWithNonEmptyText(t *testing.T) {
	env := newTestEnv(t)
	res := uploadSync(t, env)
	before, oldET, _ := env.svc.Get(context.Background(), testUser, res.Document.DocumentID)

	doc, et, err := env.svc.Finalize(context.Background(), testUser, res.Document.DocumentID, FinalizeInput{
		Text:     "Invoice 42\nTotal due: 120.00 (reviewed)",
		FilePath: "finance/invoices/2024/march",
		Tags:     []string{"Invoice", "reviewed", "invoice"},
	})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if doc.Status != StatusVerified || !et.Verified {
		t.Fatalf("expected verified, got doc=%s et=%v", doc.Status, et.Verified)
	}
	if len(doc.Tags) != 2 || doc.FilePath != "finance/invoices/2024/march" {
		t.Fatalf("unexpected document: %+v", doc)
	}

	stored, storedET, err := env.svc.Get(context.Background(), testUser, res.Document.DocumentID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != StatusVerified || storedET == nil || !storedET.Verified {
		t.Fatalf("verified document must have a verified text record: %+v %+v", stored, storedET)
	}
	text, err := env.svc.Text(context.Background(), testUser, res.Document.DocumentID)
	if err != nil {
		t.Fatalf("text: %v", err)
	}
	if strings.TrimSpace(text) == "" || !strings.Contains(text, "reviewed") {
		t.Fatalf("unexpected verified text %q", text)
	}
	if storedET.AverageConfidence != oldET.AverageConfidence {
		t.Fatalf("confidence not carried over")
	}
	if env.objectExists(t, before.ExtractedTextID) {
		t.Fatalf("old text object should be removed")
	}
	if _, err := env.svc.Repo.GetText(context.Background(), before.ExtractedTextID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("old text record should be removed, got %v", err)
	}
}

func TestFinalizeRejectsUnprocessedDocument(t *testing.T) {
	env := newTestEnv(t)
	res := uploadAsync(t, env)

	_, _, err := env.svc.Finalize(context.Background(), testUser, res.Document.DocumentID, FinalizeInput{Text: "x"})
	if !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestDeleteCascadesAndIsRepeatable(t *testing.T) {
	env := newTestEnv(t)
	res := uploadSync(t, env)
	doc, et, _ := env.svc.Get(context.Background(), testUser, res.Document.DocumentID)

	if err := env.svc.Delete(context.Background(), testUser, doc.DocumentID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if env.objectExists(t, doc.FileKey) || env.objectExists(t, et.TextFileKey) {
		t.Fatalf("objects survived delete")
	}
	if _, err := env.svc.Repo.GetText(context.Background(), et.ExtractedTextID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("text record survived delete: %v", err)
	}
	if env.purger.calls != 1 {
		t.Fatalf("questions not purged")
	}

	err := env.svc.Delete(context.Background(), testUser, doc.DocumentID)
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("second delete should be a defined not found, got %v", err)
	}
}

func TestDeleteToleratesMissingObjects(t *testing.T) {
	env := newTestEnv(t)
	res := uploadSync(t, env)
	doc, _, _ := env.svc.Get(context.Background(), testUser, res.Document.DocumentID)

	if err := env.objects.Delete(context.Background(), testBucket, doc.FileKey); err != nil {
		t.Fatalf("pre-delete: %v", err)
	}
	if err := env.svc.Delete(context.Background(), testUser, doc.DocumentID); err != nil {
		t.Fatalf("delete with missing file: %v", err)
	}
}

func TestChooseMethod(t *testing.T) {
	cases := []struct {
		contentType string
		size        int64
		want        ExtractionMethod
	}{
		{"image/jpeg", 2 << 20, MethodSync},
		{"image/png", DefaultSyncMaxBytes, MethodSync},
		{"application/pdf; charset=binary", 1024, MethodSync},
		{"application/pdf", 20 << 20, MethodAsync},
		{"image/tiff", 1024, MethodAsync},
		{"", 10, MethodAsync},
	}
	for _, tc := range cases {
		if got := ChooseMethod(tc.contentType, tc.size, DefaultSyncMaxBytes); got != tc.want {
			t.Fatalf("ChooseMethod(%q, %d) = %s, want %s", tc.contentType, tc.size, got, tc.want)
		}
	}
}
