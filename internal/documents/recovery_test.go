package documents

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"docscan-backend/internal/ocr"
	"docscan-backend/internal/shared/dedupe"
	"docscan-backend/internal/shared/errs"
	"docscan-backend/internal/shared/storage/object"
	"docscan-backend/internal/shared/telemetry"
)

func completionFor(documentID string) ocr.Completion {
	return ocr.Completion{JobID: "job-1", Status: ocr.JobSucceeded, JobTag: ocr.EncodeJobTag(testUser, documentID)}
}

func TestFailedStatusWriteLeavesNoOrphanText(t *testing.T) {
	env := newTestEnv(t)
	res := uploadAsync(t, env)
	docID := res.Document.DocumentID
	textKey := object.TextKey(testUser, docID, pipelineRevision)

	env.failNextUpdateTo(StatusCleaned)
	if err := env.svc.HandleCompletion(context.Background(), completionFor(docID)); err == nil {
		t.Fatalf("expected the failed status write to surface")
	}
	doc, et, err := env.svc.Get(context.Background(), testUser, docID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Status != StatusFailed || doc.ExtractedTextID != "" || et != nil {
		t.Fatalf("expected failed document without text, got %+v %+v", doc, et)
	}
	if _, err := env.svc.Repo.GetText(context.Background(), textKey); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("text record of the failed run survived: %v", err)
	}
	if env.objectExists(t, textKey) {
		t.Fatalf("text object of the failed run survived")
	}

	if err := env.svc.HandleCompletion(context.Background(), completionFor(docID)); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	doc, et, _ = env.svc.Get(context.Background(), testUser, docID)
	if doc.Status != StatusCleaned || doc.ExtractedTextID != textKey || et == nil {
		t.Fatalf("expected cleaned with text %s, got %+v", textKey, doc)
	}

	if err := env.svc.Delete(context.Background(), testUser, docID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.svc.Repo.GetText(context.Background(), textKey); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("text record survived delete: %v", err)
	}
	if env.objectExists(t, textKey) {
		t.Fatalf("text object survived delete")
	}
}

func TestDeleteSweepsTextNeverLinked(t *testing.T) {
	env := newTestEnv(t)
	res := uploadAsync(t, env)
	docID := res.Document.DocumentID
	textKey := object.TextKey(testUser, docID, pipelineRevision)

	// A crash between the text write and the status write leaves the text
	// behind with no document pointing at it.
	if _, err := env.svc.Objects.PutText(context.Background(), testBucket, testUser, docID, pipelineRevision, "partial"); err != nil {
		t.Fatalf("put text: %v", err)
	}
	if err := env.svc.Repo.PutText(context.Background(), ExtractedText{ExtractedTextID: textKey, DocumentID: docID, UserID: testUser, TextFileKey: textKey}); err != nil {
		t.Fatalf("put text record: %v", err)
	}

	if err := env.svc.Delete(context.Background(), testUser, docID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if env.objectExists(t, textKey) {
		t.Fatalf("unlinked text object survived delete")
	}
	if _, err := env.svc.Repo.GetText(context.Background(), textKey); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("unlinked text record survived delete: %v", err)
	}
}

func TestFinalizeFailureKeepsPreviousText(t *testing.T) {
	env := newTestEnv(t)
	res := uploadSync(t, env)
	docID := res.Document.DocumentID
	before, _, _ := env.svc.Get(context.Background(), testUser, docID)

	env.failNextUpdateTo(StatusVerified)
	_, _, err := env.svc.Finalize(context.Background(), testUser, docID, FinalizeInput{Text: "Invoice 42 reviewed"})
	if err == nil {
		t.Fatalf("expected finalize to fail")
	}

	after, et, err := env.svc.Get(context.Background(), testUser, docID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.Status != StatusCleaned || after.ExtractedTextID != before.ExtractedTextID || et == nil {
		t.Fatalf("document lost its text: %+v", after)
	}
	if !env.objectExists(t, before.ExtractedTextID) {
		t.Fatalf("previous text object removed")
	}

	if _, _, err := env.svc.Finalize(context.Background(), testUser, docID, FinalizeInput{Text: "Invoice 42 reviewed"}); err != nil {
		t.Fatalf("retried finalize: %v", err)
	}
	if env.objectExists(t, before.ExtractedTextID) {
		t.Fatalf("old text should be gone after a successful finalize")
	}
}

func TestCompletionHeldByAnotherDeliveryIsRetried(t *testing.T) {
	env := newTestEnv(t)
	claims := dedupe.NewMemory()
	env.svc.Claims = claims
	res := uploadAsync(t, env)
	docID := res.Document.DocumentID

	// A worker claimed the job and died before finishing.
	if ok, _ := claims.Claim(context.Background(), claimPrefix+"job-1", env.svc.Cfg.ClaimTTL); !ok {
		t.Fatalf("pre-claim failed")
	}

	err := env.svc.HandleCompletion(context.Background(), completionFor(docID))
	if !errors.Is(err, ErrCompletionInFlight) {
		t.Fatalf("expected in-flight error so the message is redelivered, got %v", err)
	}
	doc, _, _ := env.svc.Get(context.Background(), testUser, docID)
	if doc.Status != StatusProcessing {
		t.Fatalf("expected processing while claimed, got %s", doc.Status)
	}
	if env.ocr.resultCalls != 0 {
		t.Fatalf("pipeline ran without the claim")
	}

	if err := claims.Release(context.Background(), claimPrefix+"job-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := env.svc.HandleCompletion(context.Background(), completionFor(docID)); err != nil {
		t.Fatalf("redelivery after claim expiry: %v", err)
	}
	doc, _, _ = env.svc.Get(context.Background(), testUser, docID)
	if doc.Status != StatusCleaned {
		t.Fatalf("expected cleaned, got %s", doc.Status)
	}
}

func TestSearchIndexFailureIsLoggedNotFatal(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	restore := telemetry.SetLogger(zap.New(core))
	defer restore()

	env := newTestEnv(t)
	index := &failingIndex{}
	env.svc.Search = index
	res := uploadSync(t, env)

	if res.Document.Status != StatusCleaned {
		t.Fatalf("expected cleaned despite index failure, got %s", res.Document.Status)
	}
	if index.upserts != 1 {
		t.Fatalf("expected one index attempt, got %d", index.upserts)
	}
	entries := logs.FilterMessage("search.index_failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected search.index_failed log, got %d entries", logs.Len())
	}
	if entries[0].ContextMap()["document_id"] != res.Document.DocumentID {
		t.Fatalf("log missing document id: %v", entries[0].ContextMap())
	}
}
