package health

import (
	"context"
	"errors"
	"testing"
)

func TestStatusAggregatesProbes(t *testing.T) {
	svc := NewService()
	svc.Register("records", func(ctx context.Context) error { return nil })

	ok, checks := svc.Status(context.Background())
	if !ok || checks["records"] != "ok" {
		t.Fatalf("expected healthy, got %v %v", ok, checks)
	}

	svc.Register("database", func(ctx context.Context) error { return errors.New("connection refused") })
	ok, checks = svc.Status(context.Background())
	if ok {
		t.Fatalf("expected unhealthy when a probe fails")
	}
	if checks["database"] != "connection refused" || checks["records"] != "ok" {
		t.Fatalf("unexpected checks: %v", checks)
	}
}

func TestStatusWithoutProbesIsHealthy(t *testing.T) {
	if ok, _ := NewService().Status(context.Background()); !ok {
		t.Fatalf("no probes should be healthy")
	}
}
