package obs

import (
	"context"
	"testing"
)

func TestHealthCheckerNoChecksIsHealthy(t *testing.T) {
	hc := NewHealthChecker()
	status := hc.Check(context.Background(), Liveness)
	if !status.Healthy {
		t.Error("expected liveness with no checks to be healthy")
	}
}

func TestHealthCheckerAggregatesFailures(t *testing.T) {
	hc := NewHealthChecker()
	hc.Register("wal", Readiness, func(ctx context.Context) *CheckResult {
		return &CheckResult{Healthy: true, Message: "ok"}
	})
	hc.Register("disk", Readiness, func(ctx context.Context) *CheckResult {
		return &CheckResult{Healthy: false, Message: "disk full"}
	})

	status := hc.Check(context.Background(), Readiness)
	if status.Healthy {
		t.Error("expected aggregate status to be unhealthy when one check fails")
	}
	if len(status.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(status.Checks))
	}
}

func TestHealthCheckerRespectsTier(t *testing.T) {
	hc := NewHealthChecker()
	hc.Register("deep-check", Deep, func(ctx context.Context) *CheckResult {
		return &CheckResult{Healthy: false, Message: "should not run"}
	})

	status := hc.Check(context.Background(), Liveness)
	if !status.Healthy {
		t.Error("expected a Deep check to be excluded from a Liveness run")
	}
	if len(status.Checks) != 0 {
		t.Errorf("expected 0 checks run at Liveness tier, got %d", len(status.Checks))
	}
}

func TestHealthCheckerNilResultTreatedAsUnhealthy(t *testing.T) {
	hc := NewHealthChecker()
	hc.Register("broken", Liveness, func(ctx context.Context) *CheckResult { return nil })

	status := hc.Check(context.Background(), Liveness)
	if status.Healthy {
		t.Error("expected nil check result to count as unhealthy")
	}
}

func TestHealthCheckerUnregister(t *testing.T) {
	hc := NewHealthChecker()
	hc.Register("temp", Liveness, func(ctx context.Context) *CheckResult {
		return &CheckResult{Healthy: false}
	})
	hc.Unregister("temp")

	status := hc.Check(context.Background(), Liveness)
	if !status.Healthy {
		t.Error("expected unregistered check to no longer affect status")
	}
	if len(status.Checks) != 0 {
		t.Errorf("expected 0 checks after unregister, got %d", len(status.Checks))
	}
}
