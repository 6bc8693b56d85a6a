package governance

import (
	"context"
	"errors"
	"testing"

	"github.com/SpecFarm/SpecFarm/internal/store"
)

func newCallFixture(t *testing.T) (*fixture, *CallService) {
	t.Helper()
	f := newFixture(t)
	if err := Seed(context.Background(), f.orgs); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return f, NewCallService(f.db, f.engine)
}

func TestCallToolNaming(t *testing.T) {
	if got := CallTool("dev-org"); got != "call_dev_org" {
		t.Fatalf("CallTool(dev-org) = %s", got)
	}
	if got := CallTool("research-org"); got != "call_research_org" {
		t.Fatalf("CallTool(research-org) = %s", got)
	}
}

func TestDelegateLifecycle(t *testing.T) {
	_, calls := newCallFixture(t)
	ctx := context.Background()

	call, d, err := calls.Delegate(ctx, "s1", "orchestrator-org", "dev-org", "fix the build")
	if err != nil {
		t.Fatalf("delegate: %v", err)
	}
	if !d.Allowed() {
		t.Fatalf("orchestrator should be allowed to call dev, got %+v", d)
	}
	if call.Status != CallPending {
		t.Fatalf("new call should be pending, got %s", call.Status)
	}

	if err := calls.Start(ctx, call.CallID); err != nil {
		t.Fatalf("start: %v", err)
	}
	// pending -> complete skips running and must fail.
	if err := calls.Start(ctx, call.CallID); err == nil {
		t.Fatal("double start should fail")
	}
	if err := calls.Complete(ctx, call.CallID, "done"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, err := calls.Call(ctx, call.CallID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != CallComplete || got.Result != "done" || got.CompletedAt == nil {
		t.Fatalf("unexpected final call: %+v", got)
	}
}

func TestDelegateDeniedWithoutGrant(t *testing.T) {
	_, calls := newCallFixture(t)
	ctx := context.Background()

	// dev-org has no call_* grants; delegation is governed like any tool.
	call, d, err := calls.Delegate(ctx, "s1", "dev-org", "ops-org", "deploy it")
	if err != nil {
		t.Fatalf("delegate: %v", err)
	}
	if call != nil || d.State != DecisionDenied {
		t.Fatalf("expected denied delegation, got call=%v decision=%+v", call, d)
	}
}

func TestDelegateUnknownTarget(t *testing.T) {
	_, calls := newCallFixture(t)
	if _, _, err := calls.Delegate(context.Background(), "s1", "orchestrator-org", "ghost-org", "boo"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown target, got %v", err)
	}
}

func TestFailTransition(t *testing.T) {
	_, calls := newCallFixture(t)
	ctx := context.Background()

	call, _, err := calls.Delegate(ctx, "s1", "orchestrator-org", "research-org", "find prior art")
	if err != nil {
		t.Fatal(err)
	}
	if err := calls.Start(ctx, call.CallID); err != nil {
		t.Fatal(err)
	}
	if err := calls.Fail(ctx, call.CallID, "searxng unreachable"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	got, err := calls.Call(ctx, call.CallID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != CallFailed || got.Result != "searxng unreachable" {
		t.Fatalf("unexpected failed call: %+v", got)
	}
}

func TestCallsListFilter(t *testing.T) {
	_, calls := newCallFixture(t)
	ctx := context.Background()

	a, _, err := calls.Delegate(ctx, "s1", "orchestrator-org", "dev-org", "task a")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := calls.Delegate(ctx, "s1", "orchestrator-org", "studio-org", "task b"); err != nil {
		t.Fatal(err)
	}
	if err := calls.Start(ctx, a.CallID); err != nil {
		t.Fatal(err)
	}

	pending, err := calls.Calls(ctx, CallPending, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Task != "task b" {
		t.Fatalf("unexpected pending list: %+v", pending)
	}
}
