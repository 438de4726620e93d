package step

import "testing"

func TestPreviousAtStepZeroIsNoOp(t *testing.T) {
	nav := New(4, nil)

	if moved := nav.Previous(); moved {
		t.Fatal("expected Previous at step 0 to be a no-op")
	}
	if nav.Current() != 0 {
		t.Fatalf("expected index 0, got %d", nav.Current())
	}
}

func TestNextStopsAtTerminalStep(t *testing.T) {
	finalCalls := 0
	nav := New(3, func() { finalCalls++ })

	if !nav.Next() || !nav.Next() {
		t.Fatal("expected Next to advance through interior steps")
	}
	if nav.Current() != 2 {
		t.Fatalf("expected terminal index 2, got %d", nav.Current())
	}

	if moved := nav.Next(); moved {
		t.Fatal("expected Next at terminal step not to advance")
	}
	if nav.Current() != 2 {
		t.Fatalf("index advanced past terminal step: %d", nav.Current())
	}
	if finalCalls != 1 {
		t.Fatalf("expected onFinal to run once, ran %d times", finalCalls)
	}
}

func TestGoToDoesNotMarkIntermediateComplete(t *testing.T) {
	nav := New(5, nil)

	if err := nav.GoTo(3); err != nil {
		t.Fatalf("GoTo failed: %v", err)
	}
	if nav.Current() != 3 {
		t.Fatalf("expected index 3, got %d", nav.Current())
	}
	for i := 0; i < 3; i++ {
		if nav.IsComplete(i) {
			t.Fatalf("step %d implicitly marked complete", i)
		}
	}
}

func TestGoToOutOfRange(t *testing.T) {
	nav := New(3, nil)

	if err := nav.GoTo(3); err == nil {
		t.Fatal("expected error for out-of-range jump")
	}
	if err := nav.GoTo(-1); err == nil {
		t.Fatal("expected error for negative jump")
	}
	if nav.Current() != 0 {
		t.Fatalf("failed jump moved the index to %d", nav.Current())
	}
}

func TestTransitionsClearValidationChannel(t *testing.T) {
	nav := New(4, nil)

	nav.PushError("environment id required")
	nav.PushWarning("policy defaulted")
	if len(nav.Errors()) != 1 || len(nav.Warnings()) != 1 {
		t.Fatal("expected one pending error and one pending warning")
	}

	nav.Next()
	if len(nav.Errors()) != 0 || len(nav.Warnings()) != 0 {
		t.Fatal("expected Next to clear the validation channel")
	}

	nav.PushError("otp invalid")
	nav.Previous()
	if len(nav.Errors()) != 0 {
		t.Fatal("expected Previous to clear the validation channel")
	}

	nav.PushError("otp invalid")
	if err := nav.GoTo(2); err != nil {
		t.Fatalf("GoTo failed: %v", err)
	}
	if len(nav.Errors()) != 0 {
		t.Fatal("expected GoTo to clear the validation channel")
	}
}

func TestResetClearsCompletedSetAndReturnsToZero(t *testing.T) {
	nav := New(4, nil)

	nav.MarkCurrentComplete()
	nav.Next()
	nav.MarkCurrentComplete()
	nav.PushError("stale")

	nav.Reset()

	if nav.Current() != 0 {
		t.Fatalf("expected index 0 after reset, got %d", nav.Current())
	}
	if nav.CompletedCount() != 0 {
		t.Fatalf("expected empty completed set, got %d entries", nav.CompletedCount())
	}
	if len(nav.Errors()) != 0 {
		t.Fatal("expected empty validation channel after reset")
	}
}

func TestMarkCompleteIgnoresOutOfRange(t *testing.T) {
	nav := New(2, nil)

	nav.MarkComplete(-1)
	nav.MarkComplete(2)
	if nav.CompletedCount() != 0 {
		t.Fatal("out-of-range MarkComplete mutated the completed set")
	}

	nav.MarkComplete(1)
	if !nav.IsComplete(1) {
		t.Fatal("expected step 1 to be complete")
	}
}
